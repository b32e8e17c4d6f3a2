package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

const writeTimeout = 10 * time.Second

// clientMessage is what clients send: {"action":"join","show_time_id":N}
// or {"action":"leave"}.
type clientMessage struct {
	Action     string `json:"action"`
	ShowTimeID uint64 `json:"show_time_id"`
}

// reply acknowledges a client message.
type reply struct {
	Action     string `json:"action"`
	ShowTimeID uint64 `json:"show_time_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Handler upgrades GET /v1/ws/seats to a websocket.  A client watches one
// showtime at a time, chosen with ?show_time_id=N or a join message, and
// receives a Message for every seat change on it.  The feed is public, so
// any origin is accepted.
func Handler(hub *Hub, log *zap.Logger) echo.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c echo.Context) error {
		var initial uint64
		if v := c.QueryParam("show_time_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show_time_id"})
			}
			initial = id
		}
		srv := websocket.Server{Handler: func(ws *websocket.Conn) {
			newConn(hub, log, ws).serve(initial)
		}}
		srv.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

type conn struct {
	hub     *Hub
	log     *zap.Logger
	ws      *websocket.Conn
	sub     *Subscriber
	current uint64
}

func newConn(hub *Hub, log *zap.Logger, ws *websocket.Conn) *conn {
	id := uuid.NewString()
	return &conn{hub: hub, log: log.With(zap.String("subscriber", id)), ws: ws, sub: NewSubscriber(id)}
}

// watch moves the subscriber to showTimeID; 0 leaves the current room.
func (cn *conn) watch(showTimeID uint64) {
	if cn.current != 0 {
		cn.hub.Leave(cn.current, cn.sub)
	}
	cn.current = showTimeID
	if showTimeID != 0 {
		cn.hub.Join(showTimeID, cn.sub)
	}
}

// ack queues a reply behind any pending updates.
func (cn *conn) ack(r reply) {
	b, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case cn.sub.Send <- b:
	default:
	}
}

func (cn *conn) serve(initial uint64) {
	done := make(chan struct{})
	defer cn.watch(0)
	defer close(done)
	go cn.writeLoop(done)

	if initial != 0 {
		cn.watch(initial)
		cn.ack(reply{Action: "joined", ShowTimeID: initial})
	}
	cn.log.Debug("seat feed connected")
	for {
		var raw string
		if err := websocket.Message.Receive(cn.ws, &raw); err != nil {
			if !errors.Is(err, io.EOF) {
				cn.log.Debug("seat feed read failed", zap.Error(err))
			}
			return
		}
		var msg clientMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			cn.ack(reply{Action: "error", Error: "invalid message"})
			continue
		}
		switch msg.Action {
		case "join":
			if msg.ShowTimeID == 0 {
				cn.ack(reply{Action: "error", Error: "show_time_id is required"})
				continue
			}
			cn.watch(msg.ShowTimeID)
			cn.ack(reply{Action: "joined", ShowTimeID: msg.ShowTimeID})
		case "leave":
			cn.watch(0)
			cn.ack(reply{Action: "left"})
		default:
			cn.ack(reply{Action: "error", Error: "unknown action"})
		}
	}
}

// writeLoop is the only writer on the socket.  A failed write closes the
// connection, which ends the read loop in serve.
func (cn *conn) writeLoop(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case b := <-cn.sub.Send:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := websocket.Message.Send(cn.ws, string(b)); err != nil {
				_ = cn.ws.Close()
				return
			}
		}
	}
}
