// Package realtime pushes seat changes to websocket clients watching a
// showtime.  The Hub fans messages out to the subscribers connected to
// this instance; the Relay carries them between instances over Redis
// pub/sub.  Delivery is best effort: slow clients miss updates and nothing
// is replayed.
package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// sendBuffer is how many messages may queue for one client before further
// messages to it are dropped.
const sendBuffer = 16

// Message is the payload pushed to clients.
type Message struct {
	ShowTimeID uint64            `json:"show_time_id"`
	Seats      []model.SeatDelta `json:"seats"`
}

// Subscriber is one connected client.  Messages arrive on Send.
type Subscriber struct {
	ID   string
	Send chan []byte
}

// NewSubscriber returns a subscriber with a buffered send queue.
func NewSubscriber(id string) *Subscriber {
	return &Subscriber{ID: id, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks which subscribers watch which showtime.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint64]map[string]*Subscriber
	log   *zap.Logger
}

// NewHub constructs an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{rooms: make(map[uint64]map[string]*Subscriber), log: log}
}

// Join subscribes s to showTimeID.
func (h *Hub) Join(showTimeID uint64, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[showTimeID]
	if !ok {
		room = make(map[string]*Subscriber)
		h.rooms[showTimeID] = room
	}
	room[s.ID] = s
}

// Leave unsubscribes s from showTimeID.  Empty rooms are removed.
func (h *Hub) Leave(showTimeID uint64, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[showTimeID]
	delete(room, s.ID)
	if len(room) == 0 {
		delete(h.rooms, showTimeID)
	}
}

// Subscribers returns how many clients watch showTimeID.
func (h *Hub) Subscribers(showTimeID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[showTimeID])
}

// Deliver hands payload to every subscriber of showTimeID without
// blocking.  A subscriber whose queue is full misses the message.
func (h *Hub) Deliver(showTimeID uint64, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, s := range h.rooms[showTimeID] {
		select {
		case s.Send <- payload:
		default:
			h.log.Debug("seat update dropped", zap.String("subscriber", id), zap.Uint64("show_time_id", showTimeID))
		}
	}
}

// Broadcast pushes deltas to the local subscribers of showTimeID.
func (h *Hub) Broadcast(_ context.Context, showTimeID uint64, deltas []model.SeatDelta) error {
	payload, err := encode(showTimeID, deltas)
	if err != nil {
		return err
	}
	h.Deliver(showTimeID, payload)
	return nil
}

func encode(showTimeID uint64, deltas []model.SeatDelta) ([]byte, error) {
	return json.Marshal(Message{ShowTimeID: showTimeID, Seats: deltas})
}
