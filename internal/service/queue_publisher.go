// Package service holds adapters from the booking service to outside
// systems.  QueuePublisher sends booking events to RabbitMQ.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// dialTimeout bounds connecting to the broker when the caller's context
// carries no deadline.
const dialTimeout = 5 * time.Second

// BookingQueues lists the durable queues booking events are routed to.
var BookingQueues = []string{queue.BookingConfirmedQueue, queue.BookingCancelledQueue}

// QueuePublisher publishes booking events as persistent JSON messages on
// the default exchange, routed to the queue named by the event type.  The
// connection is opened on first use and reopened after a failure.
type QueuePublisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewQueuePublisher returns a publisher for the broker at url.  Nothing is
// dialled until the first event.
func NewQueuePublisher(url string, log *zap.Logger) *QueuePublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueuePublisher{url: url, log: log}
}

// PublishBookingEvent publishes ev to the queue named by ev.Type.  Errors
// are returned so the caller can log them; the open channel is dropped so
// the next call reconnects.
func (p *QueuePublisher) PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error {
	msg, err := newPublishing(ev, time.Now())
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	p.log.Debug("booking event published",
		zap.String("type", ev.Type),
		zap.Uint64("booking_id", ev.BookingID),
		zap.String("message_id", msg.MessageId))
	return nil
}

// Close closes the broker connection if one is open.
func (p *QueuePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns the open channel, dialling and declaring the booking
// queues when needed.  The dial and the AMQP handshake end by the deadline
// of ctx.  Callers hold p.mu.
func (p *QueuePublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      contextDialer(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueues(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// contextDialer connects within ctx and sets the same deadline on the
// connection for the handshake.  The client clears it once the connection
// is open.
func contextDialer(ctx context.Context) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(dialTimeout)
		}
		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

func (p *QueuePublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declareQueues makes sure every booking queue exists.  Declaring is
// idempotent.
func declareQueues(ch *amqp.Channel) error {
	for _, name := range BookingQueues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
	}
	return nil
}

// newPublishing encodes ev as a persistent JSON message with a fresh
// message id.
func newPublishing(ev queue.BookingEvent, now time.Time) (amqp.Publishing, error) {
	if ev.Type != queue.BookingConfirmedQueue && ev.Type != queue.BookingCancelledQueue {
		return amqp.Publishing{}, errors.New("unknown booking event type " + ev.Type)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
