package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Consumer reads booking events from the booking queues and appends one
// JSON line per event to <dir>/booking.log.
type Consumer struct {
	url    string
	log    *zap.Logger
	events *zap.Logger
	file   *os.File
}

// NewConsumer opens (creating if needed) dir/booking.log.  log receives
// the consumer's own diagnostics.
func NewConsumer(url, dir string, log *zap.Logger) (*Consumer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "booking.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open booking log: %w", err)
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "logged_at"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), zapcore.InfoLevel)
	return &Consumer{url: url, log: log, events: zap.New(core), file: f}, nil
}

// Close flushes and closes the booking log.
func (c *Consumer) Close() error {
	_ = c.events.Sync()
	return c.file.Close()
}

// Run consumes until ctx is cancelled, redialling the broker with
// exponential backoff (capped at 30s) whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn("booking consumer disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}

	merged := make(chan amqp.Delivery)
	stop := make(chan struct{})
	defer close(stop)
	for _, name := range []string{BookingConfirmedQueue, BookingCancelledQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("consume %s: %w", name, err)
		}
		go func() {
			for d := range msgs {
				select {
				case merged <- d:
				case <-stop:
					return
				}
			}
		}()
	}
	c.log.Info("booking consumer connected")

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("connection closed")
		case d := <-merged:
			if err := c.handleMessage(d.Body); err != nil {
				c.log.Error("booking event rejected", zap.Error(err))
				_ = d.Nack(false, false) // requeueing a bad payload would loop forever
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage decodes one event and writes it to the booking log.
func (c *Consumer) handleMessage(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	var msg string
	switch ev.Type {
	case BookingConfirmedQueue:
		msg = "booking confirmed"
	case BookingCancelledQueue:
		msg = "booking cancelled"
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	c.events.Info(msg,
		zap.Uint64("booking_id", ev.BookingID),
		zap.Uint64("user_id", ev.UserID),
		zap.Uint64("show_time_id", ev.ShowTimeID),
		zap.Uint64s("seat_ids", ev.SeatIDs),
		zap.Int64("final_price", ev.FinalPrice),
		zap.String("payment_method", ev.PaymentMethod),
		zap.Int64("points_used", ev.PointsUsed),
		zap.Int64("discount", ev.Discount),
		zap.Int64("points_earned", ev.PointsEarned),
		zap.String("occurred_at", ev.OccurredAt),
	)
	return nil
}
