package realtime

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

const channelPrefix = "seats:"

// Channel is the Redis pub/sub channel carrying updates of a showtime.
func Channel(showTimeID uint64) string {
	return channelPrefix + strconv.FormatUint(showTimeID, 10)
}

// Relay publishes seat updates to Redis and feeds the updates published by
// every instance, itself included, into the local Hub.
type Relay struct {
	rdb *redis.Client
	hub *Hub
	log *zap.Logger
}

// NewRelay constructs a Relay.  Run must be started for local clients to
// receive anything.
func NewRelay(rdb *redis.Client, hub *Hub, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{rdb: rdb, hub: hub, log: log}
}

// Broadcast publishes deltas on the showtime's channel.
func (r *Relay) Broadcast(ctx context.Context, showTimeID uint64, deltas []model.SeatDelta) error {
	payload, err := encode(showTimeID, deltas)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, Channel(showTimeID), payload).Err(); err != nil {
		return fmt.Errorf("publish seat update: %w", err)
	}
	return nil
}

// Run subscribes to every seat channel and delivers messages to the hub
// until ctx is cancelled.  ready, when non-nil, is closed once the
// subscription is confirmed.
func (r *Relay) Run(ctx context.Context, ready chan<- struct{}) error {
	sub := r.rdb.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe seat updates: %w", err)
	}
	if ready != nil {
		close(ready)
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, err := strconv.ParseUint(strings.TrimPrefix(msg.Channel, channelPrefix), 10, 64)
			if err != nil {
				r.log.Warn("unexpected seat channel", zap.String("channel", msg.Channel))
				continue
			}
			r.hub.Deliver(id, []byte(msg.Payload))
		}
	}
}
