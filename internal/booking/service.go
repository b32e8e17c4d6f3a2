// Package booking implements the seat hold and booking lifecycle: seat
// availability, time-boxed holds, confirmation with loyalty points, and
// cancellation.  Seat state changes are pushed to a Notifier and booking
// events to an EventPublisher; both are best effort and never fail the
// operation that triggered them.
package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/clock"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// DefaultHoldTTL is how long a hold blocks its seats.
const DefaultHoldTTL = 5 * time.Minute

// Store is the datastore the service runs against.  Methods called inside
// WithTx take the transaction from the context they receive.  Lookups that
// find nothing return repository.ErrNotFound.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetShowTime(ctx context.Context, id uint64) (model.ShowTime, error)
	// LockShowTime reads the showtime and locks its row until the
	// transaction ends.  Holds on the same showtime serialize on it.
	LockShowTime(ctx context.Context, id uint64) (model.ShowTime, error)

	SeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error)
	SeatAvailability(ctx context.Context, showTimeID uint64, now time.Time) ([]model.SeatAvailability, error)
	TicketPrices(ctx context.Context, showTimeID uint64) (pricing.Table, error)

	ActiveClaims(ctx context.Context, showTimeID uint64, now time.Time) ([]model.SeatClaim, error)
	ClaimedSeatIDs(ctx context.Context, showTimeID uint64, seatIDs []uint64, now time.Time) ([]uint64, error)

	CreateBooking(ctx context.Context, b *model.Booking) error
	AddBookingSeats(ctx context.Context, bookingID uint64, seatIDs []uint64) error
	GetBooking(ctx context.Context, id uint64) (model.Booking, error)
	BookingSeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error)
	ConfirmBooking(ctx context.Context, c model.Confirmation) (int64, error)
	DeleteBookingSeats(ctx context.Context, bookingID uint64) error
	DeleteHeldBooking(ctx context.Context, bookingID, userID uint64) (int64, error)
	ListBookingsByUser(ctx context.Context, userID uint64, now time.Time) ([]model.BookingDetail, error)

	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.ExpiredHold, error)
	DeleteExpiredBooking(ctx context.Context, bookingID uint64, now time.Time) (int64, error)

	GetWallet(ctx context.Context, userID uint64) (model.Wallet, error)
	// RedeemPoints takes points off the balance only when it still covers
	// them and reports the rows changed.
	RedeemPoints(ctx context.Context, userID uint64, points int64) (int64, error)
	ApplyWallet(ctx context.Context, userID uint64, pointsDelta int64, spent float64) error
}

// Notifier pushes seat deltas to everyone watching a showtime.
type Notifier interface {
	Broadcast(ctx context.Context, showTimeID uint64, seats []model.SeatDelta) error
}

// EventPublisher hands booking events to the message broker.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, ev queue.BookingEvent) error
}

// Service runs the booking operations.  It holds no per-request state and
// is safe for concurrent use; consistency comes from the Store.
type Service struct {
	store         Store
	notifier      Notifier
	events        EventPublisher
	clock         clock.Clock
	log           *zap.Logger
	holdTTL       time.Duration
	strictPricing bool
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the realtime notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithEventPublisher sets the broker publisher.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHoldTTL overrides DefaultHoldTTL.
func WithHoldTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithStrictPricing controls whether a hold on a seat type without a ticket
// price is rejected (true) or priced at zero (false).
func WithStrictPricing(strict bool) Option {
	return func(s *Service) { s.strictPricing = strict }
}

// NewService builds a Service over store.  Without options it uses the
// system clock, a five minute hold, strict pricing and discards
// notifications and events.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:         store,
		notifier:      nopNotifier{},
		events:        nopPublisher{},
		clock:         clock.NewSystem(),
		log:           zap.NewNop(),
		holdTTL:       DefaultHoldTTL,
		strictPricing: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// notify broadcasts deltas and logs a failure instead of returning it.
func (s *Service) notify(ctx context.Context, showTimeID uint64, deltas []model.SeatDelta) {
	if len(deltas) == 0 {
		return
	}
	if err := s.notifier.Broadcast(ctx, showTimeID, deltas); err != nil {
		s.log.Warn("seat broadcast failed",
			zap.Uint64("show_time_id", showTimeID),
			zap.Int("seats", len(deltas)),
			zap.Error(err))
	}
}

// publish sends ev with its own deadline so a slow broker cannot hold the
// request, and so a cancelled request still gets its event out.
func (s *Service) publish(ctx context.Context, ev queue.BookingEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.PublishBookingEvent(ctx, ev); err != nil {
		s.log.Warn("booking event publish failed",
			zap.String("type", ev.Type),
			zap.Uint64("booking_id", ev.BookingID),
			zap.Error(err))
	}
}

// releasedSeats drops from ids the seats another active booking still
// claims, so a stale hold going away does not mark them free.
func (s *Service) releasedSeats(ctx context.Context, showTimeID uint64, ids []uint64, now time.Time) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	claimed, err := s.store.ClaimedSeatIDs(ctx, showTimeID, ids, now)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return ids, nil
	}
	taken := make(map[uint64]struct{}, len(claimed))
	for _, id := range claimed {
		taken[id] = struct{}{}
	}
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := taken[id]; !ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func seatDeltas(ids []uint64, held, booked *bool) []model.SeatDelta {
	out := make([]model.SeatDelta, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.SeatDelta{ID: id, IsHeld: held, IsBooked: booked})
	}
	return out
}

func boolPtr(v bool) *bool { return &v }

type nopNotifier struct{}

func (nopNotifier) Broadcast(context.Context, uint64, []model.SeatDelta) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishBookingEvent(context.Context, queue.BookingEvent) error { return nil }
