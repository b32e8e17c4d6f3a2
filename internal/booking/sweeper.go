package booking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// sweepBatch caps how many expired holds one sweep removes.
const sweepBatch = 200

// errStillActive rolls back a sweep of a booking that was confirmed or
// removed after it was listed.
var errStillActive = errors.New("booking no longer an expired hold")

// SweepExpired deletes held bookings whose expiry has passed and tells
// watchers their seats are free again, unless a newer booking holds them.  Expired holds already stop counting
// at read time, so the sweep only keeps the tables small.  The delete is
// conditioned on the hold still being expired, which leaves a concurrent
// confirmation alone.  It returns the number of bookings removed.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	holds, err := s.store.ExpiredHolds(ctx, now, sweepBatch)
	if err != nil {
		return 0, storageErr("list expired holds", err)
	}

	removed := 0
	for _, h := range holds {
		var freed []uint64
		err := s.store.WithTx(ctx, func(ctx context.Context) error {
			if err := s.store.DeleteBookingSeats(ctx, h.BookingID); err != nil {
				return err
			}
			n, err := s.store.DeleteExpiredBooking(ctx, h.BookingID, now)
			if err != nil {
				return err
			}
			if n == 0 {
				return errStillActive
			}
			freed, err = s.releasedSeats(ctx, h.ShowTimeID, h.SeatIDs, now)
			return err
		})
		if errors.Is(err, errStillActive) {
			continue
		}
		if err != nil {
			s.log.Warn("expired hold cleanup failed", zap.Uint64("booking_id", h.BookingID), zap.Error(err))
			continue
		}
		removed++
		s.notify(ctx, h.ShowTimeID, seatDeltas(freed, boolPtr(false), nil))
	}
	if removed > 0 {
		s.log.Info("expired holds swept", zap.Int("removed", removed))
	}
	return removed, nil
}

// RunSweeper calls SweepExpired every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SweepExpired(ctx); err != nil {
				s.log.Warn("sweep expired holds", zap.Error(err))
			}
		}
	}
}
