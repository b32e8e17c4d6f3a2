package booking

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
)

// Cancel deletes one of the user's held bookings and releases its seats.
// Confirmed bookings are refused with ErrCannotCancelConfirmed since no
// refund or points reversal exists.  Seat rows are deleted before the
// booking row, in one transaction.  Watchers only hear about seats no
// other active booking has claimed since.
func (s *Service) Cancel(ctx context.Context, userID, bookingID uint64) error {
	if bookingID == 0 {
		return invalid("booking_id is required")
	}
	b, err := s.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		return err
	}
	if b.Status == model.BookingConfirmed {
		return ErrCannotCancelConfirmed
	}

	now := s.clock.Now()
	var seatIDs, freed []uint64
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		ids, err := s.store.BookingSeatIDs(ctx, b.ID)
		if err != nil {
			return storageErr("load booking seats", err)
		}
		if err := s.store.DeleteBookingSeats(ctx, b.ID); err != nil {
			return storageErr("delete booking seats", err)
		}
		n, err := s.store.DeleteHeldBooking(ctx, b.ID, userID)
		if err != nil {
			return storageErr("delete booking", err)
		}
		if n == 0 {
			// Confirmed or deleted since it was loaded.
			return ErrNotFoundOrForbidden
		}
		free, err := s.releasedSeats(ctx, b.ShowTimeID, ids, now)
		if err != nil {
			return storageErr("check seat claims", err)
		}
		seatIDs, freed = ids, free
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("booking cancelled",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("user_id", userID),
		zap.Int("seats", len(seatIDs)))
	s.notify(ctx, b.ShowTimeID, seatDeltas(freed, boolPtr(false), nil))
	s.publish(ctx, queue.BookingEvent{
		Type:       queue.BookingCancelledQueue,
		BookingID:  b.ID,
		UserID:     userID,
		ShowTimeID: b.ShowTimeID,
		SeatIDs:    seatIDs,
		FinalPrice: b.TotalPrice,
		OccurredAt: now.Format(time.RFC3339),
	})
	return nil
}
