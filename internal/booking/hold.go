package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// HoldResult describes a freshly created hold.
type HoldResult struct {
	BookingID  uint64
	ShowTimeID uint64
	SeatIDs    []uint64
	ExpireAt   time.Time
	TotalPrice int64
}

// Hold reserves seatIDs of a showtime for userID until the hold TTL runs
// out.  Either every requested seat is held or none is: when any seat is
// claimed by an active booking the call fails with *SeatConflictError
// listing them.  The availability check and the insert run in one
// transaction that holds the showtime row lock, so two concurrent holds on
// the same showtime cannot both pass the check.
func (s *Service) Hold(ctx context.Context, userID, showTimeID uint64, seatIDs []uint64) (HoldResult, error) {
	if showTimeID == 0 {
		return HoldResult{}, invalid("show_time_id is required")
	}
	ids := uniqueIDs(seatIDs)
	if len(ids) == 0 {
		return HoldResult{}, invalid("seat_ids is required")
	}

	now := s.clock.Now()
	expireAt := now.Add(s.holdTTL)
	var res HoldResult

	err := s.store.WithTx(ctx, func(ctx context.Context) error {
		st, err := s.store.LockShowTime(ctx, showTimeID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalid("unknown show time %d", showTimeID)
			}
			return storageErr("lock show time", err)
		}

		seats, err := s.store.SeatsByIDs(ctx, ids)
		if err != nil {
			return storageErr("load seats", err)
		}
		byID := make(map[uint64]model.Seat, len(seats))
		for _, seat := range seats {
			if seat.RoomID == st.RoomID {
				byID[seat.ID] = seat
			}
		}
		var foreign []uint64
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				foreign = append(foreign, id)
			}
		}
		if len(foreign) > 0 {
			return &ValidationError{Msg: "seats do not belong to the show time's room", SeatIDs: foreign}
		}

		claimed, err := s.store.ClaimedSeatIDs(ctx, showTimeID, ids, now)
		if err != nil {
			return storageErr("check seat claims", err)
		}
		if len(claimed) > 0 {
			return &SeatConflictError{SeatIDs: sortedIDs(claimed)}
		}

		table, err := s.store.TicketPrices(ctx, showTimeID)
		if err != nil {
			return storageErr("load ticket prices", err)
		}
		types := make([]string, 0, len(ids))
		for _, id := range ids {
			types = append(types, byID[id].SeatType)
		}
		if s.strictPricing {
			if missing := pricing.Missing(table, types); len(missing) > 0 {
				return &ValidationError{Msg: "no ticket price for seat type", Types: missing}
			}
		}

		b := &model.Booking{
			UserID:     userID,
			ShowTimeID: showTimeID,
			Status:     model.BookingHeld,
			TotalPrice: pricing.TotalFor(table, types),
			CreatedAt:  now,
			ExpireAt:   &expireAt,
		}
		if err := s.store.CreateBooking(ctx, b); err != nil {
			return storageErr("create booking", err)
		}
		// A failure here rolls the booking back with the transaction.
		if err := s.store.AddBookingSeats(ctx, b.ID, ids); err != nil {
			return storageErr("add booking seats", err)
		}

		res = HoldResult{
			BookingID:  b.ID,
			ShowTimeID: showTimeID,
			SeatIDs:    ids,
			ExpireAt:   expireAt,
			TotalPrice: b.TotalPrice,
		}
		return nil
	})
	if err != nil {
		return HoldResult{}, err
	}

	s.log.Info("seats held",
		zap.Uint64("booking_id", res.BookingID),
		zap.Uint64("user_id", userID),
		zap.Uint64("show_time_id", showTimeID),
		zap.Int("seats", len(ids)),
		zap.Int64("total_price", res.TotalPrice))
	s.notify(ctx, showTimeID, seatDeltas(ids, boolPtr(true), nil))
	return res, nil
}

// uniqueIDs drops zero and duplicate ids, keeping the first occurrence order.
func uniqueIDs(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedIDs(ids []uint64) []uint64 {
	out := append([]uint64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
