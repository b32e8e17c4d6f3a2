package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// ConfirmInput is a request to pay for a held booking.
type ConfirmInput struct {
	UserID        uint64
	BookingID     uint64
	PaymentMethod string
	PointsToUse   int64
}

// Confirm turns a held booking into a confirmed one.  Points are redeemed
// and earned per the pricing rules.  The booking write is conditioned on
// the booking still being an unexpired hold of this user; when it matches
// no row the call fails with ErrConfirmationLost.  Redeemed points leave
// the balance in the same transaction.  Crediting earned points and money
// spent afterwards is best effort: its failure is logged and the booking
// stays confirmed.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput) (pricing.Quote, error) {
	if in.BookingID == 0 {
		return pricing.Quote{}, invalid("booking_id is required")
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		return pricing.Quote{}, invalid("payment_method is required")
	}
	if in.PointsToUse < 0 {
		return pricing.Quote{}, invalid("use_points must not be negative")
	}

	b, err := s.ownedBooking(ctx, in.UserID, in.BookingID)
	if err != nil {
		return pricing.Quote{}, err
	}
	if b.Status == model.BookingConfirmed {
		return pricing.Quote{}, ErrAlreadyConfirmed
	}
	now := s.clock.Now()
	if !b.IsActive(now) {
		return pricing.Quote{}, ErrHoldExpired
	}

	wallet, err := s.store.GetWallet(ctx, in.UserID)
	if err != nil {
		return pricing.Quote{}, storageErr("load wallet", err)
	}
	quote, err := pricing.Confirm(b.TotalPrice, wallet.Points, in.PointsToUse)
	if err != nil {
		return pricing.Quote{}, err
	}

	// The booking write and the redemption commit together.  The
	// redemption is conditioned on the balance so a concurrent confirm by
	// the same user cannot spend the same points twice.
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		n, err := s.store.ConfirmBooking(ctx, model.Confirmation{
			BookingID:     b.ID,
			UserID:        in.UserID,
			PaymentMethod: method,
			FinalPrice:    quote.FinalPrice,
			PointsUsed:    quote.PointsUsed,
			Discount:      quote.Discount,
			Now:           now,
		})
		if err != nil {
			return storageErr("confirm booking", err)
		}
		if n == 0 {
			return ErrConfirmationLost
		}
		if quote.PointsUsed == 0 {
			return nil
		}
		n, err = s.store.RedeemPoints(ctx, in.UserID, quote.PointsUsed)
		if err != nil {
			return storageErr("redeem points", err)
		}
		if n == 0 {
			available := int64(0)
			if w, err := s.store.GetWallet(ctx, in.UserID); err == nil {
				available = w.Points
			}
			return &pricing.InsufficientPointsError{Requested: in.PointsToUse, Available: available}
		}
		return nil
	})
	if err != nil {
		return pricing.Quote{}, err
	}

	if err := s.store.ApplyWallet(ctx, in.UserID, quote.PointsEarned, float64(quote.FinalPrice)); err != nil {
		s.log.Error("wallet update after confirmation failed",
			zap.Uint64("booking_id", b.ID),
			zap.Uint64("user_id", in.UserID),
			zap.Int64("points_earned", quote.PointsEarned),
			zap.Int64("final_price", quote.FinalPrice),
			zap.Error(err))
	}

	s.log.Info("booking confirmed",
		zap.Uint64("booking_id", b.ID),
		zap.Uint64("user_id", in.UserID),
		zap.Int64("final_price", quote.FinalPrice),
		zap.Int64("points_used", quote.PointsUsed),
		zap.Int64("points_earned", quote.PointsEarned))

	seatIDs, err := s.store.BookingSeatIDs(ctx, b.ID)
	if err != nil {
		s.log.Warn("load booking seats for broadcast failed", zap.Uint64("booking_id", b.ID), zap.Error(err))
	}
	s.notify(ctx, b.ShowTimeID, seatDeltas(seatIDs, boolPtr(false), boolPtr(true)))
	s.publish(ctx, queue.BookingEvent{
		Type:          queue.BookingConfirmedQueue,
		BookingID:     b.ID,
		UserID:        in.UserID,
		ShowTimeID:    b.ShowTimeID,
		SeatIDs:       seatIDs,
		FinalPrice:    quote.FinalPrice,
		PaymentMethod: method,
		PointsUsed:    quote.PointsUsed,
		Discount:      quote.Discount,
		PointsEarned:  quote.PointsEarned,
		OccurredAt:    now.Format(time.RFC3339),
	})
	return quote, nil
}

// ownedBooking loads a booking and hides it from everyone but its owner.
func (s *Service) ownedBooking(ctx context.Context, userID, bookingID uint64) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Booking{}, ErrNotFoundOrForbidden
		}
		return model.Booking{}, storageErr("get booking", err)
	}
	if b.UserID != userID {
		return model.Booking{}, ErrNotFoundOrForbidden
	}
	return b, nil
}
