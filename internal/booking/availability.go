package booking

import (
	"context"
	"errors"

	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/pricing"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
)

// Availability returns every seat of the showtime's room and whether it is
// free.  A seat is taken while an active booking covers it; holds past their
// expiry do not count and are left untouched.
func (s *Service) Availability(ctx context.Context, showTimeID uint64) ([]model.SeatAvailability, error) {
	if err := s.requireShowTime(ctx, showTimeID); err != nil {
		return nil, err
	}
	seats, err := s.store.SeatAvailability(ctx, showTimeID, s.clock.Now())
	if err != nil {
		return nil, storageErr("seat availability", err)
	}
	return seats, nil
}

// Status lists the active hold and confirm rows of a showtime.
func (s *Service) Status(ctx context.Context, showTimeID uint64) ([]model.SeatClaim, error) {
	if err := s.requireShowTime(ctx, showTimeID); err != nil {
		return nil, err
	}
	claims, err := s.store.ActiveClaims(ctx, showTimeID, s.clock.Now())
	if err != nil {
		return nil, storageErr("active claims", err)
	}
	return claims, nil
}

// TicketPrices returns the price per seat type of a showtime.
func (s *Service) TicketPrices(ctx context.Context, showTimeID uint64) (pricing.Table, error) {
	if err := s.requireShowTime(ctx, showTimeID); err != nil {
		return nil, err
	}
	table, err := s.store.TicketPrices(ctx, showTimeID)
	if err != nil {
		return nil, storageErr("ticket prices", err)
	}
	return table, nil
}

// MyBookings lists the user's confirmed bookings and unexpired holds.
func (s *Service) MyBookings(ctx context.Context, userID uint64) ([]model.BookingDetail, error) {
	list, err := s.store.ListBookingsByUser(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, storageErr("list bookings", err)
	}
	return list, nil
}

// Booking returns one of the user's bookings.  Bookings of other users are
// reported as not found.
func (s *Service) Booking(ctx context.Context, userID, bookingID uint64) (model.BookingDetail, error) {
	list, err := s.MyBookings(ctx, userID)
	if err != nil {
		return model.BookingDetail{}, err
	}
	for _, d := range list {
		if d.ID == bookingID {
			return d, nil
		}
	}
	return model.BookingDetail{}, ErrNotFoundOrForbidden
}

func (s *Service) requireShowTime(ctx context.Context, showTimeID uint64) error {
	if showTimeID == 0 {
		return invalid("show_time_id is required")
	}
	if _, err := s.store.GetShowTime(ctx, showTimeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("unknown show time %d", showTimeID)
		}
		return storageErr("get show time", err)
	}
	return nil
}
