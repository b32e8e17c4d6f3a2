package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// activeBooking is the predicate for a booking that still claims its
// seats.  It expects the bookings table aliased as b and one argument, the
// current time.  Expired holds stay in the table and fail this predicate.
const activeBooking = `b.status IN ('held', 'confirmed') AND (b.expire_at IS NULL OR b.expire_at > ?)`

// SeatRepo provides methods to read seats and their availability.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// SeatsByIDs returns the seats with the given ids.  Unknown ids are
// skipped; callers compare the result against what they asked for.
func (r *SeatRepo) SeatsByIDs(ctx context.Context, ids []uint64) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph, args := inClause(ids)
	q := `SELECT id, room_id, seat_number, seat_type FROM seats WHERE id IN (` + ph + `)`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.RoomID, &s.SeatNumber, &s.SeatType); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SeatAvailability lists every seat of the showtime's room ordered by seat
// number, flagging the ones an active booking covers at now.
func (r *SeatRepo) SeatAvailability(ctx context.Context, showTimeID uint64, now time.Time) ([]model.SeatAvailability, error) {
	const q = `SELECT s.id, s.seat_number, s.seat_type,
	                  NOT EXISTS (
	                      SELECT 1
	                      FROM booking_seats bs
	                      JOIN bookings b ON b.id = bs.booking_id
	                      WHERE bs.seat_id = s.id AND b.show_time_id = st.id
	                        AND ` + activeBooking + `
	                  ) AS is_available
	           FROM show_times st
	           JOIN seats s ON s.room_id = st.room_id
	           WHERE st.id = ?
	           ORDER BY s.seat_number, s.id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, now, showTimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]model.SeatAvailability, 0)
	for rows.Next() {
		var s model.SeatAvailability
		if err := rows.Scan(&s.ID, &s.SeatNumber, &s.SeatType, &s.IsAvailable); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
