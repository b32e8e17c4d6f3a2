package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// BookingRepo provides operations for bookings and their seats.  A booking
// groups one or more seats of a showtime for one user; the seats are
// stored in booking_seats.  All timestamps are UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// ActiveClaims lists the seats of a showtime held or booked at now, one
// row per seat.
func (r *BookingRepo) ActiveClaims(ctx context.Context, showTimeID uint64, now time.Time) ([]model.SeatClaim, error) {
	const q = `SELECT bs.seat_id, b.id, b.status, b.expire_at
	           FROM bookings b
	           JOIN booking_seats bs ON bs.booking_id = b.id
	           WHERE b.show_time_id = ? AND ` + activeBooking + `
	           ORDER BY bs.seat_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, showTimeID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claims := make([]model.SeatClaim, 0)
	for rows.Next() {
		var c model.SeatClaim
		var expireAt sql.NullTime
		if err := rows.Scan(&c.SeatID, &c.BookingID, &c.Status, &expireAt); err != nil {
			return nil, err
		}
		if expireAt.Valid {
			t := expireAt.Time.UTC()
			c.ExpireAt = &t
		}
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claims, nil
}

// ClaimedSeatIDs returns which of seatIDs an active booking of the
// showtime covers at now.
func (r *BookingRepo) ClaimedSeatIDs(ctx context.Context, showTimeID uint64, seatIDs []uint64, now time.Time) ([]uint64, error) {
	if len(seatIDs) == 0 {
		return nil, nil
	}
	ph, seatArgs := inClause(seatIDs)
	q := `SELECT DISTINCT bs.seat_id
	      FROM bookings b
	      JOIN booking_seats bs ON bs.booking_id = b.id
	      WHERE b.show_time_id = ? AND bs.seat_id IN (` + ph + `) AND ` + activeBooking
	args := make([]any, 0, len(seatArgs)+2)
	args = append(args, showTimeID)
	args = append(args, seatArgs...)
	args = append(args, now)
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var claimed []uint64
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		claimed = append(claimed, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return claimed, nil
}

// CreateBooking inserts a booking and populates its generated ID.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, show_time_id, status, total_price, points_used, discount_amount, created_at, expire_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var expireAt any
	if b.ExpireAt != nil {
		expireAt = b.ExpireAt.UTC()
	}
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		b.UserID, b.ShowTimeID, b.Status, b.TotalPrice, b.PointsUsed, b.DiscountAmount, b.CreatedAt.UTC(), expireAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// AddBookingSeats inserts the booking_seats rows of a booking in a single
// statement.  Passing no seats has no effect.
func (r *BookingRepo) AddBookingSeats(ctx context.Context, bookingID uint64, seatIDs []uint64) error {
	if len(seatIDs) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, seat_id) VALUES `
	args := make([]any, 0, len(seatIDs)*2)
	for i, sid := range seatIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?)"
		args = append(args, bookingID, sid)
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, query, args...)
	return err
}

// GetBooking fetches a booking by id.
func (r *BookingRepo) GetBooking(ctx context.Context, id uint64) (model.Booking, error) {
	const q = `SELECT id, user_id, show_time_id, status, total_price, payment_method,
	                  points_used, discount_amount, created_at, expire_at
	           FROM bookings WHERE id = ?`
	var b model.Booking
	var method sql.NullString
	var expireAt sql.NullTime
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.UserID, &b.ShowTimeID, &b.Status, &b.TotalPrice, &method,
		&b.PointsUsed, &b.DiscountAmount, &b.CreatedAt, &expireAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	if method.Valid {
		m := method.String
		b.PaymentMethod = &m
	}
	if expireAt.Valid {
		t := expireAt.Time.UTC()
		b.ExpireAt = &t
	}
	return b, nil
}

// BookingSeatIDs returns the seat ids of a booking.
func (r *BookingRepo) BookingSeatIDs(ctx context.Context, bookingID uint64) ([]uint64, error) {
	const q = `SELECT seat_id FROM booking_seats WHERE booking_id = ? ORDER BY seat_id`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seatIDs []uint64
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		seatIDs = append(seatIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seatIDs, nil
}

// ConfirmBooking marks a held booking confirmed and clears its expiry.  The
// update only matches while the booking is an unexpired hold of c.UserID;
// it returns the number of rows changed, 0 when it lost that race.
func (r *BookingRepo) ConfirmBooking(ctx context.Context, c model.Confirmation) (int64, error) {
	const q = `UPDATE bookings
	           SET status = 'confirmed', expire_at = NULL, total_price = ?, payment_method = ?,
	               points_used = ?, discount_amount = ?
	           WHERE id = ? AND user_id = ? AND status = 'held'
	             AND (expire_at IS NULL OR expire_at > ?)`
	res, err := conn(ctx, r.db).ExecContext(ctx, q,
		c.FinalPrice, c.PaymentMethod, c.PointsUsed, c.Discount,
		c.BookingID, c.UserID, c.Now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteBookingSeats removes every seat row of a booking.
func (r *BookingRepo) DeleteBookingSeats(ctx context.Context, bookingID uint64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, bookingID)
	return err
}

// DeleteHeldBooking deletes a booking that is still held by userID.  It
// returns the number of rows deleted.
func (r *BookingRepo) DeleteHeldBooking(ctx context.Context, bookingID, userID uint64) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ? AND user_id = ? AND status = 'held'`, bookingID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBookingsByUser returns the user's active bookings, newest first,
// with the movie, theater and seat numbers of each.  Expired holds are
// left out.
func (r *BookingRepo) ListBookingsByUser(ctx context.Context, userID uint64, now time.Time) ([]model.BookingDetail, error) {
	const q = `SELECT b.id, b.show_time_id, b.status, b.total_price, b.payment_method,
	                  b.points_used, b.discount_amount, b.created_at, b.expire_at,
	                  m.title, t.name, st.show_time
	           FROM bookings b
	           JOIN show_times st ON st.id = b.show_time_id
	           JOIN movies m      ON m.id = st.movie_id
	           JOIN theaters t    ON t.id = st.theater_id
	           WHERE b.user_id = ? AND ` + activeBooking + `
	           ORDER BY b.created_at DESC, b.id DESC`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details := make([]model.BookingDetail, 0)
	// index by booking ID for seat population
	index := make(map[uint64]int)
	for rows.Next() {
		var d model.BookingDetail
		var method sql.NullString
		var expireAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.ShowTimeID, &d.Status, &d.TotalPrice, &method,
			&d.PointsUsed, &d.DiscountAmount, &d.CreatedAt, &expireAt,
			&d.MovieTitle, &d.TheaterName, &d.StartsAt,
		); err != nil {
			return nil, err
		}
		if method.Valid {
			m := method.String
			d.PaymentMethod = &m
		}
		if expireAt.Valid {
			t := expireAt.Time.UTC()
			d.ExpireAt = &t
		}
		d.Seats = []string{}
		index[d.ID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}

	// Fetch seats for all bookings in one query
	ids := make([]uint64, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ID)
	}
	ph, args := inClause(ids)
	seatQuery := `SELECT bs.booking_id, se.seat_number
	              FROM booking_seats bs
	              JOIN seats se ON se.id = bs.seat_id
	              WHERE bs.booking_id IN (` + ph + `)
	              ORDER BY bs.booking_id, se.seat_number`
	srows, err := conn(ctx, r.db).QueryContext(ctx, seatQuery, args...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bookingID uint64
		var seatNumber string
		if err := srows.Scan(&bookingID, &seatNumber); err != nil {
			return nil, err
		}
		idx, ok := index[bookingID]
		if !ok {
			continue
		}
		details[idx].Seats = append(details[idx].Seats, seatNumber)
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ExpiredHolds returns up to limit held bookings whose expiry is at or
// before now, oldest first, with their seat ids.
func (r *BookingRepo) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]model.ExpiredHold, error) {
	const q = `SELECT id, show_time_id FROM bookings
	           WHERE status = 'held' AND expire_at IS NOT NULL AND expire_at <= ?
	           ORDER BY expire_at ASC, id ASC
	           LIMIT ?`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, now, limit)
	if err != nil {
		return nil, err
	}
	var holds []model.ExpiredHold
	index := make(map[uint64]int)
	for rows.Next() {
		var h model.ExpiredHold
		if scanErr := rows.Scan(&h.BookingID, &h.ShowTimeID); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		index[h.BookingID] = len(holds)
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}
	if len(holds) == 0 {
		return holds, nil
	}

	ids := make([]uint64, 0, len(holds))
	for _, h := range holds {
		ids = append(ids, h.BookingID)
	}
	ph, args := inClause(ids)
	srows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT booking_id, seat_id FROM booking_seats WHERE booking_id IN (`+ph+`) ORDER BY booking_id, seat_id`, args...)
	if err != nil {
		return nil, err
	}
	defer srows.Close()
	for srows.Next() {
		var bid, sid uint64
		if err := srows.Scan(&bid, &sid); err != nil {
			return nil, err
		}
		if idx, ok := index[bid]; ok {
			holds[idx].SeatIDs = append(holds[idx].SeatIDs, sid)
		}
	}
	if err := srows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

// DeleteExpiredBooking deletes a held booking whose expiry is at or before
// now.  It returns 0 when the booking was confirmed or removed meanwhile.
func (r *BookingRepo) DeleteExpiredBooking(ctx context.Context, bookingID uint64, now time.Time) (int64, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM bookings WHERE id = ? AND status = 'held' AND expire_at IS NOT NULL AND expire_at <= ?`,
		bookingID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
