// Package repository contains the MySQL data access for showtimes, seats,
// bookings, ticket prices, wallets and the public catalog.  Methods take
// the transaction from their context when one was started with
// Store.WithTx, so the booking service can group calls without handling
// *sql.Tx itself.  Lookups that match no row return ErrNotFound.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/cinema-ticketing/internal/model"
)

// ShowTimeRepo reads showtimes.  Showtimes are scheduled elsewhere; this
// service never writes them.
type ShowTimeRepo struct {
	db *sql.DB
}

// NewShowTimeRepo constructs a ShowTimeRepo with the given DB handle.
func NewShowTimeRepo(db *sql.DB) *ShowTimeRepo { return &ShowTimeRepo{db: db} }

const showTimeCols = `id, room_id, movie_id, theater_id, show_time`

func scanShowTime(row *sql.Row) (model.ShowTime, error) {
	var st model.ShowTime
	err := row.Scan(&st.ID, &st.RoomID, &st.MovieID, &st.TheaterID, &st.StartsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ShowTime{}, ErrNotFound
	}
	return st, err
}

// GetShowTime returns a showtime by id.
func (r *ShowTimeRepo) GetShowTime(ctx context.Context, id uint64) (model.ShowTime, error) {
	const q = `SELECT ` + showTimeCols + ` FROM show_times WHERE id = ?`
	return scanShowTime(conn(ctx, r.db).QueryRowContext(ctx, q, id))
}

// LockShowTime reads a showtime with FOR UPDATE.  It must run inside a
// transaction; the row stays locked until that transaction ends, which
// serializes every hold on the showtime.
func (r *ShowTimeRepo) LockShowTime(ctx context.Context, id uint64) (model.ShowTime, error) {
	const q = `SELECT ` + showTimeCols + ` FROM show_times WHERE id = ? FOR UPDATE`
	return scanShowTime(conn(ctx, r.db).QueryRowContext(ctx, q, id))
}

// ShowTimeQuery filters and pages the public showtime listing.  Zero ids
// mean no filter.  TimeFilter is "upcoming" (default) or "any".
type ShowTimeQuery struct {
	MovieID    uint64
	TheaterID  uint64
	TimeFilter string
	Page       int
	PageSize   int
}

// ShowTimeRow is a showtime as listed publicly, with its movie and theater
// names.
type ShowTimeRow struct {
	ID          uint64    `json:"id"`
	MovieID     uint64    `json:"movie_id"`
	MovieTitle  string    `json:"movie_title"`
	TheaterID   uint64    `json:"theater_id"`
	TheaterName string    `json:"theater_name"`
	RoomID      uint64    `json:"room_id"`
	ShowTime    time.Time `json:"show_time"`
}

// SearchShowTimes lists showtimes matching q ordered by start time, along
// with the total number of matches.
func (r *ShowTimeRepo) SearchShowTimes(ctx context.Context, q ShowTimeQuery, now time.Time) ([]ShowTimeRow, int64, error) {
	where := []string{}
	args := []any{}

	if strings.ToLower(q.TimeFilter) != "any" {
		where = append(where, "st.show_time >= ?")
		args = append(args, now)
	}
	if q.MovieID != 0 {
		where = append(where, "st.movie_id = ?")
		args = append(args, q.MovieID)
	}
	if q.TheaterID != 0 {
		where = append(where, "st.theater_id = ?")
		args = append(args, q.TheaterID)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int64
	countSQL := `SELECT COUNT(*) FROM show_times st WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if q.PageSize < 1 {
		q.PageSize = 20
	}
	if q.Page < 1 {
		q.Page = 1
	}
	dataSQL := `SELECT st.id, st.movie_id, m.title, st.theater_id, t.name, st.room_id, st.show_time
		FROM show_times st
		JOIN movies m   ON m.id = st.movie_id
		JOIN theaters t ON t.id = st.theater_id
		WHERE ` + cond + `
		ORDER BY st.show_time ASC, st.id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]ShowTimeRow, 0, q.PageSize)
	for rows.Next() {
		var d ShowTimeRow
		if err := rows.Scan(&d.ID, &d.MovieID, &d.MovieTitle, &d.TheaterID, &d.TheaterName, &d.RoomID, &d.ShowTime); err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetShowTimeRow returns one showtime with its movie and theater names.
func (r *ShowTimeRepo) GetShowTimeRow(ctx context.Context, id uint64) (ShowTimeRow, error) {
	const q = `SELECT st.id, st.movie_id, m.title, st.theater_id, t.name, st.room_id, st.show_time
		FROM show_times st
		JOIN movies m   ON m.id = st.movie_id
		JOIN theaters t ON t.id = st.theater_id
		WHERE st.id = ?`
	var d ShowTimeRow
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.MovieID, &d.MovieTitle, &d.TheaterID, &d.TheaterName, &d.RoomID, &d.ShowTime)
	if errors.Is(err, sql.ErrNoRows) {
		return ShowTimeRow{}, ErrNotFound
	}
	return d, err
}
