package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-ticketing/internal/pricing"
)

// TicketPriceRepo reads the per seat type prices of showtimes.  Each
// (show_time_id, seat_type) pair is unique.
type TicketPriceRepo struct {
	db *sql.DB
}

// NewTicketPriceRepo constructs a TicketPriceRepo given a DB handle.
func NewTicketPriceRepo(db *sql.DB) *TicketPriceRepo {
	return &TicketPriceRepo{db: db}
}

// TicketPrices returns the price table of a showtime.  A showtime without
// prices yields an empty table.
func (r *TicketPriceRepo) TicketPrices(ctx context.Context, showTimeID uint64) (pricing.Table, error) {
	const q = `SELECT seat_type, price FROM ticket_prices WHERE show_time_id = ?`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, showTimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	table := pricing.Table{}
	for rows.Next() {
		var seatType string
		var price int64
		if err := rows.Scan(&seatType, &price); err != nil {
			return nil, err
		}
		table[seatType] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
