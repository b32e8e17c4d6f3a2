package repository

import (
	"context"
	"database/sql"
)

// Store bundles the repositories the booking service needs behind one
// value and adds transactions that span them.
type Store struct {
	*ShowTimeRepo
	*SeatRepo
	*TicketPriceRepo
	*BookingRepo
	*UserRepo

	db *sql.DB
}

// NewStore builds every repository over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		ShowTimeRepo:    NewShowTimeRepo(db),
		SeatRepo:        NewSeatRepo(db),
		TicketPriceRepo: NewTicketPriceRepo(db),
		BookingRepo:     NewBookingRepo(db),
		UserRepo:        NewUserRepo(db),
		db:              db,
	}
}

// WithTx runs fn in a transaction.  Repository calls made with the context
// fn receives join it; the transaction commits when fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, s.db, fn)
}
