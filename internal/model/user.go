package model

// Wallet is the loyalty part of a row in the `users` table.  Identity
// fields live with the external identity provider; this service only reads
// and updates the balance columns.
//
// Fields:
//
//	UserID     – users.id.
//	Points     – loyalty balance.
//	MoneySpent – cumulative amount paid for confirmed bookings.
type Wallet struct {
	UserID     uint64  // users.id
	Points     int64   // users.points
	MoneySpent float64 // users.moneySpent
}

// TicketPrice maps a seat type of a showtime to its unit price.
type TicketPrice struct {
	ShowTimeID uint64 // ticket_prices.show_time_id
	SeatType   string // ticket_prices.seat_type
	Price      int64  // ticket_prices.price
}
