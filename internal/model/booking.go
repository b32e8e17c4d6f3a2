package model

import "time"

// Booking statuses.  Cancelled bookings are deleted rather than marked, so
// there is no cancelled status.
const (
	BookingHeld      = "held"
	BookingConfirmed = "confirmed"
)

// Booking records a user's claim on one or more seats of a showtime.  A
// booking starts out held with an expiry and becomes confirmed once paid.
//
// Fields:
//
//	ID             – primary key identifier.
//	UserID         – user who owns the booking.
//	ShowTimeID     – showtime the seats are claimed for.
//	Status         – held or confirmed.
//	TotalPrice     – price of all seats; final price once confirmed.
//	PaymentMethod  – payment method chosen at confirmation (nil while held).
//	PointsUsed     – loyalty points redeemed at confirmation.
//	DiscountAmount – discount granted for the redeemed points.
//	CreatedAt      – creation timestamp.
//	ExpireAt       – hold expiry; nil once confirmed.
type Booking struct {
	ID             uint64     // bookings.id
	UserID         uint64     // bookings.user_id
	ShowTimeID     uint64     // bookings.show_time_id
	Status         string     // bookings.status
	TotalPrice     int64      // bookings.total_price
	PaymentMethod  *string    // bookings.payment_method (nullable)
	PointsUsed     int64      // bookings.points_used
	DiscountAmount int64      // bookings.discount_amount
	CreatedAt      time.Time  // bookings.created_at
	ExpireAt       *time.Time // bookings.expire_at (nullable)
}

// IsActive reports whether the booking still claims its seats at now.  It
// mirrors the SQL predicate used by the repositories: status held or
// confirmed and no expiry in the past.  Expired holds are never rewritten,
// this predicate is what releases them.
func (b Booking) IsActive(now time.Time) bool {
	if b.Status != BookingHeld && b.Status != BookingConfirmed {
		return false
	}
	return b.ExpireAt == nil || b.ExpireAt.After(now)
}

// BookingSeat links a booking to one seat.  The showtime is implied by the
// booking.
type BookingSeat struct {
	BookingID uint64 // booking_seats.booking_id
	SeatID    uint64 // booking_seats.seat_id
}

// SeatClaim is one active booking row for a (seat, showtime) pair as shown by
// the status endpoint.
type SeatClaim struct {
	SeatID    uint64     `json:"seat_id"`
	BookingID uint64     `json:"booking_id"`
	Status    string     `json:"status"`
	ExpireAt  *time.Time `json:"expire_at"`
}

// BookingDetail is a booking as listed to its owner, with the screening it
// belongs to and the seat numbers it claims.
type BookingDetail struct {
	ID             uint64     `json:"id"`
	ShowTimeID     uint64     `json:"show_time_id"`
	Status         string     `json:"status"`
	TotalPrice     int64      `json:"total_price"`
	PaymentMethod  *string    `json:"payment_method"`
	PointsUsed     int64      `json:"points_used"`
	DiscountAmount int64      `json:"discount_amount"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpireAt       *time.Time `json:"expire_at"`
	MovieTitle     string     `json:"movie_title"`
	TheaterName    string     `json:"theater_name"`
	StartsAt       time.Time  `json:"show_time"`
	Seats          []string   `json:"seats"`
}

// ExpiredHold is a held booking whose expiry has passed, with the seats it
// used to claim.
type ExpiredHold struct {
	BookingID  uint64
	ShowTimeID uint64
	SeatIDs    []uint64
}

// Confirmation holds the values written when a held booking is confirmed.
// Now bounds the write to holds that have not expired.
type Confirmation struct {
	BookingID     uint64
	UserID        uint64
	PaymentMethod string
	FinalPrice    int64
	PointsUsed    int64
	Discount      int64
	Now           time.Time
}
