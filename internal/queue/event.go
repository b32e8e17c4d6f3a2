// Package queue defines the booking events exchanged over RabbitMQ and the
// consumer that records them.
package queue

// Queue names, one per booking event kind.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.  It
// carries enough information for downstream consumers to log, notify, or
// trigger analytics without querying the primary database.
type BookingEvent struct {
	Type          string   `json:"type"` // queue name the event was published to
	BookingID     uint64   `json:"booking_id"`
	UserID        uint64   `json:"user_id"`
	ShowTimeID    uint64   `json:"show_time_id"`
	SeatIDs       []uint64 `json:"seat_ids"`
	FinalPrice    int64    `json:"final_price"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	PointsUsed    int64    `json:"points_used"`
	Discount      int64    `json:"discount"`
	PointsEarned  int64    `json:"points_earned"`
	OccurredAt    string   `json:"occurred_at"`
}
