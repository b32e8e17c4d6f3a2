package model

// Seat describes a physical seat in a room.  Seats are static reference
// data; the seat type drives the ticket price.
//
// Fields:
//
//	ID         – primary key identifier.
//	RoomID     – room to which this seat belongs.
//	SeatNumber – printed label of the seat (e.g. A7).
//	SeatType   – price class of the seat (e.g. standard, vip, couple).
type Seat struct {
	ID         uint64 // seats.id
	RoomID     uint64 // seats.room_id
	SeatNumber string // seats.seat_number
	SeatType   string // seats.seat_type
}

// SeatAvailability is a seat of a showtime's room together with whether an
// active booking covers it.
type SeatAvailability struct {
	ID          uint64 `json:"id"`
	SeatNumber  string `json:"seat_number"`
	SeatType    string `json:"seat_type"`
	IsAvailable bool   `json:"is_available"`
}

// SeatDelta is a seat state change pushed to realtime subscribers of a
// showtime.  Only the flags that changed are set.
type SeatDelta struct {
	ID       uint64 `json:"id"`
	IsHeld   *bool  `json:"isHeld,omitempty"`
	IsBooked *bool  `json:"isBooked,omitempty"`
}
