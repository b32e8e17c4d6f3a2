package model

import "time"

// ShowTime represents a scheduled screening of a movie in a room of a
// theater.  Showtimes are immutable once scheduled.
//
// Fields:
//
//	ID        – primary key identifier.
//	RoomID    – room where the screening takes place.
//	MovieID   – movie being screened.
//	TheaterID – theater containing the room.
//	StartsAt  – when the screening begins (UTC).
type ShowTime struct {
	ID        uint64    // show_times.id
	RoomID    uint64    // show_times.room_id
	MovieID   uint64    // show_times.movie_id
	TheaterID uint64    // show_times.theater_id
	StartsAt  time.Time // show_times.show_time
}

// Movie is a catalog entry.
type Movie struct {
	ID          uint64    // movies.id
	Title       string    // movies.title
	Description *string   // movies.description (nullable)
	DurationMin uint32    // movies.duration_min
	PosterURL   *string   // movies.poster_url (nullable)
	ReleaseDate time.Time // movies.release_date
}

// Theater is a cinema venue.  Rooms belong to a theater.
type Theater struct {
	ID      uint64 // theaters.id
	Name    string // theaters.name
	Address string // theaters.address
}
