package location

import "time"

// UserLocation is the most recent known position of a user. Only the latest
// value is kept.
type UserLocation struct {
	UserID    string
	Latitude  float64
	Longitude float64
	UpdatedAt time.Time
}
