package booking

import "time"

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusDefault   Status = "DEFAULT"
	StatusCancelled Status = "CANCELLED"
	// StatusMissed is derived from the absence of a booking and is never stored.
	StatusMissed Status = "MISSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusDefault, StatusCancelled, StatusMissed:
		return true
	}
	return false
}

// MealBooking is one user's reservation for one calendar date.
// Date is midnight UTC of the calendar day.
type MealBooking struct {
	ID                int64
	UserID            string
	Date              time.Time
	Status            Status
	BookedAt          time.Time
	AvailableForLunch bool
	UpdatedAt         time.Time
}

// CutoffTime is the time of day after which tomorrow's bookings close.
type CutoffTime struct {
	Hour   int
	Minute int
}

func (c CutoffTime) Duration() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

func (c CutoffTime) String() string {
	return time.Date(0, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format("15:04")
}

// ParseCutoff accepts HH:MM or HH:MM:SS; seconds are dropped.
func ParseCutoff(s string) (CutoffTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		var err2 error
		if t, err2 = time.Parse("15:04:05", s); err2 != nil {
			return CutoffTime{}, err
		}
	}
	return CutoffTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}
