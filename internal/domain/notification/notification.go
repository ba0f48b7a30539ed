package notification

import "time"

type Type string

const (
	TypeMealReminder    Type = "MEAL_REMINDER"
	TypeMissedBooking   Type = "MISSED_BOOKING"
	TypeInactivityNudge Type = "INACTIVITY_NUDGE"
)

type Notification struct {
	ID          int64
	UserID      string
	Type        Type
	Message     string
	ScheduledAt time.Time
	Sent        bool
	SentAt      *time.Time
	CreatedAt   time.Time

	// Attempts counts failed deliveries; NextAttemptAt holds the row back
	// until its backoff has elapsed.
	Attempts      int
	NextAttemptAt *time.Time
}

// Subject is the short title used by channels that need one (email).
func (t Type) Subject() string {
	switch t {
	case TypeMealReminder:
		return "Book your meal for tomorrow"
	case TypeMissedBooking:
		return "Meal booking missed"
	case TypeInactivityNudge:
		return "We have not seen you at lunch lately"
	}
	return "Meal booking notification"
}
