package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/mealbook/internal/clock"
)

// Validation errors. Those tied to a calendar date are returned wrapped in
// a *DateError.
var (
	ErrOutOfArea        = errors.New("location is outside the office area")
	ErrPastDate         = errors.New("date is not in the future")
	ErrInvalidRange     = errors.New("end date is before start date")
	ErrCutoffClosed     = errors.New("booking cutoff has passed")
	ErrAlreadyBooked    = errors.New("meal already booked")
	ErrPastCancellation = errors.New("cannot cancel a past date")
	ErrBookingNotFound  = errors.New("booking not found")
)

// ErrConfigMissing means no cutoff has been configured yet.
var ErrConfigMissing = errors.New("cutoff time is not configured")

// DateError carries the offending date of a validation failure.
type DateError struct {
	Err  error
	Date time.Time
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err, e.Date.Format(clock.DateLayout))
}

func (e *DateError) Unwrap() error { return e.Err }

func dateErr(err error, d time.Time) error { return &DateError{Err: err, Date: d} }

// IsValidation reports whether err is a caller-correctable booking failure.
func IsValidation(err error) bool {
	for _, v := range []error{
		ErrOutOfArea, ErrPastDate, ErrInvalidRange, ErrCutoffClosed,
		ErrAlreadyBooked, ErrPastCancellation, ErrBookingNotFound,
	} {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

func IsConfiguration(err error) bool { return errors.Is(err, ErrConfigMissing) }
