// Package store declares the persistence capabilities the booking and
// notification engine depends on. Implementations live in subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/location"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/domain/user"
)

var (
	// ErrNotFound is returned by single-record lookups with no match.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional write lost a race: the row
	// changed status since it was read, or a unique key already exists.
	ErrConflict = errors.New("store: conflict")
)

// BookingWrite is one planned insert (Booking.ID == 0) or status update.
// An update only applies while the stored row still has status Expect.
type BookingWrite struct {
	Booking booking.MealBooking
	Expect  booking.Status
}

type BookingStore interface {
	FindByUserAndDate(ctx context.Context, userID string, date time.Time) (booking.MealBooking, error)
	ExistsByUserAndDate(ctx context.Context, userID string, date time.Time) (bool, error)
	// ExistsByUserInDateRange reports any booking, of any status, with from <= date <= to.
	ExistsByUserInDateRange(ctx context.Context, userID string, from, to time.Time) (bool, error)
	Save(ctx context.Context, w BookingWrite) (booking.MealBooking, error)
	// SaveAll applies every write or none of them.
	SaveAll(ctx context.Context, ws []BookingWrite) ([]booking.MealBooking, error)
	FindByDateAndStatus(ctx context.Context, date time.Time, status booking.Status) ([]booking.MealBooking, error)
	FindAllBookedToday(ctx context.Context, today time.Time) ([]booking.MealBooking, error)
	// UpdateStatus moves a booking from one status to another and reports
	// whether the row was still in status from.
	UpdateStatus(ctx context.Context, id int64, from, to booking.Status, at time.Time) (bool, error)
	SetAvailableForLunch(ctx context.Context, id int64, available bool, at time.Time) error
}

type UserStore interface {
	FindAll(ctx context.Context) ([]user.User, error)
	FindByRole(ctx context.Context, role user.Role) ([]user.User, error)
	FindByID(ctx context.Context, id string) (user.User, error)
	FindByUsername(ctx context.Context, username string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

type LocationStore interface {
	FindLatestByUser(ctx context.Context, userID string) (location.UserLocation, error)
	Upsert(ctx context.Context, l location.UserLocation) error
}

type NotificationStore interface {
	Save(ctx context.Context, n notification.Notification) (notification.Notification, error)
	ExistsByUserTypeScheduledBetween(ctx context.Context, userID string, typ notification.Type, from, to time.Time) (bool, error)
	// FindUnsentDue returns unsent notifications with scheduledAt <= now
	// whose retry backoff, if any, has elapsed. Rows with fewer failed
	// attempts come first, then oldest first; at most limit rows (limit <= 0
	// means no limit).
	FindUnsentDue(ctx context.Context, now time.Time, limit int) ([]notification.Notification, error)
	// MarkSent flips sent to true and reports whether it was still false.
	MarkSent(ctx context.Context, id int64, at time.Time) (bool, error)
	// MarkFailed counts a failed delivery and keeps the row out of
	// FindUnsentDue until retryAt.
	MarkFailed(ctx context.Context, id int64, retryAt time.Time) error
}

type CutoffConfigProvider interface {
	// Latest returns the most recently inserted cutoff; ok is false when
	// none has been configured.
	Latest(ctx context.Context) (c booking.CutoffTime, ok bool, err error)
}

type CutoffConfigStore interface {
	CutoffConfigProvider
	Insert(ctx context.Context, c booking.CutoffTime, at time.Time) error
}
