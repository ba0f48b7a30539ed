// Package notify decides which notifications are raised each day and
// delivers the ones that are due.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/domain/user"
	"github.com/example/mealbook/internal/store"
)

// inactivityDays is how far back, besides today, a booking counts as activity.
const inactivityDays = 3

// Scheduler holds the three daily rule evaluators. Each is idempotent within
// a calendar day: a (user, type) pair is raised at most once per day.
type Scheduler struct {
	Users         store.UserStore
	Bookings      store.BookingStore
	Notifications store.NotificationStore
	Cutoffs       store.CutoffConfigProvider
	Clock         clock.Clock
	Push          channel.PushChannel
	Log           *zap.Logger
}

// RunMissedBookingCheck nudges users with no booking for today once the
// cutoff has passed.
func (s *Scheduler) RunMissedBookingCheck(ctx context.Context) error {
	now := s.Clock.Now()
	cutoff, ok, err := s.Cutoffs.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load cutoff: %w", err)
	}
	if !ok || clock.SinceMidnight(now) <= cutoff.Duration() {
		return nil
	}
	today := clock.DateOf(now)

	return s.forEachUser(ctx, "missed booking check", func(u user.User) error {
		booked, err := s.Bookings.ExistsByUserAndDate(ctx, u.ID, today)
		if err != nil {
			return err
		}
		if booked {
			return nil
		}
		return s.raise(ctx, u, notification.TypeMissedBooking, now,
			fmt.Sprintf("You have not booked a meal for %s.", today.Format(clock.DateLayout)))
	})
}

// RunReminderCheck reminds users to book tomorrow's meal while booking is
// still open. Nothing is raised when tomorrow is a weekend day.
func (s *Scheduler) RunReminderCheck(ctx context.Context) error {
	now := s.Clock.Now()
	tomorrow := clock.DateOf(now).AddDate(0, 0, 1)
	if wd := tomorrow.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil
	}
	cutoff, ok, err := s.Cutoffs.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load cutoff: %w", err)
	}
	if !ok || clock.SinceMidnight(now) > cutoff.Duration() {
		return nil
	}

	return s.forEachUser(ctx, "reminder check", func(u user.User) error {
		booked, err := s.Bookings.ExistsByUserAndDate(ctx, u.ID, tomorrow)
		if err != nil {
			return err
		}
		if booked {
			return nil
		}
		return s.raise(ctx, u, notification.TypeMealReminder, now,
			fmt.Sprintf("Don't forget to book your meal for %s before %s.", tomorrow.Format(clock.DateLayout), cutoff))
	})
}

// RunInactivityCheck nudges users with no booking of any status in the
// trailing window [today-3, today].
func (s *Scheduler) RunInactivityCheck(ctx context.Context) error {
	now := s.Clock.Now()
	today := clock.DateOf(now)
	from := today.AddDate(0, 0, -inactivityDays)

	return s.forEachUser(ctx, "inactivity check", func(u user.User) error {
		active, err := s.Bookings.ExistsByUserInDateRange(ctx, u.ID, from, today)
		if err != nil {
			return err
		}
		if active {
			return nil
		}
		return s.raise(ctx, u, notification.TypeInactivityNudge, now,
			fmt.Sprintf("You have not booked a meal since %s. Lunch is better together!", from.Format(clock.DateLayout)))
	})
}

func (s *Scheduler) forEachUser(ctx context.Context, job string, fn func(user.User) error) error {
	us, err := s.Users.FindByRole(ctx, user.RoleUser)
	if err != nil {
		return fmt.Errorf("%s: load users: %w", job, err)
	}
	var errs []error
	for _, u := range us {
		if err := fn(u); err != nil {
			s.log().Error(job+" failed for user", zap.String("user_id", u.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("user %s: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

// raise stores a notification unless one of the same type was already
// scheduled for the user today, then pushes it right away.
func (s *Scheduler) raise(ctx context.Context, u user.User, typ notification.Type, now time.Time, msg string) error {
	start, end := clock.DayBounds(now)
	exists, err := s.Notifications.ExistsByUserTypeScheduledBetween(ctx, u.ID, typ, start, end)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		return nil
	}

	n, err := s.Notifications.Save(ctx, notification.Notification{
		UserID:      u.ID,
		Type:        typ,
		Message:     msg,
		ScheduledAt: now,
		CreatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	s.log().Info("notification scheduled", zap.Int64("id", n.ID), zap.String("user_id", u.ID), zap.String("type", string(typ)))

	if s.Push != nil {
		if err := s.Push.Push(ctx, u, channel.Message{Subject: typ.Subject(), Body: msg}); err != nil && !errors.Is(err, channel.ErrNoAddress) {
			s.log().Warn("push failed", zap.String("user_id", u.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *Scheduler) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
