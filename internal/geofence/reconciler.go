// Package geofence reconciles today's bookings against where their holders
// actually are.
package geofence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/geo"
	"github.com/example/mealbook/internal/store"
)

// Reconciler moves today's BOOKED bookings to DEFAULT when the holder's last
// known location is outside the office fence. DEFAULT is never undone here.
//
// Each DEFAULT booking of today gets exactly one MISSED_BOOKING notification.
// The notification is raised in a second pass over today's DEFAULT bookings,
// so a transition whose notification could not be saved is picked up again
// by the next run.
type Reconciler struct {
	Bookings      store.BookingStore
	Locations     store.LocationStore
	Users         store.UserStore
	Notifications store.NotificationStore
	Fence         geo.Fence
	Clock         clock.Clock
	Push          channel.PushChannel
	Log           *zap.Logger
}

func (r *Reconciler) Run(ctx context.Context) error {
	now := r.Clock.Now()
	today := clock.DateOf(now)

	bs, err := r.Bookings.FindAllBookedToday(ctx, today)
	if err != nil {
		return fmt.Errorf("load booked: %w", err)
	}

	var errs []error
	defaulted := 0
	for _, b := range bs {
		moved, err := r.reconcile(ctx, b, now)
		if err != nil {
			r.log().Error("geofence reconcile failed", zap.Int64("booking_id", b.ID), zap.String("user_id", b.UserID), zap.Error(err))
			errs = append(errs, fmt.Errorf("booking %d: %w", b.ID, err))
			continue
		}
		if moved {
			defaulted++
		}
	}

	ds, err := r.Bookings.FindByDateAndStatus(ctx, today, booking.StatusDefault)
	if err != nil {
		errs = append(errs, fmt.Errorf("load defaulted: %w", err))
		return errors.Join(errs...)
	}
	for _, b := range ds {
		if err := r.notifyDefaulted(ctx, b, now); err != nil {
			r.log().Error("missed booking notification failed", zap.Int64("booking_id", b.ID), zap.String("user_id", b.UserID), zap.Error(err))
			errs = append(errs, fmt.Errorf("booking %d: %w", b.ID, err))
		}
	}

	r.log().Debug("geofence reconciliation done", zap.Int("checked", len(bs)), zap.Int("defaulted", defaulted))
	return errors.Join(errs...)
}

func (r *Reconciler) reconcile(ctx context.Context, b booking.MealBooking, now time.Time) (bool, error) {
	loc, err := r.Locations.FindLatestByUser(ctx, b.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find location: %w", err)
	}

	dist := r.Fence.Distance(loc.Latitude, loc.Longitude)
	if dist <= r.Fence.RadiusMeters {
		return false, nil
	}

	moved, err := r.Bookings.UpdateStatus(ctx, b.ID, booking.StatusBooked, booking.StatusDefault, now)
	if err != nil {
		return false, fmt.Errorf("default booking: %w", err)
	}
	if moved {
		r.log().Info("booking defaulted",
			zap.Int64("booking_id", b.ID),
			zap.String("user_id", b.UserID),
			zap.Float64("distance_m", dist),
		)
	}
	// false: cancelled or defaulted concurrently
	return moved, nil
}

// notifyDefaulted raises the MISSED_BOOKING notification for a defaulted
// booking unless the user already has one for today.
func (r *Reconciler) notifyDefaulted(ctx context.Context, b booking.MealBooking, now time.Time) error {
	start, end := clock.DayBounds(now)
	exists, err := r.Notifications.ExistsByUserTypeScheduledBetween(ctx, b.UserID, notification.TypeMissedBooking, start, end)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if exists {
		return nil
	}

	msg := fmt.Sprintf("You were not near the office during lunch on %s, so your meal booking was marked as default.",
		b.Date.Format(clock.DateLayout))
	n, err := r.Notifications.Save(ctx, notification.Notification{
		UserID:      b.UserID,
		Type:        notification.TypeMissedBooking,
		Message:     msg,
		ScheduledAt: now,
		CreatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	r.log().Info("notification scheduled", zap.Int64("id", n.ID), zap.String("user_id", b.UserID), zap.String("type", string(n.Type)))
	r.push(ctx, b.UserID, channel.Message{Subject: n.Type.Subject(), Body: msg})
	return nil
}

func (r *Reconciler) push(ctx context.Context, userID string, m channel.Message) {
	if r.Push == nil {
		return
	}
	u, err := r.Users.FindByID(ctx, userID)
	if err != nil {
		r.log().Warn("push skipped: user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if err := r.Push.Push(ctx, u, m); err != nil && !errors.Is(err, channel.ErrNoAddress) {
		r.log().Warn("push failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *Reconciler) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
