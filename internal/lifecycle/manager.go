// Package lifecycle applies the date, cutoff and geofence rules that decide
// whether a meal booking may be created, reactivated or cancelled.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/clock"
	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/geo"
	"github.com/example/mealbook/internal/store"
)

type Manager struct {
	Bookings store.BookingStore
	Users    store.UserStore
	Cutoffs  store.CutoffConfigStore
	Fence    geo.Fence
	Clock    clock.Clock
	Email    channel.EmailChannel
	Push     channel.PushChannel
	Log      *zap.Logger
}

// BookRange books every date in [start, end] for the user, or none of them.
func (m *Manager) BookRange(ctx context.Context, userID string, start, end time.Time, lat, lon float64) error {
	now := m.Clock.Now()
	today := clock.DateOf(now)
	start, end = clock.DateOf(start), clock.DateOf(end)

	if !m.Fence.Contains(lat, lon) {
		return ErrOutOfArea
	}
	if !start.After(today) {
		return dateErr(ErrPastDate, start)
	}
	if end.Before(start) {
		return ErrInvalidRange
	}
	cutoff, ok, err := m.Cutoffs.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load cutoff: %w", err)
	}
	if !ok {
		return ErrConfigMissing
	}

	tomorrow := today.AddDate(0, 0, 1)
	closed := clock.SinceMidnight(now) > cutoff.Duration()

	var writes []store.BookingWrite
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Equal(tomorrow) && closed {
			return dateErr(ErrCutoffClosed, d)
		}

		existing, err := m.Bookings.FindByUserAndDate(ctx, userID, d)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writes = append(writes, store.BookingWrite{Booking: booking.MealBooking{
				UserID:    userID,
				Date:      d,
				Status:    booking.StatusBooked,
				BookedAt:  now,
				UpdatedAt: now,
			}})
		case err != nil:
			return fmt.Errorf("find booking %s: %w", d.Format(clock.DateLayout), err)
		case existing.Status == booking.StatusBooked:
			return dateErr(ErrAlreadyBooked, d)
		default:
			prev := existing.Status
			existing.Status = booking.StatusBooked
			existing.BookedAt = now
			existing.UpdatedAt = now
			writes = append(writes, store.BookingWrite{Booking: existing, Expect: prev})
		}
	}

	if _, err := m.Bookings.SaveAll(ctx, writes); err != nil {
		return fmt.Errorf("save bookings: %w", err)
	}

	m.log().Info("meal booked",
		zap.String("user_id", userID),
		zap.String("from", start.Format(clock.DateLayout)),
		zap.String("to", end.Format(clock.DateLayout)),
		zap.Int("days", len(writes)),
	)
	m.confirm(ctx, userID, bookedMessage(start, end, len(writes)))
	return nil
}

// Cancel marks the user's booking for date as CANCELLED. The row is kept.
//
// Besides ErrPastCancellation and ErrBookingNotFound, Cancel returns
// ErrCutoffClosed for today's booking, and for tomorrow's once the cutoff
// has passed.
// Cancelling a booking that is already CANCELLED is a no-op and sends no
// confirmation.
func (m *Manager) Cancel(ctx context.Context, userID string, date time.Time) error {
	now := m.Clock.Now()
	today := clock.DateOf(now)
	date = clock.DateOf(date)

	if date.Before(today) {
		return dateErr(ErrPastCancellation, date)
	}
	existing, err := m.Bookings.FindByUserAndDate(ctx, userID, date)
	if errors.Is(err, store.ErrNotFound) {
		return dateErr(ErrBookingNotFound, date)
	}
	if err != nil {
		return fmt.Errorf("find booking: %w", err)
	}

	if date.Equal(today) {
		return dateErr(ErrCutoffClosed, date)
	}
	if date.Equal(today.AddDate(0, 0, 1)) {
		cutoff, ok, err := m.Cutoffs.Latest(ctx)
		if err != nil {
			return fmt.Errorf("load cutoff: %w", err)
		}
		if ok && clock.SinceMidnight(now) > cutoff.Duration() {
			return dateErr(ErrCutoffClosed, date)
		}
	}

	if existing.Status == booking.StatusCancelled {
		return nil
	}
	changed, err := m.Bookings.UpdateStatus(ctx, existing.ID, existing.Status, booking.StatusCancelled, now)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	if !changed {
		return fmt.Errorf("cancel booking %d: %w", existing.ID, store.ErrConflict)
	}

	m.log().Info("meal cancelled", zap.String("user_id", userID), zap.String("date", date.Format(clock.DateLayout)))
	m.confirm(ctx, userID, channel.Message{
		Subject: "Meal booking cancelled",
		Body:    fmt.Sprintf("Your meal booking for %s has been cancelled.", date.Format(clock.DateLayout)),
	})
	return nil
}

// SetCutoff records a new daily cutoff; the latest one applies.
func (m *Manager) SetCutoff(ctx context.Context, c booking.CutoffTime) error {
	if err := m.Cutoffs.Insert(ctx, c, m.Clock.Now()); err != nil {
		return fmt.Errorf("insert cutoff: %w", err)
	}
	m.log().Info("cutoff updated", zap.String("cutoff", c.String()))
	return nil
}

func (m *Manager) Cutoff(ctx context.Context) (booking.CutoffTime, error) {
	c, ok, err := m.Cutoffs.Latest(ctx)
	if err != nil {
		return booking.CutoffTime{}, err
	}
	if !ok {
		return booking.CutoffTime{}, ErrConfigMissing
	}
	return c, nil
}

// confirm delivers a lifecycle confirmation. The booking is already
// committed, so delivery failures are only logged.
func (m *Manager) confirm(ctx context.Context, userID string, msg channel.Message) {
	u, err := m.Users.FindByID(ctx, userID)
	if err != nil {
		m.log().Warn("confirmation skipped: user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if m.Email != nil {
		if err := m.Email.Email(ctx, u, msg); err != nil && !errors.Is(err, channel.ErrNoAddress) {
			m.log().Warn("confirmation email failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if m.Push != nil {
		if err := m.Push.Push(ctx, u, msg); err != nil && !errors.Is(err, channel.ErrNoAddress) {
			m.log().Warn("confirmation push failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

func (m *Manager) log() *zap.Logger {
	if m.Log == nil {
		return zap.NewNop()
	}
	return m.Log
}

func bookedMessage(start, end time.Time, days int) channel.Message {
	body := fmt.Sprintf("Your meal is booked for %s.", start.Format(clock.DateLayout))
	if days > 1 {
		body = fmt.Sprintf("Your meal is booked from %s to %s (%d days).",
			start.Format(clock.DateLayout), end.Format(clock.DateLayout), days)
	}
	return channel.Message{Subject: "Meal booking confirmed", Body: body}
}
