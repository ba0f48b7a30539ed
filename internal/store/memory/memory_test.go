package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mealbook/internal/domain/booking"
	"github.com/example/mealbook/internal/domain/notification"
	"github.com/example/mealbook/internal/store"
)

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func Test_BookingStore_SaveAll_IsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	now := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)

	existing, err := s.Save(ctx, store.BookingWrite{Booking: booking.MealBooking{UserID: "u1", Date: day(20), Status: booking.StatusBooked, BookedAt: now}})
	require.NoError(t, err)

	// second write collides with the existing row
	_, err = s.SaveAll(ctx, []store.BookingWrite{
		{Booking: booking.MealBooking{UserID: "u1", Date: day(19), Status: booking.StatusBooked, BookedAt: now}},
		{Booking: booking.MealBooking{UserID: "u1", Date: day(20), Status: booking.StatusBooked, BookedAt: now}},
	})
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Len(t, s.All(), 1)

	// stale expectation on an update
	existing.Status = booking.StatusBooked
	_, err = s.Save(ctx, store.BookingWrite{Booking: existing, Expect: booking.StatusCancelled})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func Test_BookingStore_UpdateStatus_IsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	b, err := s.Save(ctx, store.BookingWrite{Booking: booking.MealBooking{UserID: "u1", Date: day(18), Status: booking.StatusBooked}})
	require.NoError(t, err)

	ok, err := s.UpdateStatus(ctx, b.ID, booking.StatusBooked, booking.StatusDefault, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.UpdateStatus(ctx, b.ID, booking.StatusBooked, booking.StatusDefault, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func Test_BookingStore_ExistsByUserInDateRange(t *testing.T) {
	ctx := context.Background()
	s := NewBookingStore()
	_, err := s.Save(ctx, store.BookingWrite{Booking: booking.MealBooking{UserID: "u1", Date: day(15), Status: booking.StatusCancelled}})
	require.NoError(t, err)

	ok, _ := s.ExistsByUserInDateRange(ctx, "u1", day(15), day(18))
	assert.True(t, ok)
	ok, _ = s.ExistsByUserInDateRange(ctx, "u1", day(16), day(18))
	assert.False(t, ok)
	ok, _ = s.ExistsByUserInDateRange(ctx, "u2", day(15), day(18))
	assert.False(t, ok)
}

func Test_CutoffStore_LatestWins(t *testing.T) {
	ctx := context.Background()
	s := NewCutoffStore()
	_, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Insert(ctx, booking.CutoffTime{Hour: 20}, time.Now()))
	require.NoError(t, s.Insert(ctx, booking.CutoffTime{Hour: 22}, time.Now()))
	c, ok, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, booking.CutoffTime{Hour: 22}, c)
}

func Test_NotificationStore_FindUnsentDue_SkipsBackedOffRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)
	s := NewNotificationStore()
	failing, err := s.Save(ctx, notification.Notification{UserID: "u1", ScheduledAt: now.Add(-time.Hour)})
	require.NoError(t, err)
	fresh, err := s.Save(ctx, notification.Notification{UserID: "u2", ScheduledAt: now})
	require.NoError(t, err)

	require.NoError(t, s.MarkFailed(ctx, failing.ID, now.Add(time.Minute)))

	due, err := s.FindUnsentDue(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, fresh.ID, due[0].ID)

	// once out of backoff the retried row sorts behind fresh ones
	due, err = s.FindUnsentDue(ctx, now.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, fresh.ID, due[0].ID)
	assert.Equal(t, failing.ID, due[1].ID)
	assert.Equal(t, 1, due[1].Attempts)

	assert.ErrorIs(t, s.MarkFailed(ctx, 99, now), store.ErrNotFound)
}
