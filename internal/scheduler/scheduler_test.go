package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mealbook/internal/clock"
)

func Test_DailyAt_Next(t *testing.T) {
	at := DailyAt{Hour: 18}
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"later today", time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC), time.Date(2026, 1, 19, 18, 0, 0, 0, time.UTC)},
		{"exactly now rolls over", time.Date(2026, 1, 19, 18, 0, 0, 0, time.UTC), time.Date(2026, 1, 20, 18, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 1, 31, 20, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 18, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, at.Next(tt.now))
		})
	}
}

func Test_Every_Next(t *testing.T) {
	now := time.Date(2026, 1, 19, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(30*time.Second), Every(30*time.Second).Next(now))
}

func Test_Scheduler_SurvivesPanicsAndErrors(t *testing.T) {
	var panics, fails int32
	s := &Scheduler{
		Clock: clock.System{},
		Jobs: []Job{
			{Name: "panicky", Schedule: Every(5 * time.Millisecond), RunAtStart: true, Run: func(context.Context) error {
				atomic.AddInt32(&panics, 1)
				panic("boom")
			}},
			{Name: "failing", Schedule: Every(5 * time.Millisecond), Run: func(context.Context) error {
				atomic.AddInt32(&fails, 1)
				return errors.New("store down")
			}},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, atomic.LoadInt32(&panics), int32(1))
	assert.Greater(t, atomic.LoadInt32(&fails), int32(1))
}

func Test_Scheduler_Trigger(t *testing.T) {
	var runs int32
	s := &Scheduler{Jobs: []Job{{Name: "dispatch", Schedule: Every(time.Hour), Run: func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}}}}

	require.NoError(t, s.Trigger(context.Background(), "dispatch"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
	assert.Error(t, s.Trigger(context.Background(), "nope"))
	assert.Equal(t, []string{"dispatch"}, s.Names())

	s.Jobs[0].Run = func(context.Context) error { panic("bad") }
	assert.Error(t, s.Trigger(context.Background(), "dispatch"))
}
