package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_DateOf_UsesLocalCalendarDay(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 2026-01-18 22:30 UTC is already the 19th in UTC+5.
	got := DateOf(time.Date(2026, 1, 18, 22, 30, 0, 0, time.UTC).In(loc))

	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), got)
}

func Test_DayBounds(t *testing.T) {
	now := time.Date(2026, 1, 18, 13, 5, 0, 0, time.UTC)
	start, end := DayBounds(now)

	assert.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), end)
}

func Test_SinceMidnight(t *testing.T) {
	assert.Equal(t, 23*time.Hour+30*time.Minute, SinceMidnight(time.Date(2026, 1, 18, 23, 30, 0, 0, time.UTC)))
}

func Test_Manual_Advance(t *testing.T) {
	start := time.Date(2026, 1, 18, 12, 0, 0, 0, time.UTC)
	c := NewManual(start)
	c.Advance(90 * time.Minute)

	assert.Equal(t, start.Add(90*time.Minute), c.Now())
	assert.Equal(t, time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC), Today(c))
}

func Test_ParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-19")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("19/01/2026")
	assert.Error(t, err)
}
