package postgres

import (
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/mealbook/internal/domain/booking"
)

func Test_cutoffFromTime(t *testing.T) {
	micros := (22*time.Hour + 15*time.Minute + 30*time.Second).Microseconds()
	assert.Equal(t, booking.CutoffTime{Hour: 22, Minute: 15}, cutoffFromTime(pgtype.Time{Microseconds: micros, Valid: true}))
}

func Test_ConditionalUpdate_GuardsOnPriorStatus(t *testing.T) {
	sql, args, err := build(dialect.Update(tableBookings).Prepared(true).
		Set(goqu.Record{"status": "DEFAULT"}).
		Where(goqu.Ex{"id": int64(7), "status": "BOOKED"}))
	require.NoError(t, err)

	assert.Contains(t, sql, `UPDATE "meal_bookings" SET "status"=$1`)
	assert.Contains(t, sql, `"status" = $3`)
	require.Len(t, args, 3)
	assert.Equal(t, "DEFAULT", args[0])
}

func Test_FindUnsentDue_Query(t *testing.T) {
	now := time.Date(2026, 1, 19, 12, 0, 0, 0, time.UTC)
	sql, args, err := build(unsentDue(now).Select("id").Limit(10))
	require.NoError(t, err)

	assert.Contains(t, sql, `"sent"`)
	assert.Contains(t, sql, `"scheduled_at" <= $`)
	assert.Contains(t, sql, `"next_attempt_at" IS NULL`)
	assert.Contains(t, sql, `"next_attempt_at" <= $`)
	assert.Contains(t, sql, `ORDER BY "attempts" ASC`)
	assert.Contains(t, sql, `LIMIT`)
	assert.Contains(t, args, now)
}
