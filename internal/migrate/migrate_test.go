package migrate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_versions_AreSortedAndEmbedded(t *testing.T) {
	vs, err := versions()
	require.NoError(t, err)
	require.NotEmpty(t, vs)
	assert.Equal(t, "001_init.sql", vs[0])
	assert.IsIncreasing(t, vs)

	b, err := fs.ReadFile(vs[0])
	require.NoError(t, err)
	for _, table := range []string{"users", "meal_bookings", "user_locations", "cutoff_configs", "notifications"} {
		assert.True(t, strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, string(b), "UNIQUE (user_id, booking_date)")
}

func Test_versions_IncludeNotificationRetry(t *testing.T) {
	vs, err := versions()
	require.NoError(t, err)
	require.Contains(t, vs, "002_notification_retry.sql")

	b, err := fs.ReadFile("002_notification_retry.sql")
	require.NoError(t, err)
	assert.Contains(t, string(b), "attempts")
	assert.Contains(t, string(b), "next_attempt_at")
}
