package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/mealbook/internal/channel"
	"github.com/example/mealbook/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Store:               "memory",
		Timezone:            "UTC",
		OfficeLat:           52.52,
		OfficeLon:           13.405,
		OfficeRadiusM:       200,
		GeofenceInterval:    30 * time.Second,
		MissedCheckInterval: 15 * time.Minute,
		ReminderAt:          "18:00",
		InactivityAt:        "10:00",
		DispatchInterval:    time.Minute,
		DispatchBatchSize:   100,
	}
}

func Test_newApp_Memory(t *testing.T) {
	a, err := newApp(context.Background(), memoryConfig(), zap.NewNop(), true)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{jobGeofence, jobMissed, jobReminder, jobInactivity, jobDispatch}, a.jobs.Names())
	assert.NotNil(t, a.lifecycle)
	assert.NotNil(t, a.presence)

	// no cutoff yet: the missed check is a no-op
	require.NoError(t, a.jobs.Trigger(context.Background(), jobMissed))
	require.Error(t, a.jobs.Trigger(context.Background(), "nope"))
}

func Test_channels_FallBackToLog(t *testing.T) {
	push, email, err := channels(memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, channel.Log{}, push)
	assert.IsType(t, channel.Log{}, email)

	cfg := memoryConfig()
	cfg.SMTPHost = "smtp.example.com"
	_, email, err = channels(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &channel.SMTP{}, email)
}

func Test_KeysCmd(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"keys", "--size", "16"})
	require.NoError(t, root.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		_, v, ok := strings.Cut(l, "=")
		require.True(t, ok)
		k, err := base64.StdEncoding.DecodeString(v)
		require.NoError(t, err)
		assert.Len(t, k, 16)
	}
}

func Test_KeysCmd_RejectsBadSize(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"keys", "--size", "7"})
	assert.Error(t, root.Execute())
}

func Test_OneShotCommands_RefuseMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("OFFICE_LAT", "52.52")
	t.Setenv("OFFICE_LON", "13.405")

	for _, args := range [][]string{
		{"cutoff", "set", "11:00"},
		{"cutoff", "show"},
		{"run", jobDispatch},
		{"user", "list"},
		{"user", "add", "--username", "ana", "--password", "pw"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			var out bytes.Buffer
			root := NewRootCmd()
			root.SetOut(&out)
			root.SetErr(&bytes.Buffer{})
			root.SetArgs(args)

			err := root.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "STORE=memory")
			assert.NotContains(t, out.String(), "cutoff set to")
		})
	}
}

func Test_requirePersistentStore(t *testing.T) {
	cfg := memoryConfig()
	assert.Error(t, requirePersistentStore(cfg))
	cfg.Store = "postgres"
	assert.NoError(t, requirePersistentStore(cfg))
}
