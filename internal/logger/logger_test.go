package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_New_Levels(t *testing.T) {
	for level, want := range map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"verbose": zap.NewAtomicLevelAt(zap.ErrorLevel),
	} {
		l, err := New(level)
		require.NoError(t, err)
		assert.Equal(t, want.Level() == zap.DebugLevel, l.Core().Enabled(zap.DebugLevel), level)
		assert.True(t, l.Core().Enabled(want.Level()), level)
	}
}
