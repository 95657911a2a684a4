package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"info":    zap.NewAtomicLevelAt(zap.InfoLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
		"verbose": zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for level, want := range cases {
		t.Run(level, func(t *testing.T) {
			logger, err := New(level, "console")
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(want.Level()))
			if want.Level() > zap.DebugLevel {
				assert.False(t, logger.Core().Enabled(want.Level()-1))
			}
		})
	}
}
