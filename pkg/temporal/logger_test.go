package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapterForwardsKeyvals(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	adapter := NewZapAdapter(zap.New(core))

	adapter.Info("activity started", "Operation", "solver_count", "Attempt", 1)
	var withRun log.Logger = adapter.With("RunID", "r-1")
	withRun.Warn("activity failed")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "activity started", entries[0].Message)
	assert.Equal(t, "solver_count", entries[0].ContextMap()["Operation"])
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "r-1", entries[1].ContextMap()["RunID"])
}

func TestGetScheduleSpec(t *testing.T) {
	spec := GetScheduleSpec(30 * time.Minute)
	require.Len(t, spec.Intervals, 1)
	assert.Equal(t, 30*time.Minute, spec.Intervals[0].Every)
}
