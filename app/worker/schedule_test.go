package worker

import (
	"testing"
	"time"

	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/stats/workflow"
	"github.com/cpstats/statsx/pkg/temporal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

func TestRefreshScheduleOptions(t *testing.T) {
	c := &temporal.Client{StatsQueue: "stats", RefreshScheduleID: "stats:refresh"}

	opts := RefreshScheduleOptions(c, 30*time.Minute)

	assert.Equal(t, "stats:refresh", opts.ID)
	assert.Equal(t, enums.SCHEDULE_OVERLAP_POLICY_SKIP, opts.Overlap)
	require.Len(t, opts.Spec.Intervals, 1)
	assert.Equal(t, 30*time.Minute, opts.Spec.Intervals[0].Every)

	action, ok := opts.Action.(*client.ScheduleWorkflowAction)
	require.True(t, ok)
	assert.Equal(t, workflow.RefreshStatsWorkflowName, action.Workflow)
	assert.Equal(t, "stats", action.TaskQueue)
	assert.Equal(t, []interface{}{types.RefreshStatsInput{}}, action.Args)
	assert.Equal(t, 30*time.Minute, action.WorkflowExecutionTimeout)
}
