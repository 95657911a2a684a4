package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/stats/workflow"
	"github.com/cpstats/statsx/pkg/temporal"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// EnsureRefreshSchedule creates the periodic refresh schedule if it does not already exist.
func (a *App) EnsureRefreshSchedule(ctx context.Context, interval time.Duration) error {
	id := a.TemporalClient.RefreshScheduleID
	h := a.TemporalClient.TSClient.GetHandle(ctx, id)
	_, err := h.Describe(ctx)
	if err == nil {
		a.Logger.Info("Refresh schedule already exists",
			zap.String("id", id),
			zap.String("namespace", a.TemporalClient.Namespace))
		return nil
	}

	var notFound *serviceerror.NotFound
	if !errors.As(err, &notFound) {
		return err
	}

	a.Logger.Info("Creating refresh schedule",
		zap.String("id", id),
		zap.Duration("interval", interval))
	_, err = a.TemporalClient.TSClient.Create(ctx, RefreshScheduleOptions(a.TemporalClient, interval))
	return err
}

// RefreshScheduleOptions describes the periodic refresh. Overlapping runs are
// skipped; the next interval is the retry.
func RefreshScheduleOptions(c *temporal.Client, interval time.Duration) client.ScheduleOptions {
	return client.ScheduleOptions{
		ID:      c.RefreshScheduleID,
		Spec:    temporal.GetScheduleSpec(interval),
		Overlap: enums.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &client.ScheduleWorkflowAction{
			ID:                       c.RefreshScheduleID,
			Workflow:                 workflow.RefreshStatsWorkflowName,
			Args:                     []interface{}{types.RefreshStatsInput{}},
			TaskQueue:                c.StatsQueue,
			WorkflowExecutionTimeout: interval,
			WorkflowTaskTimeout:      time.Minute,
		},
	}
}
