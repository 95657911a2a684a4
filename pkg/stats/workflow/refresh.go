package workflow

import (
	"github.com/cpstats/statsx/pkg/stats/activity"
	"github.com/cpstats/statsx/pkg/stats/types"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

const RefreshStatsWorkflowName = "RefreshStatsWorkflow"

// RefreshStatsWorkflow runs the refresh plan stage by stage. The activities of
// a stage run concurrently and all of them settle before the next stage starts.
// The first failed stage fails the workflow.
func (wc *Context) RefreshStatsWorkflow(ctx workflow.Context, in types.RefreshStatsInput) (types.RefreshStatsResult, error) {
	start := workflow.Now(ctx)
	logger := workflow.GetLogger(ctx)

	runID := in.RunID
	if runID == "" {
		runID = workflow.GetInfo(ctx).WorkflowExecution.RunID
	}

	for _, op := range in.Operations {
		if _, err := types.ParseOperation(string(op)); err != nil {
			return types.RefreshStatsResult{}, temporal.NewNonRetryableApplicationError(err.Error(), activity.ErrTypeUnknownOperation, err)
		}
	}

	cfg := wc.Config
	if cfg.ActivityTimeout == 0 {
		cfg = DefaultConfig()
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: cfg.ActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        cfg.RetryInitial,
			BackoffCoefficient:     cfg.BackoffCoefficient,
			MaximumInterval:        cfg.RetryMaximum,
			MaximumAttempts:        cfg.MaxAttempts,
			NonRetryableErrorTypes: []string{activity.ErrTypeUnknownOperation},
		},
	})

	plan := types.Filter(types.Plan(), in.Operations)
	result := types.RefreshStatsResult{RunID: runID}

	logger.Info("Starting statistics refresh workflow",
		zap.String("run_id", runID),
		zap.Int("stages", len(plan)))

	for i, stage := range plan {
		futures := make([]workflow.Future, len(stage))
		for j, op := range stage {
			futures[j] = workflow.ExecuteActivity(ctx, wc.ActivityContext.Refresh, types.RefreshInput{RunID: runID, Operation: op})
		}

		var stageErr error
		for j, f := range futures {
			var out types.RefreshResult
			if err := f.Get(ctx, &out); err != nil {
				logger.Error("Refresh activity failed",
					zap.String("run_id", runID),
					zap.String("operation", string(stage[j])),
					zap.Error(err))
				if stageErr == nil {
					stageErr = err
				}
				continue
			}
			result.Results = append(result.Results, out)
		}
		if stageErr != nil {
			logger.Error("Statistics refresh workflow failed",
				zap.String("run_id", runID),
				zap.Int("stage", i+1))
			return result, stageErr
		}
	}

	logger.Info("Statistics refresh workflow completed",
		zap.String("run_id", runID),
		zap.Int("operations", len(result.Results)),
		zap.Duration("duration", workflow.Now(ctx).Sub(start)))
	return result, nil
}

