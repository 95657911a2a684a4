package activity

import (
	"context"
	"errors"
	"time"

	"github.com/cpstats/statsx/pkg/db/postgres/stats"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/updater"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"
)

const (
	// ErrTypeStoreExecution marks a refresh the store could not apply. Retryable.
	ErrTypeStoreExecution = "store_execution_failure"
	// ErrTypeUnknownOperation marks a refresh name no store method answers to.
	ErrTypeUnknownOperation = "unknown_operation"
)

// Refresh runs one refresh operation against the stats store.
func (c *Context) Refresh(ctx context.Context, in types.RefreshInput) (types.RefreshResult, error) {
	start := time.Now()
	info := activity.GetInfo(ctx)
	logger := c.Logger.With(
		zap.String("run_id", in.RunID),
		zap.String("operation", string(in.Operation)),
		zap.Int32("attempt", info.Attempt),
	)

	if _, err := types.ParseOperation(string(in.Operation)); err != nil {
		return types.RefreshResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeUnknownOperation, err)
	}

	if err := updater.Dispatch(ctx, c.Store, in.Operation); err != nil {
		logger.Warn("Refresh activity failed", zap.Error(err))

		var execErr *stats.ExecutionError
		if errors.As(err, &execErr) && execErr.Code() != "" {
			return types.RefreshResult{}, temporal.NewApplicationErrorWithCause(
				"unable to refresh statistics", ErrTypeStoreExecution, err, execErr.Operation, execErr.Code())
		}
		return types.RefreshResult{}, temporal.NewApplicationErrorWithCause(
			"unable to refresh statistics", ErrTypeStoreExecution, err)
	}

	elapsed := time.Since(start)
	logger.Info("Refresh activity completed", zap.Duration("duration", elapsed))
	return types.RefreshResult{
		Operation:  in.Operation,
		DurationMs: float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}
