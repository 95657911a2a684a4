package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cpstats/statsx/pkg/db/dbtest"
	"github.com/cpstats/statsx/pkg/stats/activity"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/stats/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"
)

func testConfig() workflow.Config {
	return workflow.Config{
		ActivityTimeout:    time.Minute,
		MaxAttempts:        3,
		RetryInitial:       10 * time.Millisecond,
		RetryMaximum:       10 * time.Millisecond,
		BackoffCoefficient: 1.0,
	}
}

func newEnv(t *testing.T, store *dbtest.FakeStore) (*testsuite.TestWorkflowEnvironment, *workflow.Context) {
	t.Helper()
	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestWorkflowEnvironment()

	activityCtx := &activity.Context{Logger: zaptest.NewLogger(t), Store: store}
	wfCtx := &workflow.Context{ActivityContext: activityCtx, Config: testConfig()}

	env.RegisterWorkflow(wfCtx.RefreshStatsWorkflow)
	env.RegisterActivity(activityCtx.Refresh)
	return env, wfCtx
}

func TestRefreshStatsWorkflowRunsPlanInStages(t *testing.T) {
	store := &dbtest.FakeStore{}
	env, wfCtx := newEnv(t, store)

	env.ExecuteWorkflow(wfCtx.RefreshStatsWorkflow, types.RefreshStatsInput{RunID: "run-1"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out types.RefreshStatsResult
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, "run-1", out.RunID)
	assert.Len(t, out.Results, len(types.Operations()))

	calls := store.Calls()
	require.ElementsMatch(t, types.Operations(), calls)
	stageOne := types.Plan()[0]
	for _, second := range types.Plan()[1] {
		for _, first := range stageOne {
			assert.Less(t, dbtest.IndexOf(calls, first), dbtest.IndexOf(calls, second),
				"%s must finish before %s starts", first, second)
		}
	}
}

func TestRefreshStatsWorkflowSelectedOperations(t *testing.T) {
	store := &dbtest.FakeStore{}
	env, wfCtx := newEnv(t, store)

	env.ExecuteWorkflow(wfCtx.RefreshStatsWorkflow, types.RefreshStatsInput{
		Operations: []types.Operation{types.OpRatedPointSum, types.OpProblemPoints},
	})

	require.NoError(t, env.GetWorkflowError())
	assert.Equal(t, []types.Operation{types.OpProblemPoints, types.OpRatedPointSum}, store.Calls())
}

func TestRefreshStatsWorkflowFailedStageStopsRun(t *testing.T) {
	store := &dbtest.FakeStore{Failures: map[types.Operation]error{
		types.OpGreatSubmissions: errors.New("could not serialize access"),
	}}
	env, wfCtx := newEnv(t, store)

	env.ExecuteWorkflow(wfCtx.RefreshStatsWorkflow, types.RefreshStatsInput{})

	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, activity.ErrTypeStoreExecution, appErr.Type())

	// retried up to the policy limit, later stages never start
	assert.Equal(t, 3, store.CallCount(types.OpGreatSubmissions))
	assert.Zero(t, store.CallCount(types.OpRatedPointSum))
	assert.Zero(t, store.CallCount(types.OpAggregateGreatSubmissions))

	// siblings in the failed stage still ran
	assert.Equal(t, 1, store.CallCount(types.OpAcceptedCount))
}

func TestRefreshStatsWorkflowRejectsUnknownOperation(t *testing.T) {
	store := &dbtest.FakeStore{}
	env, wfCtx := newEnv(t, store)

	env.ExecuteWorkflow(wfCtx.RefreshStatsWorkflow, types.RefreshStatsInput{
		Operations: []types.Operation{"solver_count", "truncate_everything"},
	})

	err := env.GetWorkflowError()
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, activity.ErrTypeUnknownOperation, appErr.Type())
	assert.Empty(t, store.Calls())
}

func TestRefreshStatsWorkflowMockedActivities(t *testing.T) {
	env, wfCtx := newEnv(t, &dbtest.FakeStore{})

	env.OnActivity(wfCtx.ActivityContext.Refresh, mock.Anything, mock.MatchedBy(func(in types.RefreshInput) bool {
		return in.RunID == "run-9"
	})).Return(func(_ context.Context, in types.RefreshInput) (types.RefreshResult, error) {
		return types.RefreshResult{Operation: in.Operation, DurationMs: 1}, nil
	})

	env.ExecuteWorkflow(wfCtx.RefreshStatsWorkflow, types.RefreshStatsInput{RunID: "run-9"})
	require.NoError(t, env.GetWorkflowError())

	var out types.RefreshStatsResult
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Len(t, out.Results, len(types.Operations()))
	for _, r := range out.Results {
		assert.Equal(t, 1.0, r.DurationMs)
	}
	env.AssertNumberOfCalls(t, "Refresh", len(types.Operations()))
}
