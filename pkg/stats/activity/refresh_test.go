package activity_test

import (
	"errors"
	"testing"

	"github.com/cpstats/statsx/pkg/db/dbtest"
	"github.com/cpstats/statsx/pkg/db/postgres/stats"
	"github.com/cpstats/statsx/pkg/stats/activity"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap/zaptest"
)

func newEnv(t *testing.T, store *dbtest.FakeStore) (*testsuite.TestActivityEnvironment, *activity.Context) {
	t.Helper()
	activityCtx := &activity.Context{Logger: zaptest.NewLogger(t), Store: store}

	suite := testsuite.WorkflowTestSuite{}
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(activityCtx.Refresh)
	return env, activityCtx
}

func TestRefreshRunsOperation(t *testing.T) {
	store := &dbtest.FakeStore{}
	env, activityCtx := newEnv(t, store)

	future, err := env.ExecuteActivity(activityCtx.Refresh, types.RefreshInput{RunID: "r-1", Operation: types.OpSolverCount})
	require.NoError(t, err)

	var out types.RefreshResult
	require.NoError(t, future.Get(&out))
	assert.Equal(t, types.OpSolverCount, out.Operation)
	assert.GreaterOrEqual(t, out.DurationMs, 0.0)
	assert.Equal(t, []types.Operation{types.OpSolverCount}, store.Calls())
}

func TestRefreshUnknownOperationIsNotRetryable(t *testing.T) {
	store := &dbtest.FakeStore{}
	env, activityCtx := newEnv(t, store)

	_, err := env.ExecuteActivity(activityCtx.Refresh, types.RefreshInput{Operation: "drop_everything"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, activity.ErrTypeUnknownOperation, appErr.Type())
	assert.True(t, appErr.NonRetryable())
	assert.Empty(t, store.Calls())
}

func TestRefreshStoreFailureIsRetryable(t *testing.T) {
	cause := &stats.ExecutionError{
		Operation: "rated_point_sum",
		Err:       &pgconn.PgError{Code: "57014", Message: "canceling statement due to statement timeout"},
	}
	store := &dbtest.FakeStore{Failures: map[types.Operation]error{types.OpRatedPointSum: cause}}
	env, activityCtx := newEnv(t, store)

	_, err := env.ExecuteActivity(activityCtx.Refresh, types.RefreshInput{Operation: types.OpRatedPointSum})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, activity.ErrTypeStoreExecution, appErr.Type())
	assert.False(t, appErr.NonRetryable())
	assert.Contains(t, err.Error(), "canceling statement due to statement timeout")

	var op, code string
	require.NoError(t, appErr.Details(&op, &code))
	assert.Equal(t, "rated_point_sum", op)
	assert.Equal(t, "57014", code)
}
