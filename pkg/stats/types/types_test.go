package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageOf(t *testing.T, op Operation) int {
	t.Helper()
	for i, stage := range Plan() {
		for _, candidate := range stage {
			if candidate == op {
				return i
			}
		}
	}
	t.Fatalf("operation %s missing from plan", op)
	return -1
}

func TestPlanCoversEveryOperationOnce(t *testing.T) {
	ops := Operations()
	require.Len(t, ops, 7)

	seen := map[Operation]bool{}
	for _, op := range ops {
		assert.False(t, seen[op], "duplicate %s", op)
		seen[op] = true
	}
}

func TestPlanOrdersDependencies(t *testing.T) {
	assert.Less(t, stageOf(t, OpGreatSubmissions), stageOf(t, OpAggregateGreatSubmissions))
	assert.Less(t, stageOf(t, OpProblemPoints), stageOf(t, OpRatedPointSum))
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("great_submissions")
	require.NoError(t, err)
	assert.Equal(t, OpGreatSubmissions, op)

	_, err = ParseOperation("first")
	require.ErrorIs(t, err, ErrUnknownOperation)
}

func TestFilterKeepsStageOrder(t *testing.T) {
	got := Filter(Plan(), []Operation{OpAggregateGreatSubmissions, OpGreatSubmissions})
	assert.Equal(t, [][]Operation{{OpGreatSubmissions}, {OpAggregateGreatSubmissions}}, got)

	assert.Equal(t, Plan(), Filter(Plan(), nil))
	assert.Empty(t, Filter(Plan(), []Operation{"nope"}))
}
