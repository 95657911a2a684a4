package types

import (
	"errors"
	"fmt"
)

// Operation names one refresh of the statistics tables.
type Operation string

const (
	OpAcceptedCount             Operation = "accepted_count"
	OpSolverCount               Operation = "solver_count"
	OpRatedPointSum             Operation = "rated_point_sum"
	OpLanguageCount             Operation = "language_count"
	OpGreatSubmissions          Operation = "great_submissions"
	OpAggregateGreatSubmissions Operation = "aggregate_great_submissions"
	OpProblemPoints             Operation = "problem_points"
)

// ErrUnknownOperation is returned for names that do not match any Operation.
var ErrUnknownOperation = errors.New("unknown refresh operation")

// Plan returns the refresh operations grouped into stages. Operations inside a
// stage are independent of each other; every stage reads tables written by the
// stages before it:
//   - rated_point_sum reads points, written by problem_points
//   - aggregate_great_submissions reads first/fastest/shortest, written by great_submissions
func Plan() [][]Operation {
	return [][]Operation{
		{OpAcceptedCount, OpSolverCount, OpLanguageCount, OpProblemPoints, OpGreatSubmissions},
		{OpRatedPointSum, OpAggregateGreatSubmissions},
	}
}

// Operations returns every operation in plan order.
func Operations() []Operation {
	var out []Operation
	for _, stage := range Plan() {
		out = append(out, stage...)
	}
	return out
}

// ParseOperation validates an operation name coming from HTTP or workflow input.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations() {
		if string(op) == name {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, name)
}

// RefreshInput is the input of the Refresh activity.
type RefreshInput struct {
	RunID     string    `json:"run_id"`
	Operation Operation `json:"operation"`
}

// RefreshResult reports one finished refresh.
type RefreshResult struct {
	Operation  Operation `json:"operation"`
	DurationMs float64   `json:"duration_ms"`
}

// RefreshStatsInput is the input of RefreshStatsWorkflow. An empty
// Operations list runs the whole plan.
type RefreshStatsInput struct {
	RunID      string      `json:"run_id"`
	Operations []Operation `json:"operations,omitempty"`
}

// RefreshStatsResult lists the refreshes completed by one workflow run.
type RefreshStatsResult struct {
	RunID   string          `json:"run_id"`
	Results []RefreshResult `json:"results"`
}

// Filter keeps the plan shape but drops operations not in ops.
// A nil or empty ops keeps everything.
func Filter(plan [][]Operation, ops []Operation) [][]Operation {
	if len(ops) == 0 {
		return plan
	}
	want := make(map[Operation]struct{}, len(ops))
	for _, op := range ops {
		want[op] = struct{}{}
	}

	out := make([][]Operation, 0, len(plan))
	for _, stage := range plan {
		var kept []Operation
		for _, op := range stage {
			if _, ok := want[op]; ok {
				kept = append(kept, op)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
