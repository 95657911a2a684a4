package updater

import (
	"context"
	"fmt"

	"github.com/cpstats/statsx/pkg/db"
	"github.com/cpstats/statsx/pkg/stats/types"
)

// Dispatch calls the StatsUpdater method matching op.
func Dispatch(ctx context.Context, u db.StatsUpdater, op types.Operation) error {
	switch op {
	case types.OpAcceptedCount:
		return u.RefreshAcceptedCount(ctx)
	case types.OpSolverCount:
		return u.RefreshSolverCount(ctx)
	case types.OpRatedPointSum:
		return u.RefreshRatedPointSum(ctx)
	case types.OpLanguageCount:
		return u.RefreshLanguageCount(ctx)
	case types.OpGreatSubmissions:
		return u.RefreshGreatSubmissions(ctx)
	case types.OpAggregateGreatSubmissions:
		return u.AggregateGreatSubmissions(ctx)
	case types.OpProblemPoints:
		return u.RefreshProblemPoints(ctx)
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownOperation, op)
	}
}
