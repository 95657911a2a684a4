package db

import (
	"context"
)

// StatsUpdater rewrites the denormalized statistics tables from the submissions log.
// Every method replaces the full contents of its target tables; none of them retry.
type StatsUpdater interface {
	RefreshAcceptedCount(ctx context.Context) error
	RefreshSolverCount(ctx context.Context) error
	RefreshRatedPointSum(ctx context.Context) error
	RefreshLanguageCount(ctx context.Context) error
	// RefreshGreatSubmissions must complete before AggregateGreatSubmissions
	// runs against the same snapshot.
	RefreshGreatSubmissions(ctx context.Context) error
	AggregateGreatSubmissions(ctx context.Context) error
	RefreshProblemPoints(ctx context.Context) error
}

// StatsReader exposes the read helpers used by health and status endpoints.
type StatsReader interface {
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context) (map[string]int64, error)
}

// StatsStore is the full surface offered by the postgres stats store.
type StatsStore interface {
	StatsUpdater
	StatsReader
	Close() error
}
