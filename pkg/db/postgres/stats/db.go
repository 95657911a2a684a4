package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/cpstats/statsx/pkg/db/postgres"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BatchExecutor runs a batch of statements as one unit.
type BatchExecutor interface {
	ExecBatch(ctx context.Context, batch *pgx.Batch) error
}

// DB is the PostgreSQL store owning the denormalized statistics tables.
type DB struct {
	postgres.Client

	// batches overrides the pool-backed executor, nil outside tests
	batches BatchExecutor
}

// New connects to PostgreSQL and, when initSchema is set, creates missing tables.
func New(ctx context.Context, logger *zap.Logger, poolConfig postgres.PoolConfig, initSchema bool) (*DB, error) {
	client, err := postgres.New(ctx, logger.With(zap.String("component", poolConfig.Component)), poolConfig)
	if err != nil {
		return nil, err
	}

	statsDB := &DB{Client: client}
	if initSchema {
		if err := statsDB.InitializeDB(ctx); err != nil {
			client.Close()
			return nil, err
		}
	}

	return statsDB, nil
}

// Close terminates the underlying PostgreSQL connection
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

func (db *DB) batchExecutor() BatchExecutor {
	if db.batches != nil {
		return db.batches
	}
	return &db.Client
}

// run executes batch for op and wraps any store failure.
func (db *DB) run(ctx context.Context, op string, batch *pgx.Batch) error {
	start := time.Now()
	if err := db.batchExecutor().ExecBatch(ctx, batch); err != nil {
		return &ExecutionError{Operation: op, Err: err}
	}
	db.Logger.Debug("Refreshed statistics",
		zap.String("operation", op),
		zap.Int("statements", batch.Len()),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// TableCounts returns the row count of every derived table.
func (db *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(DerivedTables))
	for _, table := range DerivedTables {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{table}.Sanitize())
		if err := db.QueryRow(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("count rows of %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
