package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cpstats/statsx/pkg/retry"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Executor is an interface that both *pgxpool.Pool and pgx.Tx implement.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool and provides helper methods
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// PoolConfig defines connection pool settings for a specific component
type PoolConfig struct {
	URL             string
	MinConns        int32
	MaxConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Component       string // For logging/debugging
}

// New opens a pool against cfg.URL, retrying until the first ping succeeds.
func New(ctx context.Context, logger *zap.Logger, cfg PoolConfig) (client Client, err error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger

	pgxCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return Client{}, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}
	pgxCfg.MinConns = cfg.MinConns
	pgxCfg.MaxConns = cfg.MaxConns
	if cfg.ConnMaxLifetime > 0 {
		pgxCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		pgxCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	retryErr := retry.WithBackoff(connCtx, retry.DefaultPolicy(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, pgxCfg)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}

		client.Pool = pool
		return nil
	})
	if retryErr != nil {
		return Client{}, retryErr
	}

	logger.Info("PostgreSQL connection pool configured",
		zap.String("database", pgxCfg.ConnConfig.Database),
		zap.String("component", cfg.Component),
		zap.Int32("min_conns", cfg.MinConns),
		zap.Int32("max_conns", cfg.MaxConns),
	)

	return client, nil
}

// Exec executes a query without returning any rows
func (c *Client) Exec(ctx context.Context, query string, args ...any) error {
	_, err := c.Pool.Exec(ctx, query, args...)
	return err
}

// QueryRow executes a query that is expected to return at most one row
func (c *Client) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return c.Pool.QueryRow(ctx, query, args...)
}

// BeginFunc executes fn within a transaction, rolling back when fn fails.
func (c *Client) BeginFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, fn)
}

// ExecBatch runs every queued statement of batch inside one transaction.
// Either all statements commit or none do.
func (c *Client) ExecBatch(ctx context.Context, batch *pgx.Batch) error {
	return c.BeginFunc(ctx, func(tx pgx.Tx) error {
		return execBatch(ctx, tx, batch)
	})
}

func execBatch(ctx context.Context, ex Executor, batch *pgx.Batch) error {
	results := ex.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("batch statement %d: %w", i+1, err)
		}
	}
	return results.Close()
}

// Ping verifies a connection can be acquired.
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close closes the connection pool
func (c *Client) Close() {
	c.Pool.Close()
}
