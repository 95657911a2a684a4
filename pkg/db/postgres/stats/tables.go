package stats

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DerivedTables lists every table rewritten by the refresh operations.
// points is left out: its null rows are owned by the crawler.
var DerivedTables = []string{
	"accepted_count",
	"solver",
	"rated_point_sum",
	"language_count",
	"first",
	"fastest",
	"shortest",
	"first_submission_count",
	"fastest_submission_count",
	"shortest_submission_count",
}

type tableOp struct {
	name string
	fn   func(context.Context) error
}

// InitializeDB creates the source and derived tables when they are missing.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()
	db.Logger.Info("Initializing statistics schema")

	tableOps := []tableOp{
		{"submissions", db.initSubmissions},
		{"contests", db.initContests},
		{"points", db.initPoints},
		{"accepted_count", db.initUserCountTable("accepted_count")},
		{"solver", db.initSolver},
		{"rated_point_sum", db.initRatedPointSum},
		{"language_count", db.initLanguageCount},
	}
	for _, c := range greatCategories {
		tableOps = append(tableOps,
			tableOp{c.table, db.initGreatTable(c.table)},
			tableOp{c.countTable, db.initUserCountTable(c.countTable)},
		)
	}

	for _, op := range tableOps {
		db.Logger.Debug("Creating table", zap.String("table", op.name))
		if err := op.fn(ctx); err != nil {
			return fmt.Errorf("create table %s: %w", op.name, err)
		}
	}

	db.Logger.Info("Statistics schema initialized",
		zap.Int("tables", len(tableOps)),
		zap.Duration("duration", time.Since(initStart)))
	return nil
}

// initSubmissions creates the submissions log written by the crawler
func (db *DB) initSubmissions(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS submissions (
			id              BIGINT PRIMARY KEY,
			epoch_second    BIGINT NOT NULL,
			problem_id      TEXT NOT NULL,
			contest_id      TEXT NOT NULL,
			user_id         TEXT NOT NULL,
			language        TEXT NOT NULL,
			point           DOUBLE PRECISION,
			length          INTEGER NOT NULL,
			result          TEXT NOT NULL,
			execution_time  INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_result_user ON submissions(result, user_id);
		CREATE INDEX IF NOT EXISTS idx_submissions_result_problem ON submissions(result, problem_id);
		CREATE INDEX IF NOT EXISTS idx_submissions_contest ON submissions(contest_id);
	`

	return db.Exec(ctx, query)
}

// initContests creates the contests table
func (db *DB) initContests(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS contests (
			id                  TEXT PRIMARY KEY,
			start_epoch_second  BIGINT NOT NULL,
			duration_second     BIGINT NOT NULL DEFAULT 0,
			title               TEXT NOT NULL DEFAULT '',
			rate_change         TEXT NOT NULL DEFAULT '-'
		)
	`

	return db.Exec(ctx, query)
}

// initPoints creates the points table. A null point means "unknown".
func (db *DB) initPoints(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS points (
			problem_id  TEXT PRIMARY KEY,
			point       DOUBLE PRECISION
		)
	`

	return db.Exec(ctx, query)
}

func (db *DB) initSolver(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS solver (
			problem_id  TEXT PRIMARY KEY,
			user_count  INTEGER NOT NULL
		)
	`

	return db.Exec(ctx, query)
}

func (db *DB) initRatedPointSum(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS rated_point_sum (
			user_id    TEXT PRIMARY KEY,
			point_sum  DOUBLE PRECISION NOT NULL
		)
	`

	return db.Exec(ctx, query)
}

func (db *DB) initLanguageCount(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS language_count (
			user_id              TEXT NOT NULL,
			simplified_language  TEXT NOT NULL,
			problem_count        INTEGER NOT NULL,
			PRIMARY KEY (user_id, simplified_language)
		)
	`

	return db.Exec(ctx, query)
}

// initGreatTable creates one of first, fastest, shortest
func (db *DB) initGreatTable(table string) func(context.Context) error {
	return func(ctx context.Context) error {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				problem_id     TEXT PRIMARY KEY,
				submission_id  BIGINT NOT NULL,
				contest_id     TEXT NOT NULL
			)
		`, table)

		return db.Exec(ctx, query)
	}
}

// initUserCountTable creates a (user_id, problem_count) table
func (db *DB) initUserCountTable(table string) func(context.Context) error {
	return func(ctx context.Context) error {
		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				user_id        TEXT PRIMARY KEY,
				problem_count  INTEGER NOT NULL
			)
		`, table)

		return db.Exec(ctx, query)
	}
}
