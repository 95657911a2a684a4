package stats

import (
	"context"
	"fmt"

	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/jackc/pgx/v5"
)

const (
	// AcceptedResult is the submissions.result value of an accepted submission.
	AcceptedResult = "AC"

	// ExcludedUserPrefix marks virtual-judge accounts, which never earn rated points.
	ExcludedUserPrefix = "vjudge_"

	// LanguagePattern strips the version annotation from a language name. The
	// lookbehind keeps digits glued to "Perl" so Perl6 stays apart from Perl.
	LanguagePattern = `((?<!Perl)\d*|) \(.*\)`

	// PointsCutoffEpoch is the start of the first contest with reliable point data
	// (2016-07-16 12:00 UTC).
	PointsCutoffEpoch int64 = 1468670400

	// UnratedSentinel is contests.rate_change of a contest that changes no rating.
	UnratedSentinel = "-"
)

type greatCategory struct {
	table      string // per-problem winner table
	metric     string // submissions column to minimize
	countTable string // per-user count of wins
}

var (
	firstCategory    = greatCategory{table: "first", metric: "epoch_second", countTable: "first_submission_count"}
	fastestCategory  = greatCategory{table: "fastest", metric: "execution_time", countTable: "fastest_submission_count"}
	shortestCategory = greatCategory{table: "shortest", metric: "length", countTable: "shortest_submission_count"}
)

// greatCategories is the order RefreshGreatSubmissions queues its tables in.
var greatCategories = []greatCategory{firstCategory, fastestCategory, shortestCategory}

// aggregateCategories is the order AggregateGreatSubmissions commits its count
// tables in. A failure leaves every later table stale.
var aggregateCategories = []greatCategory{firstCategory, shortestCategory, fastestCategory}

// RefreshAcceptedCount rewrites accepted_count with the number of distinct
// problems each user has solved.
func (db *DB) RefreshAcceptedCount(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM accepted_count`)
	batch.Queue(`
		INSERT INTO accepted_count (user_id, problem_count)
		SELECT
			user_id,
			COUNT(DISTINCT problem_id)
		FROM submissions
		WHERE result = $1
		GROUP BY user_id
	`, AcceptedResult)

	return db.run(ctx, string(types.OpAcceptedCount), batch)
}

// RefreshSolverCount rewrites solver with the number of distinct users who
// solved each problem.
func (db *DB) RefreshSolverCount(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM solver`)
	batch.Queue(`
		INSERT INTO solver (problem_id, user_count)
		SELECT
			problem_id,
			COUNT(DISTINCT user_id)
		FROM submissions
		WHERE result = $1
		GROUP BY problem_id
	`, AcceptedResult)

	return db.run(ctx, string(types.OpSolverCount), batch)
}

// RefreshRatedPointSum rewrites rated_point_sum. Each solved (user, problem)
// pair contributes the problem point once, however many times it was accepted.
func (db *DB) RefreshRatedPointSum(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM rated_point_sum`)
	batch.Queue(`
		INSERT INTO rated_point_sum (user_id, point_sum)
		SELECT
			user_id,
			SUM(point)
		FROM (
			SELECT DISTINCT
				submissions.user_id,
				submissions.problem_id,
				points.point
			FROM submissions
			JOIN points ON points.problem_id = submissions.problem_id
			WHERE submissions.result = $1
				AND points.point IS NOT NULL
				AND NOT starts_with(submissions.user_id, $2)
		) AS solved
		GROUP BY user_id
	`, AcceptedResult, ExcludedUserPrefix)

	return db.run(ctx, string(types.OpRatedPointSum), batch)
}

// RefreshLanguageCount rewrites language_count, bucketing submissions by the
// language name with its version annotation removed.
func (db *DB) RefreshLanguageCount(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM language_count`)
	batch.Queue(`
		INSERT INTO language_count (user_id, simplified_language, problem_count)
		SELECT
			user_id,
			simplified_language,
			COUNT(DISTINCT problem_id)
		FROM (
			SELECT
				regexp_replace(language, $2, '') AS simplified_language,
				user_id,
				problem_id
			FROM submissions
			WHERE result = $1
		) AS sub
		GROUP BY simplified_language, user_id
	`, AcceptedResult, LanguagePattern)

	return db.run(ctx, string(types.OpLanguageCount), batch)
}

// RefreshGreatSubmissions rewrites first, fastest and shortest in one batch.
// Only submissions made after their contest started are eligible; the lowest
// submission id wins ties.
func (db *DB) RefreshGreatSubmissions(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, c := range greatCategories {
		batch.Queue(fmt.Sprintf(`DELETE FROM %s`, c.table))
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %[1]s (submission_id, problem_id, contest_id)
			SELECT
				id,
				problem_id,
				contest_id
			FROM (
				SELECT
					submissions.id,
					submissions.problem_id,
					submissions.contest_id,
					ROW_NUMBER() OVER (
						PARTITION BY submissions.problem_id
						ORDER BY
							submissions.%[2]s ASC,
							submissions.id ASC
					) AS ordering
				FROM submissions
				INNER JOIN contests ON submissions.contest_id = contests.id
				WHERE submissions.result = $1
					AND submissions.epoch_second > contests.start_epoch_second
			) AS ranked
			WHERE ordering = 1
		`, c.table, c.metric), AcceptedResult)
	}

	return db.run(ctx, string(types.OpGreatSubmissions), batch)
}

// AggregateGreatSubmissions rewrites the per-user count tables from first,
// fastest and shortest. Each table is its own batch; the first failure is
// returned and the remaining tables keep their previous contents.
func (db *DB) AggregateGreatSubmissions(ctx context.Context) error {
	for _, c := range aggregateCategories {
		batch := &pgx.Batch{}
		batch.Queue(fmt.Sprintf(`DELETE FROM %s`, c.countTable))
		batch.Queue(fmt.Sprintf(`
			INSERT INTO %[1]s (user_id, problem_count)
			SELECT
				submissions.user_id,
				COUNT(DISTINCT %[2]s.problem_id)
			FROM %[2]s
			JOIN submissions ON submissions.id = %[2]s.submission_id
			GROUP BY submissions.user_id
		`, c.countTable, c.table))

		if err := db.run(ctx, string(types.OpAggregateGreatSubmissions)+"/"+c.countTable, batch); err != nil {
			return err
		}
	}
	return nil
}

// RefreshProblemPoints recomputes the canonical point of every problem from
// rated contests held since PointsCutoffEpoch. Rows with a null point are kept.
func (db *DB) RefreshProblemPoints(ctx context.Context) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM points WHERE point IS NOT NULL`)
	batch.Queue(`
		INSERT INTO points (problem_id, point)
		SELECT
			submissions.problem_id,
			MAX(submissions.point)
		FROM submissions
		INNER JOIN contests ON contests.id = submissions.contest_id
		WHERE submissions.result = $1
			AND submissions.point IS NOT NULL
			AND contests.start_epoch_second >= $2
			AND contests.rate_change != $3
		GROUP BY submissions.problem_id
		ON CONFLICT (problem_id) DO UPDATE SET point = EXCLUDED.point
	`, AcceptedResult, PointsCutoffEpoch, UnratedSentinel)

	return db.run(ctx, string(types.OpProblemPoints), batch)
}
