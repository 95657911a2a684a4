package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cpstats/statsx/pkg/db"
	"github.com/cpstats/statsx/pkg/redis"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// ErrLocked is returned when another cycle of this process or another replica
// holds the refresh lock.
var ErrLocked = errors.New("refresh already running")

// RefreshedChannel receives the run id after every successful cycle.
const RefreshedChannel = "statsx:stats.refreshed"

// Releaser gives back a lock taken by a Locker.
type Releaser interface {
	Release(ctx context.Context) error
}

// Locker serializes refresh cycles across replicas.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Releaser, error)
}

// Notifier announces finished cycles. Delivery is best-effort.
type Notifier interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// Status of the last run of an operation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome is the last recorded result of one operation.
type Outcome struct {
	Operation  types.Operation `json:"operation"`
	RunID      string          `json:"run_id"`
	Status     Status          `json:"status"`
	Error      string          `json:"error,omitempty"`
	DurationMs float64         `json:"duration_ms"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Options configures a Runner.
type Options struct {
	Parallelism int
	LockKey     string
	LockTTL     time.Duration
}

// Runner executes the refresh plan against a StatsUpdater.
// It never retries; the next scheduled cycle is the retry.
type Runner struct {
	logger   *zap.Logger
	updater  db.StatsUpdater
	locker   Locker
	notifier Notifier
	opts     Options
	outcomes *xsync.Map[types.Operation, Outcome]

	// running is held for the whole cycle, with or without a Locker
	running sync.Mutex
}

// NewRunner builds a Runner. locker and notifier may be nil for single-replica setups.
func NewRunner(logger *zap.Logger, updater db.StatsUpdater, locker Locker, notifier Notifier, opts Options) *Runner {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Runner{
		logger:   logger,
		updater:  updater,
		locker:   locker,
		notifier: notifier,
		opts:     opts,
		outcomes: xsync.NewMap[types.Operation, Outcome](),
	}
}

// RunAll runs every stage of the plan and returns the run id.
func (r *Runner) RunAll(ctx context.Context) (string, error) {
	return r.run(ctx, types.Plan())
}

// RunOperation runs a single operation under the same lock as RunAll.
func (r *Runner) RunOperation(ctx context.Context, op types.Operation) (string, error) {
	if _, err := types.ParseOperation(string(op)); err != nil {
		return "", err
	}
	return r.run(ctx, [][]types.Operation{{op}})
}

// Outcomes returns the last outcome of every operation that has run, in plan order.
func (r *Runner) Outcomes() []Outcome {
	out := make([]Outcome, 0, len(types.Operations()))
	for _, op := range types.Operations() {
		if o, ok := r.outcomes.Load(op); ok {
			out = append(out, o)
		}
	}
	return out
}

func (r *Runner) run(ctx context.Context, plan [][]types.Operation) (string, error) {
	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	release, err := r.lock(ctx)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			logger.Info("Skipping refresh, lock is held", zap.String("lock_key", r.opts.LockKey))
		}
		return runID, err
	}
	defer release()

	start := time.Now()
	logger.Info("Starting statistics refresh", zap.Int("stages", len(plan)))

	for i, stage := range plan {
		if err := ctx.Err(); err != nil {
			return runID, err
		}
		if err := r.runStage(ctx, logger, runID, stage); err != nil {
			logger.Error("Statistics refresh failed",
				zap.Int("stage", i+1),
				zap.Duration("duration", time.Since(start)),
				zap.Error(err))
			return runID, err
		}
	}

	logger.Info("Statistics refresh completed", zap.Duration("duration", time.Since(start)))
	if r.notifier != nil {
		r.notifier.Publish(ctx, RefreshedChannel, runID)
	}
	return runID, nil
}

// runStage runs the operations of one stage on a bounded pool and returns the
// first failure.
func (r *Runner) runStage(ctx context.Context, logger *zap.Logger, runID string, stage []types.Operation) error {
	pool := pond.NewPool(r.opts.Parallelism, pond.WithQueueSize(len(stage)))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, op := range stage {
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return r.runOne(groupCtx, logger, runID, op)
		})
	}

	err := group.Wait()
	if errors.Is(err, pond.ErrGroupStopped) {
		return ctx.Err()
	}
	return err
}

func (r *Runner) runOne(ctx context.Context, logger *zap.Logger, runID string, op types.Operation) error {
	start := time.Now()
	err := Dispatch(ctx, r.updater, op)
	elapsed := time.Since(start)

	outcome := Outcome{
		Operation:  op,
		RunID:      runID,
		Status:     StatusSucceeded,
		DurationMs: float64(elapsed.Microseconds()) / 1000.0,
		FinishedAt: time.Now().UTC(),
	}
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err.Error()
	}
	r.outcomes.Store(op, outcome)

	if err != nil {
		logger.Warn("Refresh operation failed",
			zap.String("operation", string(op)),
			zap.Duration("duration", elapsed),
			zap.Error(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("Refresh operation completed",
		zap.String("operation", string(op)),
		zap.Duration("duration", elapsed))
	return nil
}

func (r *Runner) lock(ctx context.Context) (func(), error) {
	if !r.running.TryLock() {
		return nil, ErrLocked
	}
	if r.locker == nil {
		return r.running.Unlock, nil
	}

	held, err := r.locker.Acquire(ctx, r.opts.LockKey, r.opts.LockTTL)
	if err != nil {
		r.running.Unlock()
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, ErrLocked
		}
		return nil, err
	}

	return func() {
		defer r.running.Unlock()
		// the run context may already be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			r.logger.Warn("Failed to release refresh lock", zap.Error(err))
		}
	}, nil
}

type redisLocker struct {
	client *redis.Client
}

// NewRedisLocker adapts a Redis client to Locker.
func NewRedisLocker(client *redis.Client) Locker {
	return redisLocker{client: client}
}

func (l redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Releaser, error) {
	lock, err := l.client.Acquire(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
