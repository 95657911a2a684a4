// Package dbtest provides in-memory fakes of the stats store for tests.
package dbtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cpstats/statsx/pkg/db"
	"github.com/cpstats/statsx/pkg/stats/types"
)

var _ db.StatsStore = (*FakeStore)(nil)

// FakeStore records refresh calls in order. Operations listed in Failures
// return their error; Counts is served by TableCounts.
type FakeStore struct {
	Failures map[types.Operation]error
	Counts   map[string]int64
	PingErr  error
	Delay    time.Duration

	mu       sync.Mutex
	calls    []types.Operation
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *FakeStore) call(ctx context.Context, op types.Operation) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.Delay):
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, op)
	err := f.Failures[op]
	f.mu.Unlock()
	return err
}

func (f *FakeStore) RefreshAcceptedCount(ctx context.Context) error {
	return f.call(ctx, types.OpAcceptedCount)
}

func (f *FakeStore) RefreshSolverCount(ctx context.Context) error {
	return f.call(ctx, types.OpSolverCount)
}

func (f *FakeStore) RefreshRatedPointSum(ctx context.Context) error {
	return f.call(ctx, types.OpRatedPointSum)
}

func (f *FakeStore) RefreshLanguageCount(ctx context.Context) error {
	return f.call(ctx, types.OpLanguageCount)
}

func (f *FakeStore) RefreshGreatSubmissions(ctx context.Context) error {
	return f.call(ctx, types.OpGreatSubmissions)
}

func (f *FakeStore) AggregateGreatSubmissions(ctx context.Context) error {
	return f.call(ctx, types.OpAggregateGreatSubmissions)
}

func (f *FakeStore) RefreshProblemPoints(ctx context.Context) error {
	return f.call(ctx, types.OpProblemPoints)
}

func (f *FakeStore) Ping(context.Context) error { return f.PingErr }

func (f *FakeStore) TableCounts(context.Context) (map[string]int64, error) {
	return f.Counts, nil
}

func (f *FakeStore) Close() error { return nil }

// Calls returns the operations run so far, in completion order.
func (f *FakeStore) Calls() []types.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Operation(nil), f.calls...)
}

// CallCount returns how many times op ran.
func (f *FakeStore) CallCount(op types.Operation) int {
	n := 0
	for _, c := range f.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// Peak is the highest number of refreshes observed running at once.
func (f *FakeStore) Peak() int32 { return f.peak.Load() }

// IndexOf returns the position of the first call of op, or -1.
func IndexOf(calls []types.Operation, op types.Operation) int {
	for i, c := range calls {
		if c == op {
			return i
		}
	}
	return -1
}
