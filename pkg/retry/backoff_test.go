package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithBackoffSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := WithBackoff(context.Background(), fastPolicy(5), zaptest.NewLogger(t), "dial", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoffGivesUp(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0
	err := WithBackoff(context.Background(), fastPolicy(3), zaptest.NewLogger(t), "dial", func() error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestWithBackoffStopsOnPermanent(t *testing.T) {
	bad := errors.New("invalid dsn")
	calls := 0
	err := WithBackoff(context.Background(), fastPolicy(5), zaptest.NewLogger(t), "dial", func() error {
		calls++
		return Permanent(bad)
	})
	require.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, fastPolicy(5), zaptest.NewLogger(t), "dial", func() error {
		t.Fatal("fn must not run on a cancelled context")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDelayIsCapped(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 4 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, p.delay(1))
	assert.Equal(t, 2*time.Second, p.delay(2))
	assert.Equal(t, 4*time.Second, p.delay(3))
	assert.Equal(t, 4*time.Second, p.delay(10))
}

func TestPermanentNil(t *testing.T) {
	assert.NoError(t, Permanent(nil))
}
