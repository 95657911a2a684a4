//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := ParseURL(uri)
	require.NoError(t, err)

	client, err := NewClient(ctx, zaptest.NewLogger(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockIsExclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, client.Health(ctx))

	lock, err := client.Acquire(ctx, "statsx:refresh", time.Minute)
	require.NoError(t, err)

	_, err = client.Acquire(ctx, "statsx:refresh", time.Minute)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))

	again, err := client.Acquire(ctx, "statsx:refresh", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	stale, err := client.Acquire(ctx, "statsx:refresh", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)

	current, err := client.Acquire(ctx, "statsx:refresh", time.Minute)
	require.NoError(t, err)

	// the stale owner must not drop the current holder's lock
	require.NoError(t, stale.Release(ctx))
	_, err = client.Acquire(ctx, "statsx:refresh", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, current.Release(ctx))
}
