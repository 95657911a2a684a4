package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockHeld is returned by Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only while it still carries our token, so an
// expired lock taken over by another replica is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a held lock. Release is safe to call more than once.
type Lock struct {
	client *Client
	key    string
	token  string
}

// Acquire takes key for ttl using SET NX PX with a random token.
func (c *Client) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	c.logger.Debug("Acquired lock", zap.String("key", key), zap.Duration("ttl", ttl))
	return &Lock{client: c, key: key, token: token}, nil
}

// Release drops the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	n, err := releaseScript.Run(ctx, l.client.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n == 0 {
		l.client.logger.Warn("Lock expired before release", zap.String("key", l.key))
	}
	return nil
}
