package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cpstats/statsx/pkg/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ParseURL reads a redis:// connection string into Options.
func ParseURL(uri string) (Options, error) {
	parsed, err := redis.ParseURL(uri)
	if err != nil {
		return Options{}, err
	}
	return Options{Addr: parsed.Addr, Password: parsed.Password, DB: parsed.DB}, nil
}

// Client wraps the Redis client used for the refresh lock and refresh notifications.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

// NewClient connects to Redis and pings it, retrying while the server comes up.
func NewClient(ctx context.Context, logger *zap.Logger, opts Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,

		PoolSize:     4,
		MinIdleConns: 1,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	err := retry.WithBackoff(ctx, retry.DefaultPolicy(), logger, "redis_connection", func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB))

	return NewFromClient(rdb, logger), nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *redis.Client, logger *zap.Logger) *Client {
	return &Client{client: rdb, logger: logger}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Publish publishes a message to a Redis Pub/Sub channel.
// This is a best-effort operation - errors are logged but not returned.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
