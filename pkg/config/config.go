package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting read from the environment by the updater binaries.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"debug"`
	LogEncoding string `env:"LOG_ENCODING" envDefault:"json"`

	PostgresURL             string        `env:"POSTGRES_URL" envDefault:"postgres://localhost:5432/atcoder"`
	PostgresMinConns        int32         `env:"POSTGRES_MIN_CONNS" envDefault:"1"`
	PostgresMaxConns        int32         `env:"POSTGRES_MAX_CONNS" envDefault:"4"`
	PostgresConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"1h"`
	PostgresConnMaxIdleTime time.Duration `env:"POSTGRES_CONN_MAX_IDLE_TIME" envDefault:"30m"`
	PostgresInitSchema      bool          `env:"POSTGRES_INIT_SCHEMA" envDefault:"false"`

	RedisEnabled bool `env:"REDIS_ENABLED" envDefault:"false"`
	// RedisURL (redis://) takes precedence over the individual settings below
	RedisURL      string `env:"REDIS_URL"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	UpdaterCron        string        `env:"UPDATER_CRON" envDefault:"0 */30 * * * *"`
	UpdaterRunTimeout  time.Duration `env:"UPDATER_RUN_TIMEOUT" envDefault:"25m"`
	UpdaterParallelism int           `env:"UPDATER_PARALLELISM" envDefault:"1"`
	UpdaterLockKey     string        `env:"UPDATER_LOCK_KEY" envDefault:"statsx:refresh"`
	UpdaterLockTTL     time.Duration `env:"UPDATER_LOCK_TTL" envDefault:"30m"`
	UpdaterSkipInitial bool          `env:"UPDATER_SKIP_INITIAL" envDefault:"false"`

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	Addr       string `env:"ADDR" envDefault:":3010"`
	AdminToken string `env:"ADMIN_TOKEN"`
	JWTSecret  string `env:"JWT_SECRET"`

	TemporalHostPort         string        `env:"TEMPORAL_HOSTPORT" envDefault:"localhost:7233"`
	TemporalNamespace        string        `env:"TEMPORAL_NAMESPACE" envDefault:"statsx"`
	TemporalScheduleInterval time.Duration `env:"TEMPORAL_SCHEDULE_INTERVAL" envDefault:"30m"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the updater cannot run with.
func (c *Config) Validate() error {
	if c.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL must not be empty")
	}
	if c.PostgresMaxConns < 1 || c.PostgresMinConns < 0 || c.PostgresMinConns > c.PostgresMaxConns {
		return fmt.Errorf("invalid postgres pool size: min=%d max=%d", c.PostgresMinConns, c.PostgresMaxConns)
	}
	if c.UpdaterParallelism < 1 {
		return fmt.Errorf("UPDATER_PARALLELISM must be at least 1, got %d", c.UpdaterParallelism)
	}
	if c.UpdaterRunTimeout <= 0 {
		return fmt.Errorf("UPDATER_RUN_TIMEOUT must be positive")
	}
	if c.UpdaterLockTTL <= 0 {
		return fmt.Errorf("UPDATER_LOCK_TTL must be positive")
	}
	// the lock must outlive the longest cycle
	if c.RedisEnabled && c.UpdaterLockTTL <= c.UpdaterRunTimeout {
		return fmt.Errorf("UPDATER_LOCK_TTL (%s) must be longer than UPDATER_RUN_TIMEOUT (%s)", c.UpdaterLockTTL, c.UpdaterRunTimeout)
	}
	return nil
}
