package updater

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cpstats/statsx/app/updater/controller"
	"github.com/cpstats/statsx/pkg/config"
	"github.com/cpstats/statsx/pkg/db/postgres"
	"github.com/cpstats/statsx/pkg/db/postgres/stats"
	"github.com/cpstats/statsx/pkg/logging"
	"github.com/cpstats/statsx/pkg/redis"
	"github.com/cpstats/statsx/pkg/updater"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App refreshes the statistics tables every Cron tick and serves the admin API.
type App struct {
	Config *config.Config

	// Store owns the derived tables
	Store *stats.DB

	// Redis is nil when REDIS_ENABLED is off; the runner then skips locking.
	Redis *redis.Client

	Runner *updater.Runner

	// Cron is the scheduler that triggers refresh cycles according to Config.UpdaterCron.
	Cron *cron.Cron

	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server
}

// Initialize initializes the App.
func Initialize(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	store, err := stats.New(ctx, logger, postgres.PoolConfig{
		URL:             cfg.PostgresURL,
		MinConns:        cfg.PostgresMinConns,
		MaxConns:        cfg.PostgresMaxConns,
		ConnMaxLifetime: cfg.PostgresConnMaxLifetime,
		ConnMaxIdleTime: cfg.PostgresConnMaxIdleTime,
		Component:       "updater",
	}, cfg.PostgresInitSchema)
	if err != nil {
		logger.Fatal("Unable to initialize statistics database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		Store:  store,
		Logger: logger,
	}

	var locker updater.Locker
	var notifier updater.Notifier
	if cfg.RedisEnabled {
		opts, err := RedisOptions(cfg)
		if err != nil {
			return nil, err
		}
		app.Redis, err = redis.NewClient(ctx, logger, opts)
		if err != nil {
			logger.Fatal("Unable to connect to Redis", zap.Error(err))
		}
		locker = updater.NewRedisLocker(app.Redis)
		notifier = app.Redis
	} else {
		logger.Info("Redis disabled - refresh cycles are not serialized across replicas")
	}

	app.Runner = updater.NewRunner(logger, store, locker, notifier, updater.Options{
		Parallelism: cfg.UpdaterParallelism,
		LockKey:     cfg.UpdaterLockKey,
		LockTTL:     cfg.UpdaterLockTTL,
	})

	if err := app.SetupScheduler(ctx, logging.NewCronLogger(logger), cfg.UpdaterCron); err != nil {
		return nil, err
	}
	if err := app.SetupServer(); err != nil {
		return nil, err
	}

	return app, nil
}

// RedisOptions reads the connection settings, preferring REDIS_URL when set.
func RedisOptions(cfg *config.Config) (redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return redis.Options{}, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() error {
	tokenHash, err := controller.HashToken(a.Config.AdminToken)
	if err != nil {
		return err
	}
	if tokenHash == nil && a.Config.JWTSecret == "" {
		a.Logger.Warn("Neither ADMIN_TOKEN nor JWT_SECRET is set - the admin API rejects every request")
	}

	ctler := &controller.Controller{
		Logger:         a.Logger,
		Refresher:      a.Runner,
		Store:          a.Store,
		AdminTokenHash: tokenHash,
		JWTSecret:      []byte(a.Config.JWTSecret),
		RunTimeout:     a.Config.UpdaterRunTimeout,
	}
	if a.Redis != nil {
		ctler.Redis = a.Redis
	}

	a.Server = &http.Server{
		Addr:              a.Config.Addr,
		Handler:           ctler.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// SetupScheduler sets up the cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, logger cron.Logger, cronSpec string) error {
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)))

	_, err := a.Cron.AddFunc(cronSpec, func() { a.RunOnce(ctx) })
	return err
}

// RunOnce runs one refresh cycle bounded by UPDATER_RUN_TIMEOUT. Failures are
// logged; the next tick is the retry.
func (a *App) RunOnce(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, a.Config.UpdaterRunTimeout)
	defer cancel()

	if _, err := a.Runner.RunAll(rctx); err != nil && !errors.Is(err, updater.ErrLocked) {
		a.Logger.Error("Refresh cycle failed", zap.Error(err))
	}
}

// Start runs the initial pass, starts the scheduler and server, and blocks
// until ctx is done.
func (a *App) Start(ctx context.Context) {
	go func() {
		a.Logger.Info("Starting server", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	if !a.Config.UpdaterSkipInitial {
		a.RunOnce(ctx)
	}

	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.Config.UpdaterCron))

	<-ctx.Done()
	a.Stop()
}

// Stop drains the scheduler, shuts the server down and closes connections.
func (a *App) Stop() {
	a.Logger.Info("shutting down")
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
