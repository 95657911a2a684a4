package worker

import (
	"context"
	"time"

	"github.com/cpstats/statsx/pkg/config"
	"github.com/cpstats/statsx/pkg/db/postgres"
	"github.com/cpstats/statsx/pkg/db/postgres/stats"
	"github.com/cpstats/statsx/pkg/logging"
	"github.com/cpstats/statsx/pkg/stats/activity"
	"github.com/cpstats/statsx/pkg/stats/workflow"
	"github.com/cpstats/statsx/pkg/temporal"
	"go.temporal.io/sdk/worker"
	temporalworkflow "go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

type App struct {
	Worker         worker.Worker
	TemporalClient *temporal.Client
	Store          *stats.DB
	Logger         *zap.Logger
}

// Start starts the worker and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	if err := a.Worker.Start(); err != nil {
		a.Logger.Fatal("Unable to start worker", zap.Error(err))
	}
	<-ctx.Done()
	a.Stop()
}

// Stop stops the worker.
func (a *App) Stop() {
	a.Worker.Stop()
	a.TemporalClient.Close()
	_ = a.Store.Close()
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
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
		Component:       "worker",
	}, cfg.PostgresInitSchema)
	if err != nil {
		logger.Fatal("Unable to initialize statistics database", zap.Error(err))
	}

	temporalClient, err := temporal.NewClient(ctx, logger, cfg.TemporalHostPort, cfg.TemporalNamespace)
	if err != nil {
		logger.Fatal("Unable to establish temporal connection", zap.Error(err))
	}

	if err := temporalClient.EnsureNamespace(ctx, 7*24*time.Hour); err != nil {
		logger.Fatal("Unable to ensure temporal namespace", zap.Error(err))
	}

	activityContext := &activity.Context{
		Logger: logger,
		Store:  store,
	}
	workflowContext := &workflow.Context{
		ActivityContext: activityContext,
		Config:          workflow.DefaultConfig(),
	}

	wkr := worker.New(
		temporalClient.TClient,
		temporalClient.StatsQueue,
		worker.Options{
			// refreshes hold one pool connection each
			MaxConcurrentActivityExecutionSize: int(cfg.PostgresMaxConns),
			WorkerStopTimeout:                  1 * time.Minute,
		},
	)

	wkr.RegisterWorkflowWithOptions(
		workflowContext.RefreshStatsWorkflow,
		temporalworkflow.RegisterOptions{Name: workflow.RefreshStatsWorkflowName},
	)
	wkr.RegisterActivity(activityContext.Refresh)

	app := &App{
		Worker:         wkr,
		TemporalClient: temporalClient,
		Store:          store,
		Logger:         logger,
	}

	if err := app.EnsureRefreshSchedule(ctx, cfg.TemporalScheduleInterval); err != nil {
		logger.Fatal("Unable to ensure refresh schedule", zap.Error(err))
	}

	return app
}
