package workflow

import (
	"time"

	"github.com/cpstats/statsx/pkg/stats/activity"
)

// Config holds the workflow configuration.
type Config struct {
	ActivityTimeout    time.Duration
	MaxAttempts        int32
	RetryInitial       time.Duration
	RetryMaximum       time.Duration
	BackoffCoefficient float64
}

// DefaultConfig bounds each refresh to ten minutes and three attempts.
func DefaultConfig() Config {
	return Config{
		ActivityTimeout:    10 * time.Minute,
		MaxAttempts:        3,
		RetryInitial:       5 * time.Second,
		RetryMaximum:       time.Minute,
		BackoffCoefficient: 2.0,
	}
}

// Context holds the workflow context.
type Context struct {
	ActivityContext *activity.Context
	Config          Config
}
