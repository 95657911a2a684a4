package activity

import (
	"github.com/cpstats/statsx/pkg/db"
	"go.uber.org/zap"
)

// Context carries the dependencies shared by the stats activities.
type Context struct {
	Logger *zap.Logger
	Store  db.StatsUpdater
}
