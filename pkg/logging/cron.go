package logging

import (
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronLogger struct{ *zap.SugaredLogger }

// NewCronLogger routes the cron scheduler's own messages through zap.
func NewCronLogger(logger *zap.Logger) cron.Logger {
	return cronLogger{logger.Named("cron").Sugar()}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Errorw(msg, append(keysAndValues, "error", err)...)
}
