package controller

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (c *Controller) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	c.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady reports ready once PostgreSQL, and Redis when the refresh lock
// is enabled, answer a ping.
func (c *Controller) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := c.Store.Ping(ctx); err != nil {
		c.Logger.Warn("Readiness check failed", zap.Error(err))
		c.writeError(w, http.StatusServiceUnavailable, "postgres unavailable")
		return
	}
	if c.Redis != nil {
		if err := c.Redis.Health(ctx); err != nil {
			c.Logger.Warn("Readiness check failed", zap.String("dependency", "redis"), zap.Error(err))
			c.writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	c.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
