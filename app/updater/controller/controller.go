package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/cpstats/statsx/pkg/db"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/updater"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Refresher runs refresh cycles and reports their outcomes.
type Refresher interface {
	RunAll(ctx context.Context) (string, error)
	RunOperation(ctx context.Context, op types.Operation) (string, error)
	Outcomes() []updater.Outcome
}

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Controller struct {
	Logger    *zap.Logger
	Refresher Refresher
	Store     db.StatsReader
	// Redis is nil when the refresh lock is disabled
	Redis HealthChecker
	// AdminTokenHash is the bcrypt hash of ADMIN_TOKEN, empty disables token auth
	AdminTokenHash []byte
	JWTSecret      []byte
	RunTimeout     time.Duration
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() *mux.Router {
	r := mux.NewRouter()

	// probes stay public
	r.HandleFunc("/healthz", c.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", c.HandleReady).Methods(http.MethodGet)

	r.Handle("/api/status", c.RequireAdmin(http.HandlerFunc(c.HandleStatus))).Methods(http.MethodGet)
	r.Handle("/api/refresh", c.RequireAdmin(http.HandlerFunc(c.HandleRefreshAll))).Methods(http.MethodPost)
	r.Handle("/api/refresh/{operation}", c.RequireAdmin(http.HandlerFunc(c.HandleRefreshOperation))).Methods(http.MethodPost)

	return r
}

func (c *Controller) writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		c.Logger.Debug("Failed to encode response", zap.Error(err))
	}
}

func (c *Controller) writeError(w http.ResponseWriter, statusCode int, message string) {
	c.writeJSON(w, statusCode, map[string]string{"error": message})
}
