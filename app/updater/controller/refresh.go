package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/cpstats/statsx/pkg/db/postgres/stats"
	"github.com/cpstats/statsx/pkg/stats/types"
	"github.com/cpstats/statsx/pkg/updater"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RefreshResponse is returned by the refresh endpoints.
type RefreshResponse struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Operation string `json:"operation,omitempty"`
	SQLState  string `json:"sqlstate,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Outcomes []updater.Outcome `json:"outcomes"`
	Tables   map[string]int64  `json:"tables"`
}

// HandleStatus returns the last outcome of every operation and the row counts
// of the derived tables.
func (c *Controller) HandleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := c.Store.TableCounts(r.Context())
	if err != nil {
		c.Logger.Error("Failed to count statistics tables", zap.Error(err))
		c.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.writeJSON(w, http.StatusOK, StatusResponse{Outcomes: c.Refresher.Outcomes(), Tables: counts})
}

// HandleRefreshAll runs the whole plan and waits for it.
func (c *Controller) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := c.runContext(r)
	defer cancel()

	runID, err := c.Refresher.RunAll(ctx)
	c.writeRefresh(w, runID, err)
}

// HandleRefreshOperation runs a single operation named in the path.
func (c *Controller) HandleRefreshOperation(w http.ResponseWriter, r *http.Request) {
	op, err := types.ParseOperation(mux.Vars(r)["operation"])
	if err != nil {
		c.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := c.runContext(r)
	defer cancel()

	runID, err := c.Refresher.RunOperation(ctx, op)
	c.writeRefresh(w, runID, err)
}

func (c *Controller) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	if c.RunTimeout > 0 {
		return context.WithTimeout(r.Context(), c.RunTimeout)
	}
	return context.WithCancel(r.Context())
}

func (c *Controller) writeRefresh(w http.ResponseWriter, runID string, err error) {
	resp := RefreshResponse{RunID: runID, Status: string(updater.StatusSucceeded)}

	switch {
	case err == nil:
		c.writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, updater.ErrLocked):
		resp.Status = "skipped"
		resp.Skipped = true
		resp.Error = err.Error()
		c.writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, types.ErrUnknownOperation):
		c.writeError(w, http.StatusBadRequest, err.Error())
	default:
		resp.Status = string(updater.StatusFailed)
		resp.Error = err.Error()
		var execErr *stats.ExecutionError
		if errors.As(err, &execErr) {
			resp.Operation = execErr.Operation
			resp.SQLState = execErr.Code()
		}
		c.writeJSON(w, http.StatusInternalServerError, resp)
	}
}
