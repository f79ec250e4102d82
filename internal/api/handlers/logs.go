package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/core"
	"rollcall/internal/db"
	"rollcall/internal/types"
)

// DeliveryLogRepo defines read access to the delivery audit trail.
type DeliveryLogRepo interface {
	List(ctx context.Context, filter db.DeliveryLogFilter) ([]*types.DeliveryLog, error)
}

// CronRunRepo defines read access to sweep run history.
type CronRunRepo interface {
	List(ctx context.Context, limit int) ([]*types.CronRun, error)
}

// HistoryHandler serves the read-only delivery history endpoints. Logs and
// runs are written exclusively by the sweep engine; the API never mutates
// them.
type HistoryHandler struct {
	logs DeliveryLogRepo
	runs CronRunRepo
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(logs DeliveryLogRepo, runs CronRunRepo) *HistoryHandler {
	return &HistoryHandler{logs: logs, runs: runs}
}

// RegisterRoutes mounts history routes on the provided chi.Router.
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/logs", h.ListLogs)
	r.Get("/runs", h.ListRuns)
}

// ListLogs handles GET /v1/logs.
func (h *HistoryHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	filter := db.DeliveryLogFilter{
		Phone:      r.URL.Query().Get("phone"),
		TenantCode: r.URL.Query().Get("tenant_code"),
		Status:     types.DeliveryStatus(r.URL.Query().Get("status")),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	logs, err := h.logs.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if logs == nil {
		logs = []*types.DeliveryLog{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: logs})
}

// ListRuns handles GET /v1/runs.
func (h *HistoryHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context(), queryInt(r, "limit"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if runs == nil {
		runs = []*types.CronRun{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: runs})
}
