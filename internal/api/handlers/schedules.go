// Package handlers contains the HTTP handler implementations for the
// RollCall admin API: schedule and recipient CRUD plus read-only delivery
// history. Handlers depend on locally defined repository interfaces so they
// can be tested without a database.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/core"
	"rollcall/internal/db"
	"rollcall/internal/types"
)

// ScheduleRepo defines the data access contract for schedule operations.
// Mirrors the concrete db.ScheduleRepository methods used by this handler.
type ScheduleRepo interface {
	Create(ctx context.Context, s *types.Schedule) error
	GetByID(ctx context.Context, id string) (*types.Schedule, error)
	Update(ctx context.Context, s *types.Schedule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter db.ScheduleFilter) ([]*types.Schedule, error)
}

// CreateScheduleRequest is the request body for POST /v1/schedules.
type CreateScheduleRequest struct {
	Name          string `json:"name" validate:"required,max=200"`
	SenderName    string `json:"sender_name" validate:"required,max=11"`
	Frequency     string `json:"frequency" validate:"required,frequency"`
	DeliveryTime  string `json:"delivery_time,omitempty" validate:"omitempty,time_of_day"`
	Timezone      string `json:"timezone" validate:"required,timezone_db"`
	Template      string `json:"template" validate:"required,max=480"`
	AdminTemplate string `json:"admin_template,omitempty" validate:"omitempty,max=480"`
	EventID       string `json:"event_id" validate:"required,max=100"`
	TenantCode    string `json:"tenant_code" validate:"required,max=50"`
}

// UpdateScheduleRequest is the request body for PATCH /v1/schedules/{id}.
// Pointer fields distinguish "absent" from "set to zero value".
type UpdateScheduleRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,max=200"`
	SenderName    *string `json:"sender_name,omitempty" validate:"omitempty,max=11"`
	Frequency     *string `json:"frequency,omitempty" validate:"omitempty,frequency"`
	DeliveryTime  *string `json:"delivery_time,omitempty" validate:"omitempty,time_of_day"`
	Timezone      *string `json:"timezone,omitempty" validate:"omitempty,timezone_db"`
	Template      *string `json:"template,omitempty" validate:"omitempty,max=480"`
	AdminTemplate *string `json:"admin_template,omitempty" validate:"omitempty,max=480"`
	EventID       *string `json:"event_id,omitempty" validate:"omitempty,max=100"`
}

// ScheduleHandler manages schedule CRUD.
type ScheduleHandler struct {
	repo      ScheduleRepo
	validator *core.Validator
	logger    *slog.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(repo ScheduleRepo, v *core.Validator, l *slog.Logger) *ScheduleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ScheduleHandler{repo: repo, validator: v, logger: l}
}

// RegisterRoutes mounts schedule routes on the provided chi.Router.
func (h *ScheduleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /v1/schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	s := &types.Schedule{
		Name:          req.Name,
		SenderName:    req.SenderName,
		Frequency:     types.Frequency(req.Frequency),
		DeliveryTime:  req.DeliveryTime,
		Timezone:      req.Timezone,
		Template:      req.Template,
		AdminTemplate: req.AdminTemplate,
		EventID:       req.EventID,
		TenantCode:    req.TenantCode,
	}
	if err := h.repo.Create(r.Context(), s); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "schedule created",
		"schedule_id", s.ID,
		"tenant_code", s.TenantCode,
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: s})
}

// Get handles GET /v1/schedules/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}

// List handles GET /v1/schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := db.ScheduleFilter{
		TenantCode: r.URL.Query().Get("tenant_code"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	schedules, err := h.repo.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if schedules == nil {
		schedules = []*types.Schedule{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: schedules})
}

// Update handles PATCH /v1/schedules/{id}.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	s, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.SenderName != nil {
		s.SenderName = *req.SenderName
	}
	if req.Frequency != nil {
		s.Frequency = types.Frequency(*req.Frequency)
	}
	if req.DeliveryTime != nil {
		s.DeliveryTime = *req.DeliveryTime
	}
	if req.Timezone != nil {
		s.Timezone = *req.Timezone
	}
	if req.Template != nil {
		s.Template = *req.Template
	}
	if req.AdminTemplate != nil {
		s.AdminTemplate = *req.AdminTemplate
	}
	if req.EventID != nil {
		s.EventID = *req.EventID
	}

	if err := h.repo.Update(r.Context(), s); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: s})
}

// Delete handles DELETE /v1/schedules/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "schedule deleted", "schedule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an optional integer query parameter, returning 0 when
// absent or malformed.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
