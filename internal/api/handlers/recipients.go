package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/core"
	"rollcall/internal/db"
	"rollcall/internal/types"
)

// RecipientRepo defines the data access contract for recipient operations.
type RecipientRepo interface {
	Create(ctx context.Context, rec *types.Recipient) error
	GetByID(ctx context.Context, id string) (*types.Recipient, error)
	Update(ctx context.Context, rec *types.Recipient) error
	UpdateDeliveryState(ctx context.Context, rec *types.Recipient) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter db.RecipientFilter) ([]*types.Recipient, error)
}

// RecipientScheduleRepo resolves the schedule a recipient subscribes to.
type RecipientScheduleRepo interface {
	GetByID(ctx context.Context, id string) (*types.Schedule, error)
}

// CreateRecipientRequest is the request body for POST /v1/recipients.
type CreateRecipientRequest struct {
	ScheduleID  string `json:"schedule_id" validate:"required"`
	Phone       string `json:"phone" validate:"required,phone_e164"`
	Frequency   string `json:"frequency" validate:"required,frequency"`
	MessageType string `json:"message_type" validate:"required,oneof=admin user"`
	TenantCode  string `json:"tenant_code" validate:"required,max=50"`
	// StartDate anchors the recurrence ("2006-01-02"). Empty means today.
	StartDate string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateRecipientRequest is the request body for PATCH /v1/recipients/{id}.
type UpdateRecipientRequest struct {
	ScheduleID  *string `json:"schedule_id,omitempty"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,phone_e164"`
	Frequency   *string `json:"frequency,omitempty" validate:"omitempty,frequency"`
	MessageType *string `json:"message_type,omitempty" validate:"omitempty,oneof=admin user"`
	StartDate   *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	// Active re-activates a recipient deactivated by exhausted retries;
	// the retry counter is reset so the backoff ladder starts over.
	Active *bool `json:"active,omitempty"`
}

// RecipientHandler manages recipient CRUD.
type RecipientHandler struct {
	repo      RecipientRepo
	schedules RecipientScheduleRepo
	validator *core.Validator
	logger    *slog.Logger
	clock     types.Clock
}

// NewRecipientHandler creates a RecipientHandler.
func NewRecipientHandler(repo RecipientRepo, schedules RecipientScheduleRepo, v *core.Validator, l *slog.Logger, clock types.Clock) *RecipientHandler {
	if l == nil {
		l = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &RecipientHandler{repo: repo, schedules: schedules, validator: v, logger: l, clock: clock}
}

// RegisterRoutes mounts recipient routes on the provided chi.Router.
func (h *RecipientHandler) RegisterRoutes(r chi.Router) {
	r.Route("/recipients", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /v1/recipients.
func (h *RecipientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	// The schedule must exist before a recipient can subscribe to it.
	if _, err := h.schedules.GetByID(r.Context(), req.ScheduleID); err != nil {
		core.Error(w, r, err)
		return
	}

	startDate := dateOnly(h.clock.Now())
	if req.StartDate != "" {
		parsed, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidPayload,
				"start_date must be formatted as YYYY-MM-DD",
				err,
			))
			return
		}
		startDate = parsed
	}

	rec := &types.Recipient{
		ScheduleID:  req.ScheduleID,
		Phone:       req.Phone,
		Frequency:   types.Frequency(req.Frequency),
		MessageType: types.MessageType(req.MessageType),
		TenantCode:  req.TenantCode,
		StartDate:   startDate,
		Active:      true,
	}
	if err := h.repo.Create(r.Context(), rec); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "recipient created",
		"recipient_id", rec.ID,
		"schedule_id", rec.ScheduleID,
		"frequency", string(rec.Frequency),
	)
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: rec})
}

// Get handles GET /v1/recipients/{id}.
func (h *RecipientHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// List handles GET /v1/recipients.
func (h *RecipientHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := db.RecipientFilter{
		ScheduleID: r.URL.Query().Get("schedule_id"),
		TenantCode: r.URL.Query().Get("tenant_code"),
		Limit:      queryInt(r, "limit"),
		Offset:     queryInt(r, "offset"),
	}
	if v := r.URL.Query().Get("active"); v == "true" || v == "false" {
		active := v == "true"
		filter.Active = &active
	}

	recipients, err := h.repo.List(r.Context(), filter)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if recipients == nil {
		recipients = []*types.Recipient{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: recipients})
}

// Update handles PATCH /v1/recipients/{id}.
func (h *RecipientHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRecipientRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	rec, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if req.ScheduleID != nil {
		if _, err := h.schedules.GetByID(r.Context(), *req.ScheduleID); err != nil {
			core.Error(w, r, err)
			return
		}
		rec.ScheduleID = *req.ScheduleID
	}
	if req.Phone != nil {
		rec.Phone = *req.Phone
	}
	if req.Frequency != nil {
		rec.Frequency = types.Frequency(*req.Frequency)
	}
	if req.MessageType != nil {
		rec.MessageType = types.MessageType(*req.MessageType)
	}
	if req.StartDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.StartDate)
		if err != nil {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationInvalidPayload,
				"start_date must be formatted as YYYY-MM-DD",
				err,
			))
			return
		}
		rec.StartDate = parsed
	}
	reactivated := false
	if req.Active != nil {
		reactivated = *req.Active && !rec.Active
		rec.Active = *req.Active
	}

	if err := h.repo.Update(r.Context(), rec); err != nil {
		core.Error(w, r, err)
		return
	}
	if reactivated {
		// Restart the backoff ladder so a recipient deactivated by
		// exhausted retries is not immediately deactivated again.
		rec.RetryAttempts = 0
		rec.NextRetryAt = nil
		if err := h.repo.UpdateDeliveryState(r.Context(), rec); err != nil {
			core.Error(w, r, err)
			return
		}
		h.logger.InfoContext(r.Context(), "recipient re-activated",
			"recipient_id", rec.ID,
		)
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// Delete handles DELETE /v1/recipients/{id}.
func (h *RecipientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "recipient deleted", "recipient_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
