package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/core"
	"rollcall/internal/db"
	"rollcall/internal/types"
)

type fakeRecipientRepo struct {
	recipients map[string]*types.Recipient

	lastFilter  db.RecipientFilter
	deletedIDs  []string
	stateWrites int
}

func newFakeRecipientRepo(recipients ...*types.Recipient) *fakeRecipientRepo {
	r := &fakeRecipientRepo{recipients: map[string]*types.Recipient{}}
	for _, rec := range recipients {
		r.recipients[rec.ID] = rec
	}
	return r
}

func (r *fakeRecipientRepo) Create(_ context.Context, rec *types.Recipient) error {
	rec.ID = "rcp_created"
	r.recipients[rec.ID] = rec
	return nil
}

func (r *fakeRecipientRepo) GetByID(_ context.Context, id string) (*types.Recipient, error) {
	rec, ok := r.recipients[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	return rec, nil
}

func (r *fakeRecipientRepo) Update(_ context.Context, rec *types.Recipient) error {
	if _, ok := r.recipients[rec.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	r.recipients[rec.ID] = rec
	return nil
}

func (r *fakeRecipientRepo) UpdateDeliveryState(_ context.Context, rec *types.Recipient) error {
	if _, ok := r.recipients[rec.ID]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	r.stateWrites++
	r.recipients[rec.ID] = rec
	return nil
}

func (r *fakeRecipientRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.recipients[id]; !ok {
		return types.NewAppError(types.ErrCodeNotFoundRecipient, "recipient not found", nil)
	}
	delete(r.recipients, id)
	r.deletedIDs = append(r.deletedIDs, id)
	return nil
}

func (r *fakeRecipientRepo) List(_ context.Context, filter db.RecipientFilter) ([]*types.Recipient, error) {
	r.lastFilter = filter
	var out []*types.Recipient
	for _, rec := range r.recipients {
		out = append(out, rec)
	}
	return out, nil
}

type handlerClock struct{ now time.Time }

func (c handlerClock) Now() time.Time { return c.now }

func testRecipient() *types.Recipient {
	return &types.Recipient{
		ID:          "rcp_1",
		ScheduleID:  "sch_1",
		Phone:       "+233201234567",
		Frequency:   types.FreqWeekly,
		MessageType: types.MessageUser,
		TenantCode:  "acme",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Active:      true,
	}
}

func recipientRouter(repo *fakeRecipientRepo, schedules *fakeScheduleRepo) http.Handler {
	clock := handlerClock{now: time.Date(2024, 1, 8, 12, 30, 0, 0, time.UTC)}
	h := NewRecipientHandler(repo, schedules, core.NewValidator(), nil, clock)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestRecipientCreate_Success(t *testing.T) {
	repo := newFakeRecipientRepo()
	body := `{
		"schedule_id": "sch_1",
		"phone": "+233201234567",
		"frequency": "weekly",
		"message_type": "user",
		"tenant_code": "acme",
		"start_date": "2024-01-01"
	}`

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo(testSchedule())).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/recipients", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	rec := repo.recipients["rcp_created"]
	require.NotNil(t, rec)
	assert.True(t, rec.Active)
	assert.Equal(t, 0, rec.RetryAttempts)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.StartDate)
}

func TestRecipientCreate_DefaultsStartDateToToday(t *testing.T) {
	repo := newFakeRecipientRepo()
	body := `{
		"schedule_id": "sch_1",
		"phone": "+233201234567",
		"frequency": "daily",
		"message_type": "admin",
		"tenant_code": "acme"
	}`

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo(testSchedule())).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/recipients", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), repo.recipients["rcp_created"].StartDate)
}

func TestRecipientCreate_UnknownScheduleRejected(t *testing.T) {
	body := `{
		"schedule_id": "sch_missing",
		"phone": "+233201234567",
		"frequency": "weekly",
		"message_type": "user",
		"tenant_code": "acme"
	}`

	w := httptest.NewRecorder()
	recipientRouter(newFakeRecipientRepo(), newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodPost, "/recipients", strings.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundSchedule), decodeErrorCode(t, w.Body.Bytes()))
}

func TestRecipientCreate_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(m map[string]any)
		wantCode types.ErrorCode
	}{
		{
			name:     "invalid phone",
			mutate:   func(m map[string]any) { m["phone"] = "0201234567" },
			wantCode: types.ErrCodeValidationInvalidPhone,
		},
		{
			name:     "invalid frequency",
			mutate:   func(m map[string]any) { m["frequency"] = "hourly" },
			wantCode: types.ErrCodeValidationInvalidFreq,
		},
		{
			name:     "invalid message type",
			mutate:   func(m map[string]any) { m["message_type"] = "broadcast" },
			wantCode: types.ErrCodeValidationInvalidPayload,
		},
		{
			name:     "missing tenant code",
			mutate:   func(m map[string]any) { delete(m, "tenant_code") },
			wantCode: types.ErrCodeValidationMissingField,
		},
		{
			name:     "bad start date",
			mutate:   func(m map[string]any) { m["start_date"] = "01/08/2024" },
			wantCode: types.ErrCodeValidationInvalidPayload,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]any{
				"schedule_id":  "sch_1",
				"phone":        "+233201234567",
				"frequency":    "weekly",
				"message_type": "user",
				"tenant_code":  "acme",
			}
			tt.mutate(payload)
			body, err := json.Marshal(payload)
			require.NoError(t, err)

			w := httptest.NewRecorder()
			recipientRouter(newFakeRecipientRepo(), newFakeScheduleRepo(testSchedule())).ServeHTTP(w,
				httptest.NewRequest(http.MethodPost, "/recipients", strings.NewReader(string(body))))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(tt.wantCode), decodeErrorCode(t, w.Body.Bytes()))
		})
	}
}

func TestRecipientGet_NotFound(t *testing.T) {
	w := httptest.NewRecorder()
	recipientRouter(newFakeRecipientRepo(), newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodGet, "/recipients/rcp_missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundRecipient), decodeErrorCode(t, w.Body.Bytes()))
}

func TestRecipientList_PassesFilter(t *testing.T) {
	repo := newFakeRecipientRepo(testRecipient())

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodGet, "/recipients?schedule_id=sch_1&active=false&limit=25", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sch_1", repo.lastFilter.ScheduleID)
	assert.Equal(t, 25, repo.lastFilter.Limit)
	require.NotNil(t, repo.lastFilter.Active)
	assert.False(t, *repo.lastFilter.Active)
}

func TestRecipientUpdate_ReactivationResetsRetryState(t *testing.T) {
	rec := testRecipient()
	rec.Active = false
	rec.RetryAttempts = 4
	retryAt := time.Date(2024, 1, 9, 7, 0, 0, 0, time.UTC)
	rec.NextRetryAt = &retryAt
	repo := newFakeRecipientRepo(rec)

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodPatch, "/recipients/rcp_1", strings.NewReader(`{"active": true}`)))

	require.Equal(t, http.StatusOK, w.Code)
	got := repo.recipients["rcp_1"]
	assert.True(t, got.Active)
	assert.Zero(t, got.RetryAttempts)
	assert.Nil(t, got.NextRetryAt)
	assert.Equal(t, 1, repo.stateWrites)
}

func TestRecipientUpdate_DeactivationKeepsRetryState(t *testing.T) {
	repo := newFakeRecipientRepo(testRecipient())

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodPatch, "/recipients/rcp_1", strings.NewReader(`{"active": false}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, repo.recipients["rcp_1"].Active)
	assert.Zero(t, repo.stateWrites)
}

func TestRecipientUpdate_ScheduleMoveValidatesTarget(t *testing.T) {
	repo := newFakeRecipientRepo(testRecipient())

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo(testSchedule())).ServeHTTP(w,
		httptest.NewRequest(http.MethodPatch, "/recipients/rcp_1", strings.NewReader(`{"schedule_id": "sch_other"}`)))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "sch_1", repo.recipients["rcp_1"].ScheduleID)
}

func TestRecipientUpdate_InvalidPhoneRejected(t *testing.T) {
	repo := newFakeRecipientRepo(testRecipient())

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodPatch, "/recipients/rcp_1", strings.NewReader(`{"phone": "not-a-phone"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "+233201234567", repo.recipients["rcp_1"].Phone)
}

func TestRecipientDelete(t *testing.T) {
	repo := newFakeRecipientRepo(testRecipient())

	w := httptest.NewRecorder()
	recipientRouter(repo, newFakeScheduleRepo()).ServeHTTP(w,
		httptest.NewRequest(http.MethodDelete, "/recipients/rcp_1", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"rcp_1"}, repo.deletedIDs)
}
