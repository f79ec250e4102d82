package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rollcall/internal/metrics"
	"rollcall/internal/types"
)

// AttendanceClientConfig holds the configuration for creating an
// AttendanceClient.
type AttendanceClientConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// AttendanceClient fetches clock-in/out records from the external attendance
// API for a phone number, date range, and meeting event.
type AttendanceClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewAttendanceClient creates a new AttendanceClient. The httpClient timeout
// bounds each attempt.
func NewAttendanceClient(httpClient *http.Client, cfg AttendanceClientConfig) *AttendanceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"attendance",
		DefaultRetryPolicy(),
		"RollCall/1.0",
	)

	return &AttendanceClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewAttendanceClientWithBase creates an AttendanceClient with a
// pre-configured BaseClient for tests.
func NewAttendanceClientWithBase(base *BaseClient, cfg AttendanceClientConfig) *AttendanceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// attendanceResponse is the attendance API's record collection payload.
type attendanceResponse struct {
	Records []types.AttendanceRecord `json:"records"`
}

// FetchRecords returns the attendance records for the given phone, reporting
// window, and meeting event. An empty result is not an error: the caller
// treats "no matching records" as a skippable, logged condition. A 404 from
// the API is normalized to an empty result for the same reason.
func (a *AttendanceClient) FetchRecords(ctx context.Context, phone string, window types.ReportWindow, eventID string) ([]types.AttendanceRecord, error) {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("start_date", window.StartDate())
	q.Set("end_date", window.EndDate())
	q.Set("event_id", eventID)

	reqURL := a.baseURL + "/v1/attendance?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build attendance request",
			err,
		)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	start := time.Now()
	resp, err := a.base.Do(req)
	metrics.ObserveAttendanceRequestDuration(time.Since(start).Seconds())
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAttendance,
			"attendance fetch failed",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAttendance,
			fmt.Sprintf("attendance API returned status %d", resp.StatusCode),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAttendance,
			"failed to read attendance response",
			err,
		)
	}

	var parsed attendanceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAttendance,
			"failed to decode attendance response",
			err,
		)
	}

	return parsed.Records, nil
}
