package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/types"
)

func newAttendanceForTest(t *testing.T, handler http.HandlerFunc) *AttendanceClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"attendance-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"RollCall-Test/1.0",
		WithSleepFunc(noSleep),
	)
	return NewAttendanceClientWithBase(base, AttendanceClientConfig{
		APIKey:  "att-key",
		BaseURL: srv.URL,
	})
}

func testWindow() types.ReportWindow {
	return types.ReportWindow{
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC),
	}
}

func TestAttendanceFetchRecords_Success(t *testing.T) {
	clockIn := time.Date(2024, time.January, 3, 9, 5, 0, 0, time.UTC)
	att := newAttendanceForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/attendance", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "+233201234567", q.Get("phone"))
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-01-08", q.Get("end_date"))
		assert.Equal(t, "evt_42", q.Get("event_id"))

		json.NewEncoder(w).Encode(attendanceResponse{Records: []types.AttendanceRecord{
			{MemberID: "mem_1", MemberName: "Ama Mensah", ClockIn: &clockIn, Late: true},
		}})
	})

	records, err := att.FetchRecords(context.Background(), "+233201234567", testWindow(), "evt_42")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Ama Mensah", records[0].MemberName)
	assert.True(t, records[0].Late)
}

func TestAttendanceFetchRecords_NotFoundIsEmpty(t *testing.T) {
	att := newAttendanceForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	records, err := att.FetchRecords(context.Background(), "+233201234567", testWindow(), "evt_42")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAttendanceFetchRecords_EmptyCollection(t *testing.T) {
	att := newAttendanceForTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(attendanceResponse{})
	})

	records, err := att.FetchRecords(context.Background(), "+233201234567", testWindow(), "evt_42")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAttendanceFetchRecords_UpstreamError(t *testing.T) {
	att := newAttendanceForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := att.FetchRecords(context.Background(), "+233201234567", testWindow(), "evt_42")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamAttendance, appErr.Code)
}
