package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/types"
)

func newGatewayForTest(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"sms-gateway-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"RollCall-Test/1.0",
		WithSleepFunc(noSleep),
	)
	return NewGatewayClientWithBase(base, GatewayClientConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
	})
}

func TestGatewaySend_Success(t *testing.T) {
	var gotReq gatewaySendRequest
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(gatewaySendResponse{
			Status:    "success",
			MessageID: "prov-123",
		})
	})

	ack, err := gw.Send(context.Background(), "RollCall", "+233201234567", "Hi Ama, you had 5 clock-ins")
	require.NoError(t, err)
	assert.Equal(t, "prov-123", ack.MessageID)
	assert.Equal(t, "RollCall", gotReq.Sender)
	assert.Equal(t, "+233201234567", gotReq.To)
}

func TestGatewaySend_ProviderRejection(t *testing.T) {
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gatewaySendResponse{
			Status:  "rejected",
			Message: "invalid destination",
		})
	})

	_, err := gw.Send(context.Background(), "RollCall", "bad", "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeDeliveryFailed, appErr.Code)
	assert.Contains(t, appErr.Message, "invalid destination")
}

func TestGatewaySend_Non200IsDeliveryError(t *testing.T) {
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := gw.Send(context.Background(), "RollCall", "+233201234567", "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeDeliveryFailed, appErr.Code)
}

func TestGatewaySend_UpstreamUnavailable(t *testing.T) {
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := gw.Send(context.Background(), "RollCall", "+233201234567", "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamGateway, appErr.Code)
}

func TestGatewaySend_SenderTooLong(t *testing.T) {
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the gateway")
	})

	_, err := gw.Send(context.Background(), "TwelveChars!", "+233201234567", "hello")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationSenderTooLong, appErr.Code)
}

func TestGatewaySend_ContentTooLong(t *testing.T) {
	gw := newGatewayForTest(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the gateway")
	})

	_, err := gw.Send(context.Background(), "RollCall", "+233201234567", strings.Repeat("a", types.MaxMessageLen+1))
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeFormatTooLong, appErr.Code)
}
