package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationInvalidPhone, http.StatusBadRequest},
		{ErrCodeFormatTooLong, http.StatusBadRequest},
		{ErrCodeAuthKeyInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundRecipient, http.StatusNotFound},
		{ErrCodeNotFoundSchedule, http.StatusNotFound},
		{ErrCodeUpstreamGateway, http.StatusBadGateway},
		{ErrCodeDeliveryFailed, http.StatusBadGateway},
		{ErrCodeDataFetchFailed, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("totally_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	appErr := NewAppError(ErrCodeUpstreamGateway, "gateway send failed", inner)

	assert.Equal(t, "upstream_gateway_unavailable: gateway send failed", appErr.Error())
	assert.True(t, errors.Is(appErr, inner))

	var target *AppError
	assert.True(t, errors.As(error(appErr), &target))
	assert.Equal(t, ErrCodeUpstreamGateway, target.Code)
}

func TestTruncateErrorText(t *testing.T) {
	short := "timeout"
	assert.Equal(t, short, TruncateErrorText(short))

	long := make([]byte, ErrorTextMaxLen*2)
	for i := range long {
		long[i] = 'x'
	}
	got := TruncateErrorText(string(long))
	assert.Len(t, got, ErrorTextMaxLen)
}
