package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// All handlers and services MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidPhone   ErrorCode = "validation_invalid_phone"
	ErrCodeValidationInvalidFreq    ErrorCode = "validation_invalid_frequency"
	ErrCodeValidationInvalidTZ      ErrorCode = "validation_invalid_timezone"
	ErrCodeValidationSenderTooLong  ErrorCode = "validation_sender_name_too_long"
	ErrCodeValidationInvalidPayload ErrorCode = "validation_invalid_payload"

	// Auth (401)
	ErrCodeAuthKeyMissing ErrorCode = "auth_key_missing"
	ErrCodeAuthKeyInvalid ErrorCode = "auth_key_invalid"

	// Not Found (404)
	ErrCodeNotFoundRecipient ErrorCode = "not_found_recipient"
	ErrCodeNotFoundSchedule  ErrorCode = "not_found_schedule"

	// Delivery domain
	ErrCodeDeliveryFailed    ErrorCode = "delivery_failed"     // transient gateway failure, retried per backoff
	ErrCodeDataFetchFailed   ErrorCode = "data_fetch_failed"   // attendance source error, skip without retry charge
	ErrCodeFormatTooLong     ErrorCode = "format_message_too_long"
	ErrCodePersistenceFailed ErrorCode = "persistence_failed" // at-least-once risk, logged loudly

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamGateway     ErrorCode = "upstream_gateway_unavailable"
	ErrCodeUpstreamAttendance  ErrorCode = "upstream_attendance_unavailable"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Used by the API layer to translate AppErrors into HTTP responses.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"), strings.HasPrefix(s, "format_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"), strings.HasPrefix(s, "delivery_"),
		strings.HasPrefix(s, "data_fetch_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the
// platform. All domain and handler errors should be expressed as AppError to
// enable consistent error formatting, HTTP status mapping, and error chain
// support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details
// that are safe to expose to API clients (e.g. per-field validation failures).
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
