package core

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/metrics"
	"rollcall/internal/types"
)

// responseCapture wraps an http.ResponseWriter to capture the status code
// written by downstream handlers, for the logging and metrics middleware.
type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter, enabling
// http.ResponseController to access Flush and Hijack.
func (rc *responseCapture) Unwrap() http.ResponseWriter {
	return rc.ResponseWriter
}

// RequestID assigns each request a request ID, preferring one supplied by an
// upstream proxy via X-Request-Id, and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = "req_" + uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(types.WithRequestID(r.Context(), id)))
	})
}

// Recoverer catches panics in the handler chain, logs the stack trace, and
// writes a standardized 500 response. Must be the outermost middleware.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("panic", fmt.Sprintf("%v", rvr)),
						slog.String("stack", string(debug.Stack())),
					)
					Error(w, r, types.NewAppError(
						types.ErrCodeInternalUnexpected,
						"an unexpected error occurred",
						nil,
					))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs request metadata and records the API request metrics.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rc := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rc, r)

			elapsed := time.Since(start)
			logger.InfoContext(r.Context(), "request handled",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rc.statusCode),
				slog.Int64("duration_ms", elapsed.Milliseconds()),
				slog.String("request_id", types.GetRequestID(r.Context())),
			)

			if m := metrics.Global(); m != nil {
				m.APIRequestsTotal.WithLabelValues(
					r.Method, r.URL.Path, fmt.Sprintf("%d", rc.statusCode),
				).Inc()
				m.APIRequestDurationSeconds.WithLabelValues(
					r.Method, r.URL.Path,
				).Observe(elapsed.Seconds())
			}
		})
	}
}

// APIKeyAuth guards the admin API with a static key carried in the X-Api-Key
// header. The comparison is constant-time.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	expected := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Api-Key")
			if got == "" {
				Error(w, r, types.NewAppError(
					types.ErrCodeAuthKeyMissing,
					"X-Api-Key header is required",
					nil,
				))
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				Error(w, r, types.NewAppError(
					types.ErrCodeAuthKeyInvalid,
					"invalid API key",
					nil,
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
