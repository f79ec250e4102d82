package types

import (
	"context"
)

// contextKey is a private type to prevent collisions with keys from other
// packages stored in the same context.
type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	tenantCodeKey contextKey = "tenant_code"
)

// WithRequestID returns a context carrying the given request/trace id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID extracts the request id from the context, or "" when unset.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithTenantCode returns a context carrying the acting tenant code.
func WithTenantCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, tenantCodeKey, code)
}

// GetTenantCode extracts the tenant code from the context, or "" when unset.
func GetTenantCode(ctx context.Context) string {
	if v, ok := ctx.Value(tenantCodeKey).(string); ok {
		return v
	}
	return ""
}
