package types

import (
	"time"
)

// Logger is the minimal structured logging interface shared across packages.
// *slog.Logger satisfies Info/Warn/Error directly; With returns Logger so an
// adapter is used at the process entrypoints.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Validator is implemented by entities to self-validate.
type Validator interface {
	Validate() error
}
