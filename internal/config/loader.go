// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC process time to prevent drift bugs.
//  2. Load a .env file via godotenv (non-fatal if absent, never overrides
//     existing environment variables).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable
	// values into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the RollCall configuration from the environment.
func Load() (*Config, error) {
	// Step 1: Enforce UTC to keep recurrence math and DB timestamps aligned.
	time.Local = time.UTC

	// Step 2: Load .env if present. godotenv does NOT override variables
	// already set in the environment.
	_ = godotenv.Load()

	// Step 3: Populate the struct from envconfig tags.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Validate.
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate runs struct validation plus the cross-field rules that tags
// cannot express.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration failed validation",
			Err:     err,
		}
	}

	if _, err := time.LoadLocation(cfg.Sweep.Timezone); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: fmt.Sprintf("invalid SWEEP_TIMEZONE %q", cfg.Sweep.Timezone),
			Err:     err,
		}
	}

	if cfg.Sweep.Stagger < 0 {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "SWEEP_STAGGER must not be negative",
		}
	}

	// The stub external clients are a local-only convenience.
	if cfg.Environment != "local" {
		if !cfg.Gateway.Configured() {
			return &ConfigError{
				Type:    ErrValidation,
				Message: "GATEWAY_BASE_URL and GATEWAY_API_KEY are required outside local",
			}
		}
		if !cfg.Attendance.Configured() {
			return &ConfigError{
				Type:    ErrValidation,
				Message: "ATTENDANCE_BASE_URL and ATTENDANCE_API_KEY are required outside local",
			}
		}
	}

	return nil
}
