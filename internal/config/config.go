// Package config defines the global configuration structure for the RollCall
// platform. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved from the OS environment, with a local .env file as a
// non-overriding fallback. Any missing required value or invalid format
// causes the process to exit immediately on startup (fail fast).
package config

import (
	"time"
)

// Config is the top-level configuration struct for the RollCall platform.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"rollcall"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain configurations
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Gateway    GatewayConfig
	Attendance AttendanceConfig
	Sweep      SweepConfig
	Security   SecurityConfig
}

// ServerConfig holds HTTP server settings for the API and the sweeper's
// health/metrics endpoint.
type ServerConfig struct {
	Port        string `envconfig:"PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9090"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL string `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// RedisConfig holds the connection settings for the sweep lease. An empty
// address disables the distributed lease; the sweeper then falls back to an
// in-process mutex, which is sufficient for single-instance deployments.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// GatewayConfig holds the SMS gateway provider settings. Both values are
// required outside local; when left empty in local mode the sweeper falls
// back to a logging stub client.
type GatewayConfig struct {
	BaseURL string        `envconfig:"GATEWAY_BASE_URL" validate:"omitempty,url"`
	APIKey  string        `envconfig:"GATEWAY_API_KEY"`
	Timeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
}

// Configured reports whether a real gateway client can be built.
func (g GatewayConfig) Configured() bool {
	return g.BaseURL != "" && g.APIKey != ""
}

// AttendanceConfig holds the external attendance source settings. Same
// local-mode stub fallback as GatewayConfig.
type AttendanceConfig struct {
	BaseURL string        `envconfig:"ATTENDANCE_BASE_URL" validate:"omitempty,url"`
	APIKey  string        `envconfig:"ATTENDANCE_API_KEY"`
	Timeout time.Duration `envconfig:"ATTENDANCE_TIMEOUT" default:"30s"`
}

// Configured reports whether a real attendance client can be built.
func (a AttendanceConfig) Configured() bool {
	return a.BaseURL != "" && a.APIKey != ""
}

// SweepConfig tunes the scheduler driver.
type SweepConfig struct {
	// TickInterval is how often the trigger checks whether a sweep is due.
	TickInterval time.Duration `envconfig:"SWEEP_TICK_INTERVAL" default:"1m"`
	// DeliveryTime is the default local time-of-day anchor ("HH:MM") for
	// schedules that do not set their own.
	DeliveryTime string `envconfig:"SWEEP_DELIVERY_TIME" default:"07:00"`
	// Timezone is the fallback tenant timezone.
	Timezone string `envconfig:"SWEEP_TIMEZONE" default:"UTC"`
	// Stagger is the inter-recipient delay within one sweep.
	Stagger time.Duration `envconfig:"SWEEP_STAGGER" default:"2s"`
	// LeaseTTL bounds how long a crashed sweeper can hold the Redis lease.
	LeaseTTL time.Duration `envconfig:"SWEEP_LEASE_TTL" default:"30m"`
	// ShutdownGrace bounds how long shutdown waits for the in-flight
	// recipient's persistence write.
	ShutdownGrace time.Duration `envconfig:"SWEEP_SHUTDOWN_GRACE" default:"15s"`
	// LogRetention is how long delivery logs are kept before the daily
	// pruner removes them. Zero disables pruning.
	LogRetention time.Duration `envconfig:"SWEEP_LOG_RETENTION" default:"2160h"`
}

// SecurityConfig holds the API's admin access key.
type SecurityConfig struct {
	AdminAPIKey string `envconfig:"ADMIN_API_KEY" validate:"required,min=16"`
}
