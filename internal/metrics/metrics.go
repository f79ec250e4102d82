// Package metrics exposes Prometheus instrumentation for the RollCall
// sweep engine and API.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for RollCall
type Metrics struct {
	// Delivery counters
	DeliveriesSentTotal        *prometheus.CounterVec
	DeliveriesFailedTotal      *prometheus.CounterVec
	DeliveriesSkippedTotal     *prometheus.CounterVec
	RecipientsDeactivatedTotal prometheus.Counter

	// Sweep metrics
	SweepDurationSeconds prometheus.Histogram
	SweepRecipientsDue   prometheus.Gauge
	SweepsTotal          *prometheus.CounterVec

	// Upstream client metrics
	GatewayRequestDurationSeconds    prometheus.Histogram
	AttendanceRequestDurationSeconds prometheus.Histogram

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		DeliveriesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_deliveries_sent_total",
				Help: "Total number of successfully delivered summary messages",
			},
			[]string{"frequency"},
		),
		DeliveriesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_deliveries_failed_total",
				Help: "Total number of failed delivery attempts",
			},
			[]string{"frequency", "error_type"},
		),
		DeliveriesSkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_deliveries_skipped_total",
				Help: "Total number of recipients skipped during a sweep",
			},
			[]string{"reason"},
		),
		RecipientsDeactivatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rollcall_recipients_deactivated_total",
				Help: "Total number of recipients deactivated after exhausting retries",
			},
		),

		SweepDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_sweep_duration_seconds",
				Help:    "Duration of a full delivery sweep in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
			},
		),
		SweepRecipientsDue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rollcall_sweep_recipients_due",
				Help: "Number of recipients due in the most recent sweep",
			},
		),
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_sweeps_total",
				Help: "Total number of sweep runs",
			},
			[]string{"status"},
		),

		GatewayRequestDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_gateway_request_duration_seconds",
				Help:    "SMS gateway request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		AttendanceRequestDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rollcall_attendance_request_duration_seconds",
				Help:    "Attendance API request duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rollcall_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rollcall_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.DeliveriesSentTotal,
		m.DeliveriesFailedTotal,
		m.DeliveriesSkippedTotal,
		m.RecipientsDeactivatedTotal,
		m.SweepDurationSeconds,
		m.SweepRecipientsDue,
		m.SweepsTotal,
		m.GatewayRequestDurationSeconds,
		m.AttendanceRequestDurationSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncDeliveriesSent increments the sent delivery counter
func IncDeliveriesSent(frequency string) {
	m := Global()
	if m != nil {
		m.DeliveriesSentTotal.WithLabelValues(frequency).Inc()
	}
}

// IncDeliveriesFailed increments the failed delivery counter
func IncDeliveriesFailed(frequency, errorType string) {
	m := Global()
	if m != nil {
		m.DeliveriesFailedTotal.WithLabelValues(frequency, errorType).Inc()
	}
}

// IncDeliveriesSkipped increments the skipped recipient counter
func IncDeliveriesSkipped(reason string) {
	m := Global()
	if m != nil {
		m.DeliveriesSkippedTotal.WithLabelValues(reason).Inc()
	}
}

// IncRecipientsDeactivated increments the deactivation counter
func IncRecipientsDeactivated() {
	m := Global()
	if m != nil {
		m.RecipientsDeactivatedTotal.Inc()
	}
}

// ObserveSweepDuration records the duration of a completed sweep
func ObserveSweepDuration(seconds float64) {
	m := Global()
	if m != nil {
		m.SweepDurationSeconds.Observe(seconds)
	}
}

// SetSweepRecipientsDue records how many recipients were due in the last sweep
func SetSweepRecipientsDue(n int) {
	m := Global()
	if m != nil {
		m.SweepRecipientsDue.Set(float64(n))
	}
}

// IncSweeps increments the sweep counter with the run's final status
func IncSweeps(status string) {
	m := Global()
	if m != nil {
		m.SweepsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveGatewayRequestDuration records one SMS gateway request duration
func ObserveGatewayRequestDuration(seconds float64) {
	m := Global()
	if m != nil {
		m.GatewayRequestDurationSeconds.Observe(seconds)
	}
}

// ObserveAttendanceRequestDuration records one attendance API request duration
func ObserveAttendanceRequestDuration(seconds float64) {
	m := Global()
	if m != nil {
		m.AttendanceRequestDurationSeconds.Observe(seconds)
	}
}
