// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle metrics
var (
	// LifecycleOpsTotal counts lifecycle operations by operation and status
	LifecycleOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desklab_lifecycle_operations_total",
			Help: "Total lifecycle operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// LifecycleOpDuration tracks lifecycle operation latency in seconds
	LifecycleOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "desklab_lifecycle_operation_duration_seconds",
			Help:    "Lifecycle operation duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// PortAllocationFailures counts sweeps that found no free port
	PortAllocationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desklab_port_allocation_failures_total",
			Help: "Total port allocations that exhausted the configured range",
		},
	)

	// CredentialRotationRetries counts credential rotations that needed a retry
	CredentialRotationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "desklab_credential_rotation_retries_total",
			Help: "Total credential rotation attempts that were retried",
		},
	)

	// SessionsByStatus reports the sessions seen by the last health sweep
	SessionsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "desklab_sessions",
			Help: "Registered sessions by health status at the last monitor sweep",
		},
		[]string{"status"},
	)

	// ReconcileFindings counts stale entries and orphan containers found
	ReconcileFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desklab_reconcile_findings_total",
			Help: "Total reconciliation findings by kind (stale/orphan)",
		},
		[]string{"kind"},
	)
)

// Relay metrics
var (
	// RelayConnectionsCurrent tracks open relay connections
	RelayConnectionsCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "desklab_relay_connections_current",
			Help: "Number of open relay connections",
		},
	)

	// RelayConnectionsTotal counts relay connection attempts by result
	RelayConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desklab_relay_connections_total",
			Help: "Total relay connection attempts by result",
		},
		[]string{"result"},
	)

	// RelayBytesTotal counts relayed bytes by direction
	RelayBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desklab_relay_bytes_total",
			Help: "Total bytes relayed by direction (upstream/downstream)",
		},
		[]string{"direction"},
	)

	// RelayConnectionDuration tracks how long relay connections stay open
	RelayConnectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "desklab_relay_connection_duration_seconds",
			Help:    "Relay connection duration in seconds",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 7200, 14400},
		},
	)
)

// HTTP metrics
var (
	// HTTPErrorsTotal tracks API errors by HTTP status
	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "desklab_http_errors_total",
			Help: "Total API errors by HTTP status",
		},
		[]string{"status"},
	)
)

// Status returns the status label for an operation result.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
