package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger view controller.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	remoteDuration  *prometheus.HistogramVec
	remoteErrors    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	droppedTriggers *prometheus.CounterVec
	rowsLoaded      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// metrics in it. Using a private registry avoids "duplicate collector"
// panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		remoteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_remote_request_duration_seconds",
				Help:    "Duration of transaction store requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		remoteErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_remote_errors_total",
				Help: "Failed transaction store requests by operation.",
			},
			[]string{"operation"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_controller_transitions_total",
				Help: "Controller state transitions.",
			},
			[]string{"from", "to"},
		),
		droppedTriggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_dropped_triggers_total",
				Help: "Triggers dropped because the controller was not idle.",
			},
			[]string{"trigger"},
		),
		rowsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_rows_loaded_total",
				Help: "Transaction rows received, by load mode.",
			},
			[]string{"mode"},
		),
	}
}

// RecordRemoteDuration records the duration of a store request.
func (m *Metrics) RecordRemoteDuration(operation string, d time.Duration) {
	m.remoteDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRemoteError increments the store error counter.
func (m *Metrics) IncrRemoteError(operation string) {
	m.remoteErrors.WithLabelValues(operation).Inc()
}

// IncrTransition counts a controller state change.
func (m *Metrics) IncrTransition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

// IncrDroppedTrigger counts a trigger rejected by the idle gate.
func (m *Metrics) IncrDroppedTrigger(trigger string) {
	m.droppedTriggers.WithLabelValues(trigger).Inc()
}

// AddRowsLoaded counts rows received by a full reload or a load-more.
func (m *Metrics) AddRowsLoaded(mode string, n int) {
	m.rowsLoaded.WithLabelValues(mode).Add(float64(n))
}

// DroppedTriggers returns the cumulative dropped count for trigger.
func (m *Metrics) DroppedTriggers(trigger string) float64 {
	return getCounterValue(m.droppedTriggers, trigger)
}

// RemoteErrors returns the cumulative error count for operation.
func (m *Metrics) RemoteErrors(operation string) float64 {
	return getCounterValue(m.remoteErrors, operation)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
