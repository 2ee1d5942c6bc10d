package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the twin registration module.
type Metrics struct {
	// Stage transitions by reached status
	StageTransitions *prometheus.CounterVec

	// Outbound adapter call latencies by system and operation
	AdapterLatency *prometheus.HistogramVec

	// Share attempts by outcome
	ShareOutcome *prometheus.CounterVec

	// Overall registration latency by final status
	RegisterLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance with all twin module metrics registered.
func New() *Metrics {
	return &Metrics{
		StageTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twinhub_registration_stage_transitions_total",
			Help: "Total aspect registration stage transitions by reached status",
		}, []string{"status"}), // status: "STORED", "EDC_REGISTERED", "DTR_REGISTERED"

		AdapterLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twinhub_adapter_duration_seconds",
			Help:    "Duration of outbound adapter calls by system and operation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"system", "operation"}), // system: "connector", "registry", "submodel_store"

		ShareOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twinhub_share_outcomes_total",
			Help: "Total twin share attempts by outcome",
		}, []string{"outcome"}), // outcome: "shared", "already_shared", "rejected"

		RegisterLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twinhub_registration_duration_seconds",
			Help:    "Duration of full aspect registration runs by final status",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"status"}),
	}
}

// IncrementStage records an aspect registration reaching a status.
func (m *Metrics) IncrementStage(status string) {
	if m != nil {
		m.StageTransitions.WithLabelValues(status).Inc()
	}
}

// ObserveAdapterLatency records the duration of one outbound adapter call.
func (m *Metrics) ObserveAdapterLatency(system, operation string, d time.Duration) {
	if m != nil {
		m.AdapterLatency.WithLabelValues(system, operation).Observe(d.Seconds())
	}
}

// IncrementShareOutcome records the outcome of a share attempt.
func (m *Metrics) IncrementShareOutcome(outcome string) {
	if m != nil {
		m.ShareOutcome.WithLabelValues(outcome).Inc()
	}
}

// ObserveRegisterLatency records the total registration run duration.
func (m *Metrics) ObserveRegisterLatency(status string, d time.Duration) {
	if m != nil {
		m.RegisterLatency.WithLabelValues(status).Observe(d.Seconds())
	}
}
