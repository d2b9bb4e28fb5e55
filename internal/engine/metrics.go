package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the engine.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Journaled calls by op and outcome
	Calls *prometheus.CounterVec

	// Deposited events by kind
	Events *prometheus.CounterVec

	// Weight charged to blocks
	Weight prometheus.Counter

	// Current block height
	BlockHeight prometheus.Gauge

	// Number of live claims
	Proofs prometheus.Gauge

	// Calls refused before reaching the journal, by runtime error code
	Refused *prometheus.CounterVec
}

// NewMetrics creates the engine metrics and registers them on reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Calls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poe_calls_total",
			Help: "Total journaled registry calls by op and outcome",
		}, []string{"op", "outcome"}),

		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poe_events_total",
			Help: "Total deposited registry events by kind",
		}, []string{"kind"}),

		Weight: f.NewCounter(prometheus.CounterOpts{
			Name: "poe_weight_total",
			Help: "Total call weight charged to blocks",
		}),

		BlockHeight: f.NewGauge(prometheus.GaugeOpts{
			Name: "poe_block_height",
			Help: "Current block height",
		}),

		Proofs: f.NewGauge(prometheus.GaugeOpts{
			Name: "poe_proofs",
			Help: "Number of live proof claims",
		}),

		Refused: f.NewCounterVec(prometheus.CounterOpts{
			Name: "poe_refused_calls_total",
			Help: "Total calls refused before journaling by error code",
		}, []string{"code"}),
	}
}

// ObserveCall records a journaled call.
func (m *Metrics) ObserveCall(op, outcome string, weight uint64) {
	if m != nil {
		m.Calls.WithLabelValues(op, outcome).Inc()
		m.Weight.Add(float64(weight))
	}
}

// IncrementEvent records a deposited event.
func (m *Metrics) IncrementEvent(kind string) {
	if m != nil {
		m.Events.WithLabelValues(kind).Inc()
	}
}

// IncrementRefused records a call refused with a runtime error.
func (m *Metrics) IncrementRefused(code RuntimeErrorCode) {
	if m != nil {
		m.Refused.WithLabelValues(string(code)).Inc()
	}
}

// SetBlockHeight records the current block height.
func (m *Metrics) SetBlockHeight(h uint64) {
	if m != nil {
		m.BlockHeight.Set(float64(h))
	}
}

// SetProofs records the number of live claims.
func (m *Metrics) SetProofs(n int) {
	if m != nil {
		m.Proofs.Set(float64(n))
	}
}
