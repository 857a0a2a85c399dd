// Package metrics exposes Prometheus metrics for the contract engine.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/contract-engine/generic"
)

// Metrics provides observability for contracts, fees and reconciliation.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Applied transitions by product and edge
	Transitions *prometheus.CounterVec

	// Rejected transitions by product, target and reason
	RejectedTransitions *prometheus.CounterVec

	// Fee calculations by business category and result
	FeeCalculations *prometheus.CounterVec

	// Reconciliations by product and outcome
	Reconciliations *prometheus.CounterVec

	// Partner portal call latency by outcome
	PartnerLatency *prometheus.HistogramVec
}

var _ generic.TransitionObserver = (*Metrics)(nil)

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_transitions_total",
			Help: "Total applied contract status transitions",
		}, []string{"product", "from", "to"}),

		RejectedTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_transitions_rejected_total",
			Help: "Total rejected contract status transitions by reason",
		}, []string{"product", "to", "reason"}), // reason: "not_allowed", "precondition_missing", "concurrent_modification", "error"

		FeeCalculations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_fee_calculations_total",
			Help: "Total fee calculations by business category and result",
		}, []string{"category", "result"}),

		Reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contracts_reconciliations_total",
			Help: "Total partner premium reconciliations by outcome",
		}, []string{"product", "outcome"}), // outcome: "success", "unvalidated", "failure"

		PartnerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "contracts_partner_call_duration_seconds",
			Help:    "Duration of partner portal submissions including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
	}
}

// TransitionApplied records an applied transition.
func (m *Metrics) TransitionApplied(_ context.Context, c generic.Contract, tr generic.Transition) {
	if m != nil {
		m.Transitions.WithLabelValues(string(c.Product), string(tr.From), string(tr.To)).Inc()
	}
}

// TransitionRejected records a rejected transition.
func (m *Metrics) TransitionRejected(_ context.Context, c generic.Contract, to generic.Status, err error) {
	if m != nil {
		m.RejectedTransitions.WithLabelValues(string(c.Product), string(to), rejectionReason(err)).Inc()
	}
}

// ObserveFeeCalculation records a fee calculation result.
func (m *Metrics) ObserveFeeCalculation(category string, err error) {
	if m != nil {
		result := "ok"
		if err != nil {
			result = "invalid"
		}
		m.FeeCalculations.WithLabelValues(category, result).Inc()
	}
}

// ObserveReconciliation records a reconciliation outcome.
func (m *Metrics) ObserveReconciliation(product generic.ProductID, outcome string) {
	if m != nil {
		m.Reconciliations.WithLabelValues(string(product), outcome).Inc()
	}
}

// ObservePartnerCall records the duration of a partner submission.
func (m *Metrics) ObservePartnerCall(outcome string, d time.Duration) {
	if m != nil {
		m.PartnerLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, generic.ErrTransitionRejected):
		return "not_allowed"
	case errors.Is(err, generic.ErrPreconditionMissing):
		return "precondition_missing"
	case errors.Is(err, generic.ErrConcurrentModification):
		return "concurrent_modification"
	default:
		return "error"
	}
}
