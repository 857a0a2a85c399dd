package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/warp/contract-engine/generic"
)

func TestMetrics_Transitions(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	ctx := context.Background()
	c := generic.NewContract("c-1", "XE-1", "vehicle", "agent-1", time.Now())

	m.TransitionApplied(ctx, c, generic.Transition{From: generic.StatusDraft, To: generic.StatusPendingApproval})
	m.TransitionApplied(ctx, c, generic.Transition{From: generic.StatusDraft, To: generic.StatusPendingApproval})
	m.TransitionRejected(ctx, c, generic.StatusIssued, &generic.TransitionRejectedError{From: generic.StatusDraft, To: generic.StatusIssued})
	m.TransitionRejected(ctx, c, generic.StatusPendingApproval, &generic.PreconditionMissingError{Fields: []string{"period"}})
	m.TransitionRejected(ctx, c, generic.StatusCancelled, generic.ErrConcurrentModification)
	m.TransitionRejected(ctx, c, generic.StatusCancelled, errors.New("disk full"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("vehicle", "draft", "pending_approval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTransitions.WithLabelValues("vehicle", "issued", "not_allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTransitions.WithLabelValues("vehicle", "pending_approval", "precondition_missing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTransitions.WithLabelValues("vehicle", "cancelled", "concurrent_modification")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTransitions.WithLabelValues("vehicle", "cancelled", "error")))
}

func TestMetrics_FeesAndReconciliation(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveFeeCalculation("private", nil)
	m.ObserveFeeCalculation("private", generic.NewValidationError("vehicle_value", "must be positive"))
	m.ObserveReconciliation("vehicle", "unvalidated")
	m.ObservePartnerCall("success", 200*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeeCalculations.WithLabelValues("private", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeeCalculations.WithLabelValues("private", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciliations.WithLabelValues("vehicle", "unvalidated")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PartnerLatency))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.TransitionApplied(ctx, generic.Contract{}, generic.Transition{})
		m.TransitionRejected(ctx, generic.Contract{}, generic.StatusIssued, nil)
		m.ObserveFeeCalculation("private", nil)
		m.ObserveReconciliation("vehicle", "success")
		m.ObservePartnerCall("failure", time.Second)
	})
}
