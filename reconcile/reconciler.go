package reconcile

import (
	"context"
	"fmt"

	"github.com/warp/contract-engine/generic"
	"github.com/warp/contract-engine/logging"
	"github.com/warp/contract-engine/partner"
)

// Outcome labels reported to the Recorder.
const (
	OutcomeSuccess     = "success"
	OutcomeUnvalidated = "unvalidated"
	OutcomeFailure     = "failure"
)

// Submitter is the partner submission collaborator.
type Submitter interface {
	SubmitForReview(ctx context.Context, payload partner.Payload, auth partner.AuthContext) (partner.Result, error)
}

// Recorder counts reconciliation outcomes.
type Recorder interface {
	ObserveReconciliation(product generic.ProductID, outcome string)
}

// Reconciler submits a contract and turns the partner's answer into an
// ExternalPremium snapshot. It does not retry; the Submitter does.
type Reconciler struct {
	Client  Submitter
	Locale  Locale
	Clock   generic.Clock
	Metrics Recorder
}

// NewReconciler uses the default locale and the wall clock.
func NewReconciler(client Submitter) *Reconciler {
	return &Reconciler{Client: client, Locale: DefaultLocale(), Clock: generic.SystemClock{}}
}

// Reconcile submits payload and compares the partner premium with the
// contract's internal total.
//
// A failed call returns a snapshot with Success=false and an
// ExternalCallError; the report is not parsed. A report whose components
// disagree with its total is returned with Validated=false and a warning,
// and no error.
func (r *Reconciler) Reconcile(ctx context.Context, c generic.Contract, payload partner.Payload, auth partner.AuthContext) (generic.ExternalPremium, error) {
	now := r.Clock.Now()

	res, err := r.Client.SubmitForReview(ctx, payload, auth)
	if err == nil && !res.Success {
		err = fmt.Errorf("partner reported failure: %s", res.Error)
	}
	if err != nil {
		r.observe(c.Product, OutcomeFailure)
		logging.Error().Add(
			logging.Component("reconcile"),
			logging.ContractID(c.ID),
			logging.ContractNumber(c.Number),
			logging.ErrorField(err),
		).Msg("partner submission failed")
		return generic.ExternalPremium{CheckedAt: now, Success: false, Error: err.Error()},
			&generic.ExternalCallError{Operation: "submit_for_review", Cause: err}
	}

	ep := r.Snapshot(c, res.RawText)
	ep.CheckedAt = now

	var event *logging.LogEvent
	outcome := OutcomeSuccess
	if ep.Validated {
		event = logging.Info()
	} else {
		outcome = OutcomeUnvalidated
		event = logging.Warn().Add(logging.Str("warning", ep.Warning))
	}
	r.observe(c.Product, outcome)
	event.Add(
		logging.Component("reconcile"),
		logging.ContractID(c.ID),
		logging.ContractNumber(c.Number),
		logging.Amount("partner_total", ep.Components.Total.AfterTax),
		logging.Amount("internal_total", c.Fees.TotalAfterDiscount),
		logging.Amount("discount", ep.Discount.Amount),
		logging.Validated(ep.Validated),
	).Msg("partner premium reconciled")

	return ep, nil
}

// Snapshot parses a fee report and compares it with c. It has no side
// effects; CheckedAt is left for the caller.
func (r *Reconciler) Snapshot(c generic.Contract, rawText string) generic.ExternalPremium {
	parsed := Parse(rawText, r.Locale)
	comps := parsed.Components

	ep := generic.ExternalPremium{
		Components: comps,
		Discount:   DeriveDiscount(c.Fees.TotalAfterDiscount, comps.Total.AfterTax),
		Validated:  ValidatePremiumData(comps, r.Locale.Tolerance),
		Success:    true,
	}
	if !ep.Validated {
		sum := comps.ComponentSum()
		ep.Warning = fmt.Sprintf("partner components sum to %s (%s before tax) but the stated total is %s (%s before tax)",
			FormatAmount(sum.AfterTax, r.Locale), FormatAmount(sum.BeforeTax, r.Locale),
			FormatAmount(comps.Total.AfterTax, r.Locale), FormatAmount(comps.Total.BeforeTax, r.Locale))
	}
	return ep
}

// Recheck reconciles a stored contract and overwrites its snapshot. The
// snapshot is recorded on failure too, so callers can see the last error.
// The partner error, if any, is returned after the snapshot is saved.
func (r *Reconciler) Recheck(ctx context.Context, svc *generic.ContractService, id generic.ContractID, auth partner.AuthContext) (generic.Contract, error) {
	c, err := svc.Get(ctx, id)
	if err != nil {
		return generic.Contract{}, err
	}
	payload, err := PayloadFor(c)
	if err != nil {
		return generic.Contract{}, err
	}

	ep, callErr := r.Reconcile(ctx, c, payload, auth)
	updated, err := svc.RecordExternalPremium(ctx, id, ep)
	if err != nil {
		return generic.Contract{}, err
	}
	return updated, callErr
}

// PayloadFor builds the submission payload from a stored contract.
func PayloadFor(c generic.Contract) (partner.Payload, error) {
	fields := map[string]any{}
	if err := c.DecodeDetails(&fields); err != nil {
		return partner.Payload{}, fmt.Errorf("contract %s has corrupt details: %w", c.ID, err)
	}
	if c.Period != nil {
		fields["period_start"] = c.Period.Start.Format(generic.DateLayout)
		fields["period_end"] = c.Period.End.Format(generic.DateLayout)
	}
	fields["total_after_discount"] = c.Fees.TotalAfterDiscount.Int64()
	return partner.Payload{
		ContractNumber: string(c.Number),
		Product:        string(c.Product),
		Fields:         fields,
	}, nil
}

func (r *Reconciler) observe(product generic.ProductID, outcome string) {
	if r.Metrics != nil {
		r.Metrics.ObserveReconciliation(product, outcome)
	}
}
