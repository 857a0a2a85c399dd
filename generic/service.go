/*
service.go - Contract lifecycle orchestration

PURPOSE:
  Handles the full lifecycle of a contract against the store:
  1. Creation: Generate identity and number, start the history in draft
  2. Editing: SET_FIELD-style changes while the contract is editable
  3. Transitions: Role-gated status changes with preconditions
  4. Reconciliation: Overwrite the partner premium snapshot

FLOW:
  ┌──────────┐    ┌──────────────────────┐    ┌──────────────────────────┐
  │   Load   │──▶ │ pure change (Apply,  │──▶ │ SaveIfStatus(expected =  │
  │          │    │ WithFees, ...)       │    │ status read at Load)     │
  └──────────┘    └──────────────────────┘    └──────────────────────────┘

  The guarded save turns a lost-update race between two callers into
  ErrConcurrentModification for the slower one.

EXAMPLE:
  svc := generic.NewContractService(store)
  c, err := svc.Create(ctx, generic.NewContractInput{Product: "vehicle", Actor: agent})
  c, err = svc.Transition(ctx, c.ID, generic.StatusPendingApproval, agent, "sent to customer")

SEE ALSO:
  - lifecycle.go: The pure transition function
  - product.go: Product lookup
*/
package generic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// OBSERVER - Metrics and logging hooks
// =============================================================================

// TransitionObserver is notified after each transition attempt. It must not
// block; the metrics and logging packages implement it.
type TransitionObserver interface {
	TransitionApplied(ctx context.Context, c Contract, tr Transition)
	TransitionRejected(ctx context.Context, c Contract, to Status, err error)
}

type nopObserver struct{}

func (nopObserver) TransitionApplied(context.Context, Contract, Transition)     {}
func (nopObserver) TransitionRejected(context.Context, Contract, Status, error) {}

// Observers fans out to several observers.
type Observers []TransitionObserver

func (o Observers) TransitionApplied(ctx context.Context, c Contract, tr Transition) {
	for _, obs := range o {
		obs.TransitionApplied(ctx, c, tr)
	}
}

func (o Observers) TransitionRejected(ctx context.Context, c Contract, to Status, err error) {
	for _, obs := range o {
		obs.TransitionRejected(ctx, c, to, err)
	}
}

// =============================================================================
// CONTRACT SERVICE
// =============================================================================

type ContractService struct {
	Store    ContractStore
	Clock    Clock
	Observer TransitionObserver
	NewID    func() ContractID
}

// NewContractService wires defaults: wall clock, UUID identities, no observer.
func NewContractService(store ContractStore) *ContractService {
	return &ContractService{
		Store:    store,
		Clock:    SystemClock{},
		Observer: nopObserver{},
		NewID:    func() ContractID { return ContractID(uuid.NewString()) },
	}
}

// NewContractInput is what an agent submits to open a contract.
type NewContractInput struct {
	Product ProductID
	Actor   Actor
	Period  *Period
	Fees    FeeBreakdown
	Details json.RawMessage
}

// Create opens a draft contract.
func (s *ContractService) Create(ctx context.Context, in NewContractInput) (Contract, error) {
	line, err := LookupProduct(in.Product)
	if err != nil {
		return Contract{}, err
	}
	if in.Actor.ID == "" {
		return Contract{}, NewValidationError("created_by", "actor is required")
	}
	if in.Period != nil {
		if err := in.Period.Validate(); err != nil {
			return Contract{}, err
		}
	}
	if err := in.Fees.Validate(); err != nil {
		return Contract{}, err
	}

	now := s.Clock.Now()
	number, err := s.nextNumber(ctx, line, now)
	if err != nil {
		return Contract{}, err
	}

	c := NewContract(s.NewID(), number, line.ProductID(), in.Actor.ID, now)
	c.Period = in.Period
	c.Fees = in.Fees
	c.Details = in.Details

	if err := s.Store.Save(ctx, c); err != nil {
		return Contract{}, fmt.Errorf("failed to save contract: %w", err)
	}
	return c, nil
}

func (s *ContractService) nextNumber(ctx context.Context, line ProductLine, at time.Time) (ContractNumber, error) {
	key := line.NumberPrefix() + "-" + at.Format("20060102")
	seq, err := s.Store.NextSequence(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to allocate contract number: %w", err)
	}
	return ContractNumber(fmt.Sprintf("%s-%06d", key, seq)), nil
}

// Get loads a contract.
func (s *ContractService) Get(ctx context.Context, id ContractID) (Contract, error) {
	return s.Store.Load(ctx, id)
}

// List returns contracts matching filter.
func (s *ContractService) List(ctx context.Context, filter ContractFilter) ([]Contract, error) {
	return s.Store.List(ctx, filter)
}

// ContractPatch lists the fields to overwrite. Nil fields stay unchanged.
type ContractPatch struct {
	Period  *Period
	Fees    *FeeBreakdown
	Details json.RawMessage
}

// Update applies a SET_FIELD-style patch. Only the owner or an admin may
// edit, and only while the contract is editable.
func (s *ContractService) Update(ctx context.Context, id ContractID, actor Actor, patch ContractPatch) (Contract, error) {
	c, err := s.Store.Load(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	if role := actor.RoleFor(c.CreatedBy); role == RoleOther {
		return Contract{}, ErrForbidden
	}
	if !c.IsEditable() {
		return Contract{}, fmt.Errorf("%w: status %s", ErrContractLocked, c.Status)
	}

	now := s.Clock.Now()
	next := c
	if patch.Period != nil {
		if next, err = next.WithPeriod(*patch.Period, now); err != nil {
			return Contract{}, err
		}
	}
	if patch.Fees != nil {
		if next, err = next.WithFees(*patch.Fees, now); err != nil {
			return Contract{}, err
		}
	}
	if patch.Details != nil {
		if !json.Valid(patch.Details) {
			return Contract{}, NewValidationError("details", "must be valid JSON")
		}
		next.Details = patch.Details
		next.UpdatedAt = now
	}

	if err := s.Store.SaveIfStatus(ctx, next, c.Status); err != nil {
		return Contract{}, err
	}
	return next, nil
}

// Transition moves a contract to target, appending one history entry.
func (s *ContractService) Transition(ctx context.Context, id ContractID, target Status, actor Actor, note string) (Contract, error) {
	c, err := s.Store.Load(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	line, err := LookupProduct(c.Product)
	if err != nil {
		return Contract{}, err
	}

	tr, err := line.Lifecycle().Apply(c, target, actor, note, s.Clock.Now())
	if err != nil {
		s.Observer.TransitionRejected(ctx, c, target, err)
		return Contract{}, err
	}

	if err := s.Store.SaveIfStatus(ctx, tr.Contract, c.Status); err != nil {
		s.Observer.TransitionRejected(ctx, c, target, err)
		return Contract{}, err
	}
	s.Observer.TransitionApplied(ctx, tr.Contract, tr)
	return tr.Contract, nil
}

// AvailableTransitions lists the statuses actor may move the contract to.
func (s *ContractService) AvailableTransitions(ctx context.Context, id ContractID, actor Actor) ([]Status, error) {
	c, err := s.Store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	line, err := LookupProduct(c.Product)
	if err != nil {
		return nil, err
	}
	return line.Lifecycle().Targets(c.Status, actor.RoleFor(c.CreatedBy)), nil
}

// RecordExternalPremium overwrites the reconciliation snapshot.
func (s *ContractService) RecordExternalPremium(ctx context.Context, id ContractID, ep ExternalPremium) (Contract, error) {
	c, err := s.Store.Load(ctx, id)
	if err != nil {
		return Contract{}, err
	}
	next, err := c.WithExternalPremium(ep, s.Clock.Now())
	if err != nil {
		return Contract{}, err
	}
	if err := s.Store.SaveIfStatus(ctx, next, c.Status); err != nil {
		return Contract{}, err
	}
	return next, nil
}
