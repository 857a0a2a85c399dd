/*
contract.go - The contract aggregate shared by every product line

PURPOSE:
  A Contract owns identity, coverage period, fee breakdown, status and the
  status history. Product lines (vehicle, health, travel) keep their own
  typed details in Details as JSON and read them back through their own
  decoders.

EDITABLE WINDOW:
  draft, pending_approval:  fees, period and details may change
  customer_approved:        locked (the customer signed these figures);
                            only the reconciliation snapshot may change
  issued, cancelled:        terminal, nothing changes

All mutators return a modified copy and never touch the receiver.

SEE ALSO:
  - lifecycle.go: Status changes
  - service.go: Orchestrates load -> mutate -> guarded save
*/
package generic

import (
	"encoding/json"
	"time"
)

// Contract is one insurance contract of any product line.
type Contract struct {
	ID      ContractID     `json:"id"`
	Number  ContractNumber `json:"contract_number"`
	Product ProductID      `json:"product"`

	Period *Period      `json:"period,omitempty"`
	Fees   FeeBreakdown `json:"fee_breakdown"`

	Status   Status           `json:"status"`
	History  StatusHistory    `json:"status_history"`
	External *ExternalPremium `json:"external_premium,omitempty"`

	// Details holds product-specific data (vehicle, insured persons, trip).
	Details json.RawMessage `json:"details,omitempty"`

	CreatedBy ActorID   `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewContract creates a draft contract with its creation history entry.
func NewContract(id ContractID, number ContractNumber, product ProductID, createdBy ActorID, at time.Time) Contract {
	return Contract{
		ID:        id,
		Number:    number,
		Product:   product,
		Status:    StatusDraft,
		History:   NewHistory(createdBy, at, "created"),
		CreatedBy: createdBy,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

// =============================================================================
// PREDICATES
// =============================================================================

func (c Contract) IsTerminal() bool  { return c.Status.IsTerminal() }
func (c Contract) IsIssued() bool    { return c.Status == StatusIssued }
func (c Contract) IsCancelled() bool { return c.Status == StatusCancelled }

// IsEditable reports whether fees, period and details may be changed.
func (c Contract) IsEditable() bool {
	return c.Status == StatusDraft || c.Status == StatusPendingApproval
}

// CanBeCancelled reports whether actor may cancel under lifecycle l.
func (c Contract) CanBeCancelled(l *Lifecycle, actor Actor) bool {
	return l.CanTransition(c.Status, StatusCancelled, actor.RoleFor(c.CreatedBy))
}

// HasPeriod reports whether a coverage period is set.
func (c Contract) HasPeriod() bool { return c.Period != nil && !c.Period.IsZero() }

// DecodeDetails unmarshals Details into v. Empty details leave v untouched.
func (c Contract) DecodeDetails(v any) error {
	if len(c.Details) == 0 {
		return nil
	}
	return json.Unmarshal(c.Details, v)
}

// =============================================================================
// MUTATORS - Return copies
// =============================================================================

// WithFees replaces the fee breakdown.
func (c Contract) WithFees(f FeeBreakdown, at time.Time) (Contract, error) {
	if !c.IsEditable() {
		return c, ErrContractLocked
	}
	if err := f.Validate(); err != nil {
		return c, err
	}
	c.Fees = f
	c.UpdatedAt = at
	return c, nil
}

// WithPeriod replaces the coverage period.
func (c Contract) WithPeriod(p Period, at time.Time) (Contract, error) {
	if !c.IsEditable() {
		return c, ErrContractLocked
	}
	if err := p.Validate(); err != nil {
		return c, err
	}
	c.Period = &p
	c.UpdatedAt = at
	return c, nil
}

// WithDetails replaces the product details with the JSON encoding of v.
func (c Contract) WithDetails(v any, at time.Time) (Contract, error) {
	if !c.IsEditable() {
		return c, ErrContractLocked
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return c, err
	}
	c.Details = raw
	c.UpdatedAt = at
	return c, nil
}

// WithExternalPremium overwrites the reconciliation snapshot. Allowed in any
// non-terminal status.
func (c Contract) WithExternalPremium(ep ExternalPremium, at time.Time) (Contract, error) {
	if c.IsTerminal() {
		return c, ErrContractLocked
	}
	c.External = &ep
	c.UpdatedAt = at
	return c, nil
}
