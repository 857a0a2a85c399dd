/*
lifecycle.go - Contract status graph with role gating

PURPOSE:
  One finite-state graph shared by every product line. Each edge carries
  the role it requires; everything not in the table is forbidden.

GRAPH:
  ┌───────┐  submit   ┌──────────────────┐ approve ┌───────────────────┐ issue  ┌────────┐
  │ draft │ ────────▶ │ pending_approval │ ──────▶ │ customer_approved │ ─────▶ │ issued │
  └───────┘           └──────────────────┘         └───────────────────┘ (admin)└────────┘
      │                        │                          ┆
      └──────────┬─────────────┘                          ┆ vehicle only
                 ▼                                        ▼
            ┌───────────┐ ◀┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┄┘
            │ cancelled │
            └───────────┘

  issued and cancelled are terminal.

REQUIREMENTS:
  OwnerOrAdmin: the agent who created the contract, or an administrator
  AdminOnly:    administrators only
  Forbidden:    every pair not listed

PRECONDITIONS:
  Product lines attach a PreconditionFunc. It runs only after the edge is
  known to be legal for the role, so a caller either gets the
  TransitionRejectedError or the exact list of missing fields.

USAGE:
  lc := generic.DefaultLifecycle().WithPreconditions(vehicleRequiredFields)
  tr, err := lc.Apply(contract, generic.StatusPendingApproval, actor, "sent to customer", now)
  contract = tr.Contract

SEE ALSO:
  - history.go: The immutable log the transition extends
  - product.go: Product lines register their lifecycle variant
*/
package generic

import (
	"sort"
	"time"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the wire-stable contract status.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingApproval  Status = "pending_approval"
	StatusCustomerApproved Status = "customer_approved"
	StatusIssued           Status = "issued"
	StatusCancelled        Status = "cancelled"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusPendingApproval,
	StatusCustomerApproved,
	StatusIssued,
	StatusCancelled,
}

// ParseStatus validates a wire value.
func ParseStatus(s string) (Status, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further change is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusIssued || s == StatusCancelled
}

// =============================================================================
// REQUIREMENT TABLE
// =============================================================================

// Requirement is the minimum role an edge needs.
type Requirement int

const (
	Forbidden Requirement = iota
	OwnerOrAdmin
	AdminOnly
)

func (r Requirement) allows(role Role) bool {
	switch r {
	case OwnerOrAdmin:
		return role == RoleOwner || role == RoleAdmin
	case AdminOnly:
		return role == RoleAdmin
	default:
		return false
	}
}

type edge struct {
	From Status
	To   Status
}

// PreconditionFunc returns the names of fields that must be filled before
// c can move to target. An empty result means the transition may proceed.
type PreconditionFunc func(c Contract, target Status) []string

// Lifecycle is an immutable transition table plus optional preconditions.
type Lifecycle struct {
	rules         map[edge]Requirement
	preconditions PreconditionFunc
}

// DefaultLifecycle returns the graph shared by all product lines.
func DefaultLifecycle() *Lifecycle {
	return &Lifecycle{rules: map[edge]Requirement{
		{StatusDraft, StatusPendingApproval}:            OwnerOrAdmin,
		{StatusDraft, StatusCancelled}:                  OwnerOrAdmin,
		{StatusPendingApproval, StatusCustomerApproved}: OwnerOrAdmin,
		{StatusPendingApproval, StatusCancelled}:        OwnerOrAdmin,
		{StatusCustomerApproved, StatusIssued}:          AdminOnly,
	}}
}

// WithRule returns a copy of the lifecycle with one edge set. Edges out of
// a terminal status are ignored.
func (l *Lifecycle) WithRule(from, to Status, req Requirement) *Lifecycle {
	out := l.clone()
	if from.IsTerminal() {
		return out
	}
	if req == Forbidden {
		delete(out.rules, edge{from, to})
	} else {
		out.rules[edge{from, to}] = req
	}
	return out
}

// WithPreconditions returns a copy with fn attached.
func (l *Lifecycle) WithPreconditions(fn PreconditionFunc) *Lifecycle {
	out := l.clone()
	out.preconditions = fn
	return out
}

func (l *Lifecycle) clone() *Lifecycle {
	rules := make(map[edge]Requirement, len(l.rules))
	for k, v := range l.rules {
		rules[k] = v
	}
	return &Lifecycle{rules: rules, preconditions: l.preconditions}
}

// Requirement returns what the edge from -> to needs.
func (l *Lifecycle) Requirement(from, to Status) Requirement {
	return l.rules[edge{from, to}]
}

// CanTransition reports whether role may move a contract from -> to.
func (l *Lifecycle) CanTransition(from, to Status, role Role) bool {
	return l.Requirement(from, to).allows(role)
}

// Targets lists statuses reachable from `from` for role, in lifecycle order.
func (l *Lifecycle) Targets(from Status, role Role) []Status {
	var out []Status
	for e, req := range l.rules {
		if e.From == from && req.allows(role) {
			out = append(out, e.To)
		}
	}
	sort.Slice(out, func(i, j int) bool { return statusOrder(out[i]) < statusOrder(out[j]) })
	return out
}

// MissingFields runs the preconditions without applying anything.
func (l *Lifecycle) MissingFields(c Contract, target Status) []string {
	if l.preconditions == nil {
		return nil
	}
	return l.preconditions(c, target)
}

func statusOrder(s Status) int {
	for i, st := range AllStatuses {
		if st == s {
			return i
		}
	}
	return len(AllStatuses)
}

// =============================================================================
// APPLY - Pure transition function
// =============================================================================

// Transition is the outcome of a successful Apply.
type Transition struct {
	From     Status
	To       Status
	Entry    HistoryEntry
	Contract Contract
}

// Apply checks role, state and preconditions and returns the contract in its
// new status with exactly one history entry added. c itself is not modified.
func (l *Lifecycle) Apply(c Contract, to Status, actor Actor, note string, at time.Time) (Transition, error) {
	role := actor.RoleFor(c.CreatedBy)
	if !l.CanTransition(c.Status, to, role) {
		return Transition{}, &TransitionRejectedError{From: c.Status, To: to, Role: role}
	}
	if missing := l.MissingFields(c, to); len(missing) > 0 {
		return Transition{}, &PreconditionMissingError{Target: to, Fields: missing}
	}

	entry := HistoryEntry{Status: to, Actor: actor.ID, Role: role, At: at, Note: note}
	next := c
	next.History = c.History.Append(entry)
	if last, ok := next.History.Last(); ok {
		entry = last
	}
	next.Status = to
	next.UpdatedAt = entry.At

	return Transition{From: c.Status, To: to, Entry: entry, Contract: next}, nil
}
