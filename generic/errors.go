/*
errors.go - Centralized error types for the contract engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Product packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Validation errors - Malformed or out-of-range calculator/resolver input
  2. Lifecycle errors - Illegal transitions and missing preconditions
  3. Reconciliation errors - Parse inconsistencies and partner call failures
  4. Store errors - Not found and concurrent modification

PROPAGATION:
  Calculation and lifecycle errors are returned as values carrying enough
  detail for the UI to highlight the exact problem. A ParseInconsistency is
  recorded on the reconciliation snapshot and is never fatal.

USAGE:
  var verr *generic.ValidationError
  if errors.As(err, &verr) {
      highlight(verr.Field)
  }

SEE ALSO:
  - lifecycle.go: Returns TransitionRejectedError / PreconditionMissingError
  - premium/calculator.go: Returns ValidationError
  - reconcile/reconciler.go: Returns ExternalCallError
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")

	// ErrTransitionRejected is returned for a status change the graph or the
	// actor's role does not allow.
	ErrTransitionRejected = errors.New("transition rejected")

	// ErrPreconditionMissing is returned when a legal transition lacks
	// required business data.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrParseInconsistency marks a partner fee report whose parts do not
	// add up to its stated total.
	ErrParseInconsistency = errors.New("parse inconsistency")

	// ErrExternalCall is returned when the partner system call fails.
	ErrExternalCall = errors.New("external call failed")

	// ErrContractNotFound is returned when a contract does not exist.
	ErrContractNotFound = errors.New("contract not found")

	// ErrProductNotFound is returned for an unregistered product line.
	ErrProductNotFound = errors.New("product line not registered")

	// ErrForbidden is returned when the actor is neither the contract owner
	// nor an administrator.
	ErrForbidden = errors.New("actor may not modify this contract")

	// ErrContractLocked is returned when editing a contract outside its
	// editable window.
	ErrContractLocked = errors.New("contract is not editable")

	// ErrConcurrentModification is returned when a guarded save finds the
	// stored status changed underneath it.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrDuplicateContractNumber is returned when a contract number is reused.
	ErrDuplicateContractNumber = errors.New("duplicate contract number")

	// ErrHistoryRewrite is returned when a save would alter existing history.
	ErrHistoryRewrite = errors.New("status history is append-only")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the failing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand used by calculators and resolvers.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransitionRejectedError carries the attempted and the current state.
type TransitionRejectedError struct {
	From Status
	To   Status
	Role Role
}

func (e *TransitionRejectedError) Error() string {
	return fmt.Sprintf("transition %s -> %s not allowed for role %s", e.From, e.To, e.Role)
}

func (e *TransitionRejectedError) Unwrap() error { return ErrTransitionRejected }

// PreconditionMissingError lists the fields the caller must fill before
// the transition can succeed.
type PreconditionMissingError struct {
	Target Status
	Fields []string
}

func (e *PreconditionMissingError) Error() string {
	return fmt.Sprintf("cannot move to %s, missing: %s", e.Target, strings.Join(e.Fields, ", "))
}

func (e *PreconditionMissingError) Unwrap() error { return ErrPreconditionMissing }

// ParseInconsistencyError describes a failed tolerance check.
type ParseInconsistencyError struct {
	StatedTotal  TaxedAmount
	ComponentSum TaxedAmount
}

func (e *ParseInconsistencyError) Error() string {
	return fmt.Sprintf("components (%s / %s) do not match stated total (%s / %s)",
		e.ComponentSum.BeforeTax, e.ComponentSum.AfterTax,
		e.StatedTotal.BeforeTax, e.StatedTotal.AfterTax)
}

func (e *ParseInconsistencyError) Unwrap() error { return ErrParseInconsistency }

// ExternalCallError wraps the partner client failure.
type ExternalCallError struct {
	Operation string
	Cause     error
}

func (e *ExternalCallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Cause)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ExternalCallError) Unwrap() []error { return []error{ErrExternalCall, e.Cause} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrExternalCall)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrTransitionRejected) ||
		errors.Is(err, ErrPreconditionMissing) ||
		errors.Is(err, ErrContractLocked) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContractNotFound) ||
		errors.Is(err, ErrProductNotFound)
}
