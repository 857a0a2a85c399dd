/*
store.go - Persistence interface for contracts

PURPOSE:
  Defines the interface between the contract engine and the database.
  Each contract is one document; a save is atomic for that document only.
  There are no multi-document transactions.

KEY OPERATIONS:
  Load / LoadByNumber: Read one contract
  Save:                Insert or overwrite (last write wins)
  SaveIfStatus:        Overwrite only if the stored status still equals the
                       expected one; otherwise ErrConcurrentModification
  List:                Filtered listing for back-office screens
  NextSequence:        Monotonic counter used for contract numbers

APPEND-ONLY HISTORY:
  Both Save and SaveIfStatus reject a contract whose history does not
  extend the stored history (ErrHistoryRewrite). Stores only ever insert
  history rows.

CONCURRENCY:
  Plain Save has last-write-wins semantics. Callers racing transitions on
  the same contract must use SaveIfStatus, which the ContractService does.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: Uses the guarded save for every change
*/
package generic

import "context"

// ContractStore persists contracts.
type ContractStore interface {
	// Load returns the contract or ErrContractNotFound.
	Load(ctx context.Context, id ContractID) (Contract, error)

	// LoadByNumber returns the contract with the given number or ErrContractNotFound.
	LoadByNumber(ctx context.Context, number ContractNumber) (Contract, error)

	// Save inserts or overwrites the contract.
	Save(ctx context.Context, c Contract) error

	// SaveIfStatus overwrites the contract only if the stored status equals expected.
	SaveIfStatus(ctx context.Context, c Contract, expected Status) error

	// List returns contracts matching filter, newest first.
	List(ctx context.Context, filter ContractFilter) ([]Contract, error)

	// NextSequence returns the next value (starting at 1) of the named counter.
	NextSequence(ctx context.Context, key string) (int64, error)
}

// ContractFilter narrows List. Zero fields match everything.
type ContractFilter struct {
	Product   ProductID
	Status    Status
	CreatedBy ActorID
	Limit     int
}

// Matches reports whether c passes the filter (Limit is ignored).
func (f ContractFilter) Matches(c Contract) bool {
	if f.Product != "" && c.Product != f.Product {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
		return false
	}
	return true
}
