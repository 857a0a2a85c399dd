/*
Package sqlite provides a SQLite-backed implementation of generic.ContractStore.

PURPOSE:
  Persists contracts, their status history and the number sequences in
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  generic.ContractStore: Contract persistence

APPEND-ONLY ENFORCEMENT:
  The status history lives in its own table:
  - No UPDATE statements on contract_status_history
  - No DELETE statements on contract_status_history (Reset aside)
  - A save only inserts the entries past the stored length, after checking
    the new history extends the stored one (ErrHistoryRewrite otherwise)

KEY TABLES:
  contracts:               One row per contract; period, fees, partner
                           snapshot and details as JSON columns
  contract_status_history: Immutable audit trail, one row per entry
  sequences:               Counters behind contract numbers

GUARDED SAVE:
  SaveIfStatus runs "UPDATE ... WHERE id = ? AND status = ?" inside a
  database transaction. Zero affected rows means another writer moved the
  contract first (ErrConcurrentModification).

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection so ":memory:"
  databases are shared across calls. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/contracts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := generic.NewContractService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definition
  - generic/history.go: History invariants checked on load
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/contract-engine/generic"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements generic.ContractStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ generic.ContractStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Contracts (one document per row)
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		product TEXT NOT NULL,
		status TEXT NOT NULL,
		period_json TEXT,
		fees_json TEXT NOT NULL,
		external_json TEXT,
		details_json TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_product_status
		ON contracts(product, status);
	CREATE INDEX IF NOT EXISTS idx_contracts_created_by
		ON contracts(created_by);
	CREATE INDEX IF NOT EXISTS idx_contracts_created_at
		ON contracts(created_at);

	-- Status history (append-only)
	CREATE TABLE IF NOT EXISTS contract_status_history (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		seq INTEGER NOT NULL,
		status TEXT NOT NULL,
		actor TEXT NOT NULL,
		role TEXT NOT NULL,
		at TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (contract_id, seq)
	);

	-- Sequences (contract numbers)
	CREATE TABLE IF NOT EXISTS sequences (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// READS
// =============================================================================

const selectContract = `
	SELECT id, number, product, status, period_json, fees_json, external_json,
	       details_json, created_by, created_at, updated_at
	FROM contracts
`

// Load returns the contract or ErrContractNotFound.
func (s *Store) Load(ctx context.Context, id generic.ContractID) (generic.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadOne(ctx, s.db, selectContract+" WHERE id = ?", string(id))
}

// LoadByNumber returns the contract with the given number or ErrContractNotFound.
func (s *Store) LoadByNumber(ctx context.Context, number generic.ContractNumber) (generic.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadOne(ctx, s.db, selectContract+" WHERE number = ?", string(number))
}

func (s *Store) loadOne(ctx context.Context, q querier, query string, key string) (generic.Contract, error) {
	c, err := scanContract(q.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return generic.Contract{}, fmt.Errorf("%w: %s", generic.ErrContractNotFound, key)
	}
	if err != nil {
		return generic.Contract{}, err
	}

	entries, err := loadHistory(ctx, q, c.ID)
	if err != nil {
		return generic.Contract{}, err
	}
	if c.History, err = generic.RestoreHistory(entries); err != nil {
		return generic.Contract{}, fmt.Errorf("contract %s: %w", c.ID, err)
	}
	return c, nil
}

// List returns contracts matching filter, newest first.
func (s *Store) List(ctx context.Context, filter generic.ContractFilter) ([]generic.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.Product != "" {
		where = append(where, "product = ?")
		args = append(args, string(filter.Product))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, string(filter.CreatedBy))
	}

	query := selectContract
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, number DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}

	var result []generic.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Histories are loaded after the cursor is closed: the pool holds one connection.
	for i := range result {
		entries, err := loadHistory(ctx, s.db, result[i].ID)
		if err != nil {
			return nil, err
		}
		if result[i].History, err = generic.RestoreHistory(entries); err != nil {
			return nil, fmt.Errorf("contract %s: %w", result[i].ID, err)
		}
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (generic.Contract, error) {
	var (
		c                                 generic.Contract
		id, number, product, status       string
		periodJSON, externalJSON, details sql.NullString
		feesJSON, createdBy               string
		createdAt, updatedAt              string
	)
	if err := row.Scan(&id, &number, &product, &status, &periodJSON, &feesJSON,
		&externalJSON, &details, &createdBy, &createdAt, &updatedAt); err != nil {
		return generic.Contract{}, err
	}

	c.ID = generic.ContractID(id)
	c.Number = generic.ContractNumber(number)
	c.Product = generic.ProductID(product)
	c.Status = generic.Status(status)
	c.CreatedBy = generic.ActorID(createdBy)

	if periodJSON.Valid && periodJSON.String != "" {
		var p generic.Period
		if err := json.Unmarshal([]byte(periodJSON.String), &p); err != nil {
			return generic.Contract{}, fmt.Errorf("failed to decode period of %s: %w", id, err)
		}
		c.Period = &p
	}
	if err := json.Unmarshal([]byte(feesJSON), &c.Fees); err != nil {
		return generic.Contract{}, fmt.Errorf("failed to decode fees of %s: %w", id, err)
	}
	if externalJSON.Valid && externalJSON.String != "" {
		var ep generic.ExternalPremium
		if err := json.Unmarshal([]byte(externalJSON.String), &ep); err != nil {
			return generic.Contract{}, fmt.Errorf("failed to decode external premium of %s: %w", id, err)
		}
		c.External = &ep
	}
	if details.Valid && details.String != "" {
		c.Details = json.RawMessage(details.String)
	}

	var err error
	if c.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return generic.Contract{}, err
	}
	if c.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return generic.Contract{}, err
	}
	return c, nil
}

func loadHistory(ctx context.Context, q querier, id generic.ContractID) ([]generic.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, actor, role, at, note
		FROM contract_status_history
		WHERE contract_id = ?
		ORDER BY seq ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []generic.HistoryEntry
	for rows.Next() {
		var (
			e                        generic.HistoryEntry
			status, actor, role, ats string
		)
		if err := rows.Scan(&status, &actor, &role, &ats, &e.Note); err != nil {
			return nil, err
		}
		at, err := time.Parse(timeLayout, ats)
		if err != nil {
			return nil, err
		}
		e.Status = generic.Status(status)
		e.Actor = generic.ActorID(actor)
		e.Role = generic.Role(role)
		e.At = at
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// WRITES
// =============================================================================

// Save inserts or overwrites the contract. Last write wins.
func (s *Store) Save(ctx context.Context, c generic.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := loadHistory(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		if err := checkExtends(c, stored); err != nil {
			return err
		}

		cols, err := columns(c)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contracts
			(id, number, product, status, period_json, fees_json, external_json,
			 details_json, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				number = excluded.number,
				product = excluded.product,
				status = excluded.status,
				period_json = excluded.period_json,
				fees_json = excluded.fees_json,
				external_json = excluded.external_json,
				details_json = excluded.details_json,
				updated_at = excluded.updated_at
		`, cols...)
		if err != nil {
			return mapWriteError(c, err)
		}
		return appendHistory(ctx, tx, c, len(stored))
	})
}

// SaveIfStatus overwrites the contract only if the stored status equals expected.
func (s *Store) SaveIfStatus(ctx context.Context, c generic.Contract, expected generic.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := loadHistory(ctx, tx, c.ID)
		if err != nil {
			return err
		}

		cols, err := columns(c)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE contracts SET
				number = ?, product = ?, status = ?, period_json = ?, fees_json = ?,
				external_json = ?, details_json = ?, updated_at = ?
			WHERE id = ? AND status = ?
		`, cols[1], cols[2], cols[3], cols[4], cols[5], cols[6], cols[7], cols[10],
			string(c.ID), string(expected))
		if err != nil {
			return mapWriteError(c, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			var current string
			err := tx.QueryRowContext(ctx, "SELECT status FROM contracts WHERE id = ?", string(c.ID)).Scan(&current)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s", generic.ErrContractNotFound, c.ID)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: expected %s, found %s", generic.ErrConcurrentModification, expected, current)
		}

		if err := checkExtends(c, stored); err != nil {
			return err
		}
		return appendHistory(ctx, tx, c, len(stored))
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func checkExtends(c generic.Contract, stored []generic.HistoryEntry) error {
	if len(stored) == 0 {
		return nil
	}
	prev, err := generic.RestoreHistory(stored)
	if err != nil {
		return err
	}
	if !c.History.Extends(prev) {
		return generic.ErrHistoryRewrite
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, c generic.Contract, storedLen int) error {
	for i, e := range c.History.Since(storedLen) {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contract_status_history (contract_id, seq, status, actor, role, at, note)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, string(c.ID), storedLen+i, string(e.Status), string(e.Actor), string(e.Role),
			e.At.UTC().Format(timeLayout), e.Note)
		if err != nil {
			return fmt.Errorf("failed to append history: %w", err)
		}
	}
	return nil
}

// columns returns the contracts row in insert order.
func columns(c generic.Contract) ([]any, error) {
	fees, err := json.Marshal(c.Fees)
	if err != nil {
		return nil, err
	}
	var period, external, details sql.NullString
	if c.Period != nil {
		b, err := json.Marshal(c.Period)
		if err != nil {
			return nil, err
		}
		period = sql.NullString{String: string(b), Valid: true}
	}
	if c.External != nil {
		b, err := json.Marshal(c.External)
		if err != nil {
			return nil, err
		}
		external = sql.NullString{String: string(b), Valid: true}
	}
	if len(c.Details) > 0 {
		details = sql.NullString{String: string(c.Details), Valid: true}
	}

	return []any{
		string(c.ID),
		string(c.Number),
		string(c.Product),
		string(c.Status),
		period,
		string(fees),
		external,
		details,
		string(c.CreatedBy),
		c.CreatedAt.UTC().Format(timeLayout),
		c.UpdatedAt.UTC().Format(timeLayout),
	}, nil
}

func mapWriteError(c generic.Contract, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateContractNumber, c.Number)
	}
	return fmt.Errorf("failed to save contract: %w", err)
}

// =============================================================================
// SEQUENCES
// =============================================================================

// NextSequence returns the next value (starting at 1) of the named counter.
func (s *Store) NextSequence(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sequences (key, value) VALUES (?, 1)
			ON CONFLICT(key) DO UPDATE SET value = value + 1
		`, key)
		if err != nil {
			return fmt.Errorf("failed to bump sequence: %w", err)
		}
		return tx.QueryRowContext(ctx, "SELECT value FROM sequences WHERE key = ?", key).Scan(&value)
	})
	return value, err
}

// =============================================================================
// UTILITY
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"contract_status_history", "contracts", "sequences"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}
