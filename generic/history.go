/*
history.go - Append-only status history

PURPOSE:
  The status history is the audit trail of a contract. Every successful
  transition adds exactly one entry; nothing is ever edited or removed.

CRITICAL INVARIANTS:
  1. FIRST ENTRY: always the creation entry with status draft
  2. APPEND-ONLY: Append returns a new history; the receiver is unchanged
  3. ORDERED: timestamps strictly increase from one entry to the next

WHY A VALUE:
  The lifecycle returns the new history alongside the new status instead of
  a persistence hook pushing onto a shared slice. A transition can then be
  computed and tested without a store, and the store only has to verify the
  stored history is a prefix of the new one.

SEE ALSO:
  - lifecycle.go: Produces new entries
  - store.go: Persists histories with the prefix check
*/
package generic

import (
	"encoding/json"
	"fmt"
	"time"
)

// HistoryEntry is one immutable audit record.
type HistoryEntry struct {
	Status Status    `json:"status"`
	Actor  ActorID   `json:"actor"`
	Role   Role      `json:"role"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

// StatusHistory is an ordered, append-only log of HistoryEntry.
// The zero value is an empty history (only valid before creation).
type StatusHistory struct {
	entries []HistoryEntry
}

// NewHistory starts a history with the creation entry.
func NewHistory(createdBy ActorID, at time.Time, note string) StatusHistory {
	return StatusHistory{entries: []HistoryEntry{{
		Status: StatusDraft,
		Actor:  createdBy,
		Role:   RoleOwner,
		At:     at,
		Note:   note,
	}}}
}

// RestoreHistory rebuilds a history from stored entries, checking invariants.
// Used by stores when loading.
func RestoreHistory(entries []HistoryEntry) (StatusHistory, error) {
	if len(entries) == 0 {
		return StatusHistory{}, fmt.Errorf("%w: empty history", ErrHistoryRewrite)
	}
	if entries[0].Status != StatusDraft {
		return StatusHistory{}, fmt.Errorf("%w: first entry is %s, want draft", ErrHistoryRewrite, entries[0].Status)
	}
	for i := 1; i < len(entries); i++ {
		if !entries[i].At.After(entries[i-1].At) {
			return StatusHistory{}, fmt.Errorf("%w: entry %d is not after entry %d", ErrHistoryRewrite, i, i-1)
		}
	}
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return StatusHistory{entries: out}, nil
}

// Append returns a new history with e added. If e.At is not after the last
// entry it is moved just past it so ordering holds under clock skew.
func (h StatusHistory) Append(e HistoryEntry) StatusHistory {
	if n := len(h.entries); n > 0 {
		last := h.entries[n-1].At
		if !e.At.After(last) {
			e.At = last.Add(time.Microsecond)
		}
	}
	out := make([]HistoryEntry, len(h.entries), len(h.entries)+1)
	copy(out, h.entries)
	out = append(out, e)
	return StatusHistory{entries: out}
}

// Entries returns a copy of all entries, oldest first.
func (h StatusHistory) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h StatusHistory) Len() int { return len(h.entries) }

// Last returns the most recent entry.
func (h StatusHistory) Last() (HistoryEntry, bool) {
	if len(h.entries) == 0 {
		return HistoryEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Since returns the entries after the first n, used to persist only new ones.
func (h StatusHistory) Since(n int) []HistoryEntry {
	if n >= len(h.entries) {
		return nil
	}
	out := make([]HistoryEntry, len(h.entries)-n)
	copy(out, h.entries[n:])
	return out
}

// Extends reports whether h starts with every entry of prev, unchanged.
func (h StatusHistory) Extends(prev StatusHistory) bool {
	if len(prev.entries) > len(h.entries) {
		return false
	}
	for i, e := range prev.entries {
		o := h.entries[i]
		if e.Status != o.Status || e.Actor != o.Actor || e.Role != o.Role ||
			e.Note != o.Note || !e.At.Equal(o.At) {
			return false
		}
	}
	return true
}

func (h StatusHistory) MarshalJSON() ([]byte, error) {
	if h.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.entries)
}

func (h *StatusHistory) UnmarshalJSON(b []byte) error {
	var entries []HistoryEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	restored, err := RestoreHistory(entries)
	if err != nil {
		return err
	}
	*h = restored
	return nil
}
