// Package store provides ContractStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/contract-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	contracts map[generic.ContractID]generic.Contract
	numbers   map[generic.ContractNumber]generic.ContractID
	sequences map[string]int64
}

var _ generic.ContractStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		contracts: make(map[generic.ContractID]generic.Contract),
		numbers:   make(map[generic.ContractNumber]generic.ContractID),
		sequences: make(map[string]int64),
	}
}

func (m *Memory) Load(_ context.Context, id generic.ContractID) (generic.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contracts[id]
	if !ok {
		return generic.Contract{}, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return c, nil
}

func (m *Memory) LoadByNumber(ctx context.Context, number generic.ContractNumber) (generic.Contract, error) {
	m.mu.RLock()
	id, ok := m.numbers[number]
	m.mu.RUnlock()
	if !ok {
		return generic.Contract{}, fmt.Errorf("%w: %s", generic.ErrContractNotFound, number)
	}
	return m.Load(ctx, id)
}

// Save inserts or overwrites. Last write wins.
func (m *Memory) Save(_ context.Context, c generic.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(c)
}

// SaveIfStatus overwrites only when the stored status equals expected.
func (m *Memory) SaveIfStatus(_ context.Context, c generic.Contract, expected generic.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.contracts[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, c.ID)
	}
	if existing.Status != expected {
		return fmt.Errorf("%w: expected %s, found %s", generic.ErrConcurrentModification, expected, existing.Status)
	}
	return m.saveLocked(c)
}

func (m *Memory) saveLocked(c generic.Contract) error {
	if id, ok := m.numbers[c.Number]; ok && id != c.ID {
		return fmt.Errorf("%w: %s", generic.ErrDuplicateContractNumber, c.Number)
	}
	if existing, ok := m.contracts[c.ID]; ok && !c.History.Extends(existing.History) {
		return generic.ErrHistoryRewrite
	}
	m.contracts[c.ID] = c
	m.numbers[c.Number] = c.ID
	return nil
}

func (m *Memory) List(_ context.Context, filter generic.ContractFilter) ([]generic.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Contract
	for _, c := range m.contracts {
		if filter.Matches(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Number > result[j].Number
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *Memory) NextSequence(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[key]++
	return m.sequences[key], nil
}

// Reset drops all data.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = make(map[generic.ContractID]generic.Contract)
	m.numbers = make(map[generic.ContractNumber]generic.ContractID)
	m.sequences = make(map[string]int64)
}
