package memory

import (
	"context"
	"sort"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// TradeCostStore is an in-memory implementation of storage.TradeCostStore.
type TradeCostStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeCost // keyed by run_id|security_id|date
}

// NewTradeCostStore creates a new in-memory trade cost store.
func NewTradeCostStore() *TradeCostStore {
	return &TradeCostStore{data: make(map[string]*domain.TradeCost)}
}

// Compile-time interface check.
var _ storage.TradeCostStore = (*TradeCostStore)(nil)

func tradeCostKey(runID, securityID, date string) string {
	return runID + "|" + securityID + "|" + date
}

// InsertBulk adds multiple trade cost rows. Fails entire batch on any duplicate.
func (s *TradeCostStore) InsertBulk(_ context.Context, costs []*domain.TradeCost) error {
	if len(costs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(costs))
	for _, c := range costs {
		if c == nil || c.RunID == "" || c.SecurityID == "" || c.Date == "" {
			return storage.ErrInvalidInput
		}
		key := tradeCostKey(c.RunID, c.SecurityID, c.Date)
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, c := range costs {
		costCopy := *c
		s.data[tradeCostKey(c.RunID, c.SecurityID, c.Date)] = &costCopy
	}
	return nil
}

// GetByRunID retrieves all trade costs for a run, ordered by (date, security_id) ASC.
func (s *TradeCostStore) GetByRunID(_ context.Context, runID string) ([]*domain.TradeCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeCost
	for _, c := range s.data {
		if c.RunID == runID {
			costCopy := *c
			result = append(result, &costCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].SecurityID < result[j].SecurityID
	})
	return result, nil
}
