// Package memory provides in-memory implementations of the storage
// interfaces, used in fixture mode and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// PriceBarStore is an in-memory implementation of storage.PriceBarStore.
type PriceBarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceBar // keyed by security_id|date
}

// NewPriceBarStore creates a new in-memory price bar store.
func NewPriceBarStore() *PriceBarStore {
	return &PriceBarStore{data: make(map[string]*domain.PriceBar)}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

func barKey(securityID, date string) string {
	return securityID + "|" + date
}

// InsertBulk adds multiple bars. Fails entire batch on any duplicate.
func (s *PriceBarStore) InsertBulk(_ context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(bars))
	for _, b := range bars {
		if b == nil || b.SecurityID == "" || b.Date == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.SecurityID, b.Date)
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, b := range bars {
		barCopy := *b
		s.data[barKey(b.SecurityID, b.Date)] = &barCopy
	}
	return nil
}

// GetBySecurityID retrieves all bars for a security, ordered by date ASC.
func (s *PriceBarStore) GetBySecurityID(_ context.Context, securityID string) ([]*domain.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if b.SecurityID == securityID {
			barCopy := *b
			result = append(result, &barCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// GetByDateRange retrieves bars for the given securities within
// [start, end] (inclusive), ordered by (security_id, date) ASC.
func (s *PriceBarStore) GetByDateRange(_ context.Context, securityIDs []string, start, end string) ([]*domain.PriceBar, error) {
	wanted := make(map[string]struct{}, len(securityIDs))
	for _, id := range securityIDs {
		wanted[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceBar
	for _, b := range s.data {
		if _, ok := wanted[b.SecurityID]; !ok {
			continue
		}
		if b.Date < start || b.Date > end {
			continue
		}
		barCopy := *b
		result = append(result, &barCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].SecurityID != result[j].SecurityID {
			return result[i].SecurityID < result[j].SecurityID
		}
		return result[i].Date < result[j].Date
	})
	return result, nil
}
