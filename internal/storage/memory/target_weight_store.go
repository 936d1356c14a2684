package memory

import (
	"context"
	"sort"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// TargetWeightStore is an in-memory implementation of storage.TargetWeightStore.
type TargetWeightStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TargetWeight // keyed by security_id|date
}

// NewTargetWeightStore creates a new in-memory target weight store.
func NewTargetWeightStore() *TargetWeightStore {
	return &TargetWeightStore{data: make(map[string]*domain.TargetWeight)}
}

// Compile-time interface check.
var _ storage.TargetWeightStore = (*TargetWeightStore)(nil)

// InsertBulk adds multiple weight rows. Fails entire batch on any duplicate.
func (s *TargetWeightStore) InsertBulk(_ context.Context, weights []*domain.TargetWeight) error {
	if len(weights) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(weights))
	for _, w := range weights {
		if w == nil || w.SecurityID == "" || w.Date == "" {
			return storage.ErrInvalidInput
		}
		key := w.SecurityID + "|" + w.Date
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, w := range weights {
		weightCopy := *w
		s.data[w.SecurityID+"|"+w.Date] = &weightCopy
	}
	return nil
}

// GetByDateRange retrieves weight rows within [start, end] (inclusive),
// ordered by (date, security_id) ASC.
func (s *TargetWeightStore) GetByDateRange(_ context.Context, start, end string) ([]*domain.TargetWeight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TargetWeight
	for _, w := range s.data {
		if w.Date < start || w.Date > end {
			continue
		}
		weightCopy := *w
		result = append(result, &weightCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].SecurityID < result[j].SecurityID
	})
	return result, nil
}
