package memory

import (
	"context"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// CapacityResultStore is an in-memory implementation of storage.CapacityResultStore.
type CapacityResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CapacityResult // keyed by run_id
}

// NewCapacityResultStore creates a new in-memory capacity result store.
func NewCapacityResultStore() *CapacityResultStore {
	return &CapacityResultStore{data: make(map[string]*domain.CapacityResult)}
}

// Compile-time interface check.
var _ storage.CapacityResultStore = (*CapacityResultStore)(nil)

// Insert adds a new capacity result. Returns ErrDuplicateKey if run_id exists.
func (s *CapacityResultStore) Insert(_ context.Context, r *domain.CapacityResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	resultCopy := *r
	s.data[r.RunID] = &resultCopy
	return nil
}

// GetByRunID retrieves the capacity result for a run. Returns ErrNotFound if not exists.
func (s *CapacityResultStore) GetByRunID(_ context.Context, runID string) (*domain.CapacityResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	resultCopy := *r
	return &resultCopy, nil
}
