package memory

import (
	"context"
	"sort"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// GrossReturnStore is an in-memory implementation of storage.GrossReturnStore.
type GrossReturnStore struct {
	mu   sync.RWMutex
	data map[string]*domain.GrossReturn // keyed by date
}

// NewGrossReturnStore creates a new in-memory gross return store.
func NewGrossReturnStore() *GrossReturnStore {
	return &GrossReturnStore{data: make(map[string]*domain.GrossReturn)}
}

// Compile-time interface check.
var _ storage.GrossReturnStore = (*GrossReturnStore)(nil)

// InsertBulk adds multiple return rows. Fails entire batch on any duplicate date.
func (s *GrossReturnStore) InsertBulk(_ context.Context, returns []*domain.GrossReturn) error {
	if len(returns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(returns))
	for _, r := range returns {
		if r == nil || r.Date == "" {
			return storage.ErrInvalidInput
		}
		if _, dup := seen[r.Date]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[r.Date]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.Date] = struct{}{}
	}

	for _, r := range returns {
		returnCopy := *r
		s.data[r.Date] = &returnCopy
	}
	return nil
}

// GetByDateRange retrieves return rows within [start, end] (inclusive),
// ordered by date ASC.
func (s *GrossReturnStore) GetByDateRange(_ context.Context, start, end string) ([]*domain.GrossReturn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GrossReturn
	for _, r := range s.data {
		if r.Date < start || r.Date > end {
			continue
		}
		returnCopy := *r
		result = append(result, &returnCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}
