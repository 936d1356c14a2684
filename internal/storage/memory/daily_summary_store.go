package memory

import (
	"context"
	"sort"
	"sync"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// DailySummaryStore is an in-memory implementation of storage.DailySummaryStore.
type DailySummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyCostSummary // keyed by run_id|date
}

// NewDailySummaryStore creates a new in-memory daily summary store.
func NewDailySummaryStore() *DailySummaryStore {
	return &DailySummaryStore{data: make(map[string]*domain.DailyCostSummary)}
}

// Compile-time interface check.
var _ storage.DailySummaryStore = (*DailySummaryStore)(nil)

// InsertBulk adds multiple summaries. Fails entire batch on any duplicate.
func (s *DailySummaryStore) InsertBulk(_ context.Context, summaries []*domain.DailyCostSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(summaries))
	for _, d := range summaries {
		if d == nil || d.RunID == "" || d.Date == "" {
			return storage.ErrInvalidInput
		}
		key := d.RunID + "|" + d.Date
		if _, dup := seen[key]; dup {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, d := range summaries {
		summaryCopy := *d
		s.data[d.RunID+"|"+d.Date] = &summaryCopy
	}
	return nil
}

// GetByRunID retrieves all summaries for a run, ordered by date ASC.
func (s *DailySummaryStore) GetByRunID(_ context.Context, runID string) ([]*domain.DailyCostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyCostSummary
	for _, d := range s.data {
		if d.RunID == runID {
			summaryCopy := *d
			result = append(result, &summaryCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}
