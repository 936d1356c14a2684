package memory

import (
	"context"
	"errors"
	"testing"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

func testRun(runID, shortID string, createdAt int64) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:     runID,
		ShortID:   shortID,
		CreatedAt: createdAt,
		StartDate: "2024-01-02",
		EndDate:   "2024-06-28",
		AUMUSD:    1_000_000,
		Status:    domain.RunStatusCompleted,
	}
}

func TestBacktestRunStore_InsertAndGet(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	r := testRun("run-1", "short-1", 1000)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ShortID != "short-1" || got.AUMUSD != 1_000_000 {
		t.Errorf("unexpected run: %+v", got)
	}

	byShort, err := store.GetByShortID(ctx, "short-1")
	if err != nil {
		t.Fatalf("GetByShortID failed: %v", err)
	}
	if byShort.RunID != "run-1" {
		t.Errorf("expected run-1, got %s", byShort.RunID)
	}
}

func TestBacktestRunStore_NotFound(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByShortID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBacktestRunStore_DuplicateKey(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRun("run-1", "a", 1000)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, testRun("run-1", "b", 2000)); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestBacktestRunStore_ListOrdering(t *testing.T) {
	store := NewBacktestRunStore()
	ctx := context.Background()

	for _, r := range []*domain.BacktestRun{
		testRun("run-b", "sb", 1000),
		testRun("run-a", "sa", 1000),
		testRun("run-c", "sc", 3000),
	} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	runs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	// created_at DESC, then run_id ASC for ties.
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-a" || runs[2].RunID != "run-b" {
		t.Errorf("unexpected order: %s, %s, %s", runs[0].RunID, runs[1].RunID, runs[2].RunID)
	}
}
