package memory

import (
	"context"
	"errors"
	"testing"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func bar(securityID, date string, close, volume float64) *domain.PriceBar {
	return &domain.PriceBar{SecurityID: securityID, Date: date, Close: ptr(close), Volume: ptr(volume)}
}

func TestPriceBarStore_InsertBulkAndGetBySecurityID(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	bars := []*domain.PriceBar{
		bar("AAPL", "2024-01-03", 11, 1000),
		bar("AAPL", "2024-01-02", 10, 900),
		bar("MSFT", "2024-01-02", 20, 500),
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetBySecurityID(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySecurityID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
	if got[0].Date != "2024-01-02" || got[1].Date != "2024-01-03" {
		t.Errorf("bars not ordered by date: %s, %s", got[0].Date, got[1].Date)
	}
}

func TestPriceBarStore_DuplicateKey(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	if err := store.InsertBulk(ctx, []*domain.PriceBar{bar("AAPL", "2024-01-02", 10, 900)}); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.PriceBar{bar("AAPL", "2024-01-02", 11, 901)})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestPriceBarStore_IntraBatchDuplicateFailsWholeBatch(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.PriceBar{
		bar("AAPL", "2024-01-02", 10, 900),
		bar("AAPL", "2024-01-02", 11, 901),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetBySecurityID(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySecurityID failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("failed batch must insert nothing, found %d bars", len(got))
	}
}

func TestPriceBarStore_GetByDateRange(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	bars := []*domain.PriceBar{
		bar("AAPL", "2024-01-02", 10, 900),
		bar("AAPL", "2024-01-05", 12, 950),
		bar("MSFT", "2024-01-03", 20, 500),
		bar("GOOG", "2024-01-03", 30, 400),
	}
	if err := store.InsertBulk(ctx, bars); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByDateRange(ctx, []string{"AAPL", "MSFT"}, "2024-01-03", "2024-01-05")
	if err != nil {
		t.Fatalf("GetByDateRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(got))
	}
	// Ordered (security_id, date); GOOG excluded, 01-02 excluded.
	if got[0].SecurityID != "AAPL" || got[0].Date != "2024-01-05" {
		t.Errorf("unexpected first bar: %+v", got[0])
	}
	if got[1].SecurityID != "MSFT" || got[1].Date != "2024-01-03" {
		t.Errorf("unexpected second bar: %+v", got[1])
	}
}

func TestPriceBarStore_DefensiveCopies(t *testing.T) {
	store := NewPriceBarStore()
	ctx := context.Background()

	original := bar("AAPL", "2024-01-02", 10, 900)
	if err := store.InsertBulk(ctx, []*domain.PriceBar{original}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	// Mutating the caller's struct must not affect stored data.
	original.Date = "2099-01-01"

	got, err := store.GetBySecurityID(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetBySecurityID failed: %v", err)
	}
	if len(got) != 1 || got[0].Date != "2024-01-02" {
		t.Errorf("store leaked a reference to caller data: %+v", got)
	}
}
