package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"costlab/internal/domain"
	"costlab/internal/storage"
	"costlab/internal/storage/memory"
)

func testStores() Stores {
	return Stores{
		PriceBars:  memory.NewPriceBarStore(),
		Weights:    memory.NewTargetWeightStore(),
		Returns:    memory.NewGrossReturnStore(),
		Runs:       memory.NewBacktestRunStore(),
		TradeCosts: memory.NewTradeCostStore(),
		Summaries:  memory.NewDailySummaryStore(),
		Capacity:   memory.NewCapacityResultStore(),
	}
}

func testSpec() RunSpec {
	return RunSpec{
		StartDate: "2024-01-02",
		EndDate:   "2024-01-04",
		AUMUSD:    10_000_000,
		Config: domain.CostModelConfig{
			SchemaVersion:         1,
			CommissionBps:         0.5,
			MinCommissionUSD:      0,
			SpreadBps:             5.0,
			ImpactCoefficient:     0.1,
			ADVParticipationLimit: 0.05,
			MaxImpactBps:          20.0,
		},
	}
}

func seedInputs(t *testing.T, stores Stores) {
	t.Helper()
	ctx := context.Background()

	weights := []*domain.TargetWeight{
		{SecurityID: "SEC-A", Date: "2024-01-02", Weight: 0.5},
		{SecurityID: "SEC-B", Date: "2024-01-03", Weight: 0.2},
		{SecurityID: "SEC-A", Date: "2024-01-04", Weight: 0.3},
	}
	if err := stores.Weights.InsertBulk(ctx, weights); err != nil {
		t.Fatalf("seed weights: %v", err)
	}

	returns := []*domain.GrossReturn{
		{Date: "2024-01-02", Return: 0.001},
		{Date: "2024-01-03", Return: -0.002},
		{Date: "2024-01-04", Return: 0.0015},
	}
	if err := stores.Returns.InsertBulk(ctx, returns); err != nil {
		t.Fatalf("seed returns: %v", err)
	}
}

func TestRunner_Run_PersistsEverything(t *testing.T) {
	stores := testStores()
	seedInputs(t, stores)
	ctx := context.Background()

	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	runner := NewRunner(stores, nil).WithClock(func() time.Time { return fixed })

	result, err := runner.Run(ctx, testSpec())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Run.RunID) != 64 {
		t.Errorf("expected 64-char run id, got %q", result.Run.RunID)
	}
	if result.Run.CreatedAt != fixed.UnixMilli() {
		t.Errorf("expected clock timestamp, got %d", result.Run.CreatedAt)
	}
	if result.Run.Status != domain.RunStatusCompleted {
		t.Errorf("expected completed status, got %s", result.Run.Status)
	}

	// No price bars were seeded, so every trade prices off the floors
	// and the run counters reflect it.
	if len(result.Trades) == 0 {
		t.Fatal("expected trades")
	}
	if result.Run.ADVFallbackCount != len(result.Trades) {
		t.Errorf("expected %d ADV fallbacks, got %d", len(result.Trades), result.Run.ADVFallbackCount)
	}

	stored, err := stores.Runs.GetByID(ctx, result.Run.RunID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if stored.ShortID != result.Run.ShortID {
		t.Errorf("short id mismatch: %s vs %s", stored.ShortID, result.Run.ShortID)
	}

	trades, err := stores.TradeCosts.GetByRunID(ctx, result.Run.RunID)
	if err != nil || len(trades) != len(result.Trades) {
		t.Fatalf("trades not persisted: %v (%d)", err, len(trades))
	}
	for _, tc := range trades {
		if tc.RunID != result.Run.RunID {
			t.Errorf("trade missing run id: %+v", tc)
		}
	}

	summaries, err := stores.Summaries.GetByRunID(ctx, result.Run.RunID)
	if err != nil || len(summaries) != 3 {
		t.Fatalf("summaries not persisted: %v (%d)", err, len(summaries))
	}

	capRes, err := stores.Capacity.GetByRunID(ctx, result.Run.RunID)
	if err != nil {
		t.Fatalf("capacity result not persisted: %v", err)
	}
	if capRes.BindingConstraint == "" {
		t.Error("expected a binding constraint")
	}
}

func TestRunner_Run_DuplicateRunRejected(t *testing.T) {
	stores := testStores()
	seedInputs(t, stores)
	ctx := context.Background()

	runner := NewRunner(stores, nil)

	if _, err := runner.Run(ctx, testSpec()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Same spec hashes to the same run id.
	_, err := runner.Run(ctx, testSpec())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRunner_RunInMemory_MatchesStoreRun(t *testing.T) {
	stores := testStores()
	seedInputs(t, stores)
	ctx := context.Background()

	weights, _ := stores.Weights.GetByDateRange(ctx, "2024-01-02", "2024-01-04")
	returns, _ := stores.Returns.GetByDateRange(ctx, "2024-01-02", "2024-01-04")

	runner := NewRunner(stores, nil)

	fromStores, err := runner.Run(ctx, testSpec())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	pure, err := runner.RunInMemory(testSpec(), nil, weights, returns)
	if err != nil {
		t.Fatalf("RunInMemory failed: %v", err)
	}

	if pure.Run.RunID != fromStores.Run.RunID {
		t.Errorf("run ids differ: %s vs %s", pure.Run.RunID, fromStores.Run.RunID)
	}
	if len(pure.Trades) != len(fromStores.Trades) {
		t.Fatalf("trade counts differ: %d vs %d", len(pure.Trades), len(fromStores.Trades))
	}
	for i := range pure.Trades {
		if pure.Trades[i].TotalCostUSD != fromStores.Trades[i].TotalCostUSD {
			t.Errorf("trade %d cost differs", i)
		}
	}
	if *pure.Capacity.ImpliedCapacityUSD != *fromStores.Capacity.ImpliedCapacityUSD {
		t.Error("implied capacities differ")
	}
}

func TestRunner_Run_InvalidConfigFails(t *testing.T) {
	stores := testStores()
	seedInputs(t, stores)
	ctx := context.Background()

	spec := testSpec()
	spec.Config.CommissionBps = -1

	runner := NewRunner(stores, nil)
	if _, err := runner.Run(ctx, spec); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	// Nothing may be persisted on failure.
	runs, err := stores.Runs.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no persisted runs, got %d", len(runs))
	}
}
