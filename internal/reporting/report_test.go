package reporting

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"costlab/internal/domain"
	"costlab/internal/storage/memory"
)

func reportFixture() (*domain.BacktestRun, []*domain.TradeCost, []*domain.DailyCostSummary, *domain.CapacityResult) {
	run := &domain.BacktestRun{
		RunID:     "run-1",
		ShortID:   "short-1",
		CreatedAt: 1700000000000,
		StartDate: "2024-01-02",
		EndDate:   "2024-01-03",
		AUMUSD:    10_000_000,
		Status:    domain.RunStatusCompleted,
		Config: domain.CostModelConfig{
			SchemaVersion: 1, CommissionBps: 0.5, SpreadBps: 5,
			ImpactCoefficient: 0.1, ADVParticipationLimit: 0.05, MaxImpactBps: 20,
		},
		ADVFallbackCount: 1,
	}

	trades := []*domain.TradeCost{
		{RunID: "run-1", SecurityID: "SEC-A", Date: "2024-01-02", WeightChange: 0.25,
			TradeValueUSD: 2_500_000, CommissionUSD: 125, SpreadUSD: 625, ImpactUSD: 100, TotalCostUSD: 850,
			ADVUSDUsed: 50_000_000, VolatilityUsed: 0.015, ParticipationPct: 0.05},
	}

	summaries := []*domain.DailyCostSummary{
		{RunID: "run-1", Date: "2024-01-02", GrossReturn: 0.002, CommissionUSD: 125,
			SpreadUSD: 625, ImpactUSD: 100, TotalCostUSD: 850, CostDrag: 0.000085,
			NetReturn: 0.001915, Turnover: 0.25},
		{RunID: "run-1", Date: "2024-01-03", GrossReturn: -0.001, NetReturn: -0.001},
	}

	implied := 5e7
	capResult := &domain.CapacityResult{
		RunID:              "run-1",
		AvgDailyTurnover:   0.125,
		ImpliedCapacityUSD: &implied,
		BreakevenStatus:    domain.BreakevenOK,
		BindingConstraint:  domain.ConstraintParticipationLimit,
	}

	return run, trades, summaries, capResult
}

func TestBuildReport_Totals(t *testing.T) {
	run, trades, summaries, capResult := reportFixture()

	r := BuildReport(run, trades, summaries, capResult)

	if r.TradingDays != 2 || r.TradeCount != 1 {
		t.Errorf("unexpected counts: days=%d trades=%d", r.TradingDays, r.TradeCount)
	}
	if r.TotalCostUSD != 850 || r.CommissionUSD != 125 || r.SpreadUSD != 625 || r.ImpactUSD != 100 {
		t.Errorf("unexpected cost totals: %+v", r)
	}

	wantDrag := 0.000085 / 2 * 10000
	if math.Abs(r.AvgDailyCostDragBps-wantDrag) > 1e-9 {
		t.Errorf("expected avg drag %.6f bps, got %.6f", wantDrag, r.AvgDailyCostDragBps)
	}

	if r.Gross.TotalReturn == nil || r.Net.TotalReturn == nil {
		t.Fatal("expected performance stats")
	}
	if *r.Net.TotalReturn >= *r.Gross.TotalReturn {
		t.Error("net total return should trail gross")
	}
}

func TestGenerator_Generate(t *testing.T) {
	run, trades, summaries, capResult := reportFixture()
	ctx := context.Background()

	runs := memory.NewBacktestRunStore()
	tradeStore := memory.NewTradeCostStore()
	summaryStore := memory.NewDailySummaryStore()
	capacityStore := memory.NewCapacityResultStore()

	if err := runs.Insert(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := tradeStore.InsertBulk(ctx, trades); err != nil {
		t.Fatal(err)
	}
	if err := summaryStore.InsertBulk(ctx, summaries); err != nil {
		t.Fatal(err)
	}
	if err := capacityStore.Insert(ctx, capResult); err != nil {
		t.Fatal(err)
	}

	fixed := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	gen := NewGenerator(runs, tradeStore, summaryStore, capacityStore).
		WithClock(func() time.Time { return fixed })

	report, err := gen.Generate(ctx, "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Errorf("expected fixed clock, got %v", report.GeneratedAt)
	}
	if report.TotalCostUSD != 850 {
		t.Errorf("expected total cost 850, got %f", report.TotalCostUSD)
	}
}

func TestRenderMarkdown_CapacityOutcomes(t *testing.T) {
	run, trades, summaries, capResult := reportFixture()

	r := BuildReport(run, trades, summaries, capResult)
	r.GeneratedAt = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)

	md := RenderMarkdown(r)
	if !strings.Contains(md, "| Implied Capacity (USD) | 50000000.00 |") {
		t.Errorf("expected implied capacity row, got:\n%s", md)
	}

	// Unconstrained
	inf := math.Inf(1)
	r.Capacity.ImpliedCapacityUSD = &inf
	md = RenderMarkdown(r)
	if !strings.Contains(md, "unconstrained") {
		t.Error("expected unconstrained wording for +Inf capacity")
	}

	// Zero capacity
	zero := 0.0
	r.Capacity.ImpliedCapacityUSD = &zero
	md = RenderMarkdown(r)
	if !strings.Contains(md, "Capacity is **zero**") {
		t.Error("expected zero-capacity wording")
	}

	// Unavailable
	r.Capacity.ImpliedCapacityUSD = nil
	md = RenderMarkdown(r)
	if !strings.Contains(md, "unavailable") {
		t.Error("expected unavailable wording for nil capacity")
	}
}

func TestRenderCSV(t *testing.T) {
	_, trades, summaries, _ := reportFixture()

	tcCSV := RenderTradeCostsCSV(trades)
	lines := strings.Split(strings.TrimSpace(tcCSV), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "security_id,date,") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "SEC-A,2024-01-02,") {
		t.Errorf("unexpected row: %s", lines[1])
	}

	dsCSV := RenderDailySummariesCSV(summaries)
	lines = strings.Split(strings.TrimSpace(dsCSV), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[2], "2024-01-03") {
		t.Errorf("rows out of order: %s", lines[2])
	}
}
