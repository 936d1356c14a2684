// Package reporting renders completed runs as markdown and CSV.
package reporting

import (
	"context"
	"time"

	"costlab/internal/costengine"
	"costlab/internal/domain"
	"costlab/internal/observability"
	"costlab/internal/storage"
)

// Report is the assembled view of one completed run.
type Report struct {
	GeneratedAt time.Time
	Run         *domain.BacktestRun

	TradingDays int
	TradeCount  int

	// Cost totals by category over the whole run, in USD.
	CommissionUSD float64
	SpreadUSD     float64
	ImpactUSD     float64
	TotalCostUSD  float64

	// AvgDailyCostDragBps is the mean daily cost drag in basis points.
	AvgDailyCostDragBps float64

	Gross domain.PerformanceStats
	Net   domain.PerformanceStats

	Capacity *domain.CapacityResult
}

// Generator produces reports from stored data.
type Generator struct {
	runStore      storage.BacktestRunStore
	tradeStore    storage.TradeCostStore
	summaryStore  storage.DailySummaryStore
	capacityStore storage.CapacityResultStore
	now           func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	runStore storage.BacktestRunStore,
	tradeStore storage.TradeCostStore,
	summaryStore storage.DailySummaryStore,
	capacityStore storage.CapacityResultStore,
) *Generator {
	return &Generator{
		runStore:      runStore,
		tradeStore:    tradeStore,
		summaryStore:  summaryStore,
		capacityStore: capacityStore,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate loads a run's outputs and assembles the report.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	trades, err := g.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	summaries, err := g.summaryStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	capResult, err := g.capacityStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}

	report := BuildReport(run, trades, summaries, capResult)
	report.GeneratedAt = g.now()
	observability.RecordReportGenerated()
	return report, nil
}

// BuildReport assembles a report from in-memory run outputs.
func BuildReport(run *domain.BacktestRun, trades []*domain.TradeCost, summaries []*domain.DailyCostSummary, capResult *domain.CapacityResult) *Report {
	report := &Report{
		Run:         run,
		TradingDays: len(summaries),
		TradeCount:  len(trades),
		Capacity:    capResult,
	}

	grossSeries := make([]float64, len(summaries))
	netSeries := make([]float64, len(summaries))
	dragSum := 0.0
	for i, s := range summaries {
		report.CommissionUSD += s.CommissionUSD
		report.SpreadUSD += s.SpreadUSD
		report.ImpactUSD += s.ImpactUSD
		report.TotalCostUSD += s.TotalCostUSD
		dragSum += s.CostDrag
		grossSeries[i] = s.GrossReturn
		netSeries[i] = s.NetReturn
	}
	if len(summaries) > 0 {
		report.AvgDailyCostDragBps = dragSum / float64(len(summaries)) * 10000
	}

	report.Gross = costengine.ComputeStats(grossSeries)
	report.Net = costengine.ComputeStats(netSeries)

	return report
}
