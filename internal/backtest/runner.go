// Package backtest orchestrates a full cost simulation run: liquidity
// preparation, trade pricing, capacity solving and persistence. Each
// run owns its working set; the stores are the only shared surface.
package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"costlab/internal/capacity"
	"costlab/internal/costengine"
	"costlab/internal/domain"
	"costlab/internal/liquidity"
	"costlab/internal/observability"
	"costlab/internal/runid"
	"costlab/internal/storage"
)

// Stores bundles the store interfaces the runner persists through.
type Stores struct {
	PriceBars  storage.PriceBarStore
	Weights    storage.TargetWeightStore
	Returns    storage.GrossReturnStore
	Runs       storage.BacktestRunStore
	TradeCosts storage.TradeCostStore
	Summaries  storage.DailySummaryStore
	Capacity   storage.CapacityResultStore
}

// RunSpec is the caller-provided definition of one run.
type RunSpec struct {
	StartDate string
	EndDate   string
	AUMUSD    float64
	Config    domain.CostModelConfig

	// SecurityIDs limits the liquidity universe. Empty means every
	// security appearing in the target weights.
	SecurityIDs []string
}

// Result carries everything a run produced.
type Result struct {
	Run       *domain.BacktestRun
	Trades    []*domain.TradeCost
	Summaries []*domain.DailyCostSummary
	Gross     domain.PerformanceStats
	Net       domain.PerformanceStats
	Capacity  *domain.CapacityResult
}

// Runner executes backtest runs.
type Runner struct {
	stores Stores
	logger *log.Logger
	clock  func() time.Time
}

// NewRunner creates a runner over the given stores.
func NewRunner(stores Stores, logger *log.Logger) *Runner {
	return &Runner{
		stores: stores,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (r *Runner) WithClock(clock func() time.Time) *Runner {
	r.clock = clock
	return r
}

// Run loads inputs from the stores, executes the simulation and
// persists every output. The run row is written first so the capacity
// row's foreign key holds.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Result, error) {
	started := r.clock()

	result, err := r.load(ctx, spec)
	if err != nil {
		observability.RecordRun(domain.RunStatusFailed, r.clock().Sub(started).Seconds())
		return nil, err
	}

	if err := r.persist(ctx, result); err != nil {
		observability.RecordRun(domain.RunStatusFailed, r.clock().Sub(started).Seconds())
		return nil, err
	}

	observability.RecordRun(domain.RunStatusCompleted, r.clock().Sub(started).Seconds())
	if r.logger != nil {
		r.logger.Printf("run %s completed: %d trades, %d days, capacity=%s",
			result.Run.ShortID, len(result.Trades), len(result.Summaries), result.Capacity.BindingConstraint)
	}
	return result, nil
}

// RunInMemory executes the simulation on pre-loaded slices without
// touching any store. Used by fixture mode and tests.
func (r *Runner) RunInMemory(spec RunSpec, bars []*domain.PriceBar, weights []*domain.TargetWeight, returns []*domain.GrossReturn) (*Result, error) {
	ids := spec.SecurityIDs
	if len(ids) == 0 {
		ids = securityUniverse(weights)
	}

	adapter := liquidity.NewAdapter(r.logger)
	points := adapter.Compute(bars, ids, spec.StartDate, spec.EndDate)

	return r.execute(spec, weights, returns, points)
}

func (r *Runner) load(ctx context.Context, spec RunSpec) (*Result, error) {
	weights, err := r.stores.Weights.GetByDateRange(ctx, spec.StartDate, spec.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load target weights: %w", err)
	}
	returns, err := r.stores.Returns.GetByDateRange(ctx, spec.StartDate, spec.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load gross returns: %w", err)
	}

	ids := spec.SecurityIDs
	if len(ids) == 0 {
		ids = securityUniverse(weights)
	}

	adapter := liquidity.NewAdapter(r.logger)
	points, err := adapter.Load(ctx, r.stores.PriceBars, ids, spec.StartDate, spec.EndDate)
	if err != nil {
		return nil, fmt.Errorf("load liquidity: %w", err)
	}

	return r.execute(spec, weights, returns, points)
}

// execute runs the pure computation pipeline and assembles the result.
func (r *Runner) execute(spec RunSpec, weights []*domain.TargetWeight, returns []*domain.GrossReturn, points []*domain.LiquidityPoint) (*Result, error) {
	engine := costengine.NewEngine(r.logger)
	trades, summaries, err := engine.Run(weights, returns, points, spec.Config, spec.AUMUSD)
	if err != nil {
		return nil, err
	}

	id := runid.Compute(spec.StartDate, spec.EndDate, spec.AUMUSD, spec.Config)
	short := runid.Short(id)

	advFallbacks, volFallbacks := 0, 0
	for _, tc := range trades {
		tc.RunID = id
		if tc.UsedADVFallback {
			advFallbacks++
		}
		if tc.UsedVolFallback {
			volFallbacks++
		}
	}
	for _, s := range summaries {
		s.RunID = id
	}

	grossSeries := make([]float64, len(summaries))
	netSeries := make([]float64, len(summaries))
	for i, s := range summaries {
		grossSeries[i] = s.GrossReturn
		netSeries[i] = s.NetReturn
	}

	solver := capacity.NewSolver()
	capResult := solver.Solve(capacity.Aggregate(trades, summaries), spec.Config)
	capResult.RunID = id

	observability.RecordTradesCosted(len(trades))
	observability.RecordClamps(engine.ClampCount())
	observability.RecordFallbacks(advFallbacks, volFallbacks)
	observability.RecordBreakeven(capResult.BreakevenStatus, solver.Iterations())

	run := &domain.BacktestRun{
		RunID:            id,
		ShortID:          short,
		CreatedAt:        r.clock().UnixMilli(),
		StartDate:        spec.StartDate,
		EndDate:          spec.EndDate,
		AUMUSD:           spec.AUMUSD,
		Config:           spec.Config,
		Status:           domain.RunStatusCompleted,
		ADVFallbackCount: advFallbacks,
		VolFallbackCount: volFallbacks,
		ClampCount:       engine.ClampCount(),
	}

	return &Result{
		Run:       run,
		Trades:    trades,
		Summaries: summaries,
		Gross:     costengine.ComputeStats(grossSeries),
		Net:       costengine.ComputeStats(netSeries),
		Capacity:  capResult,
	}, nil
}

func (r *Runner) persist(ctx context.Context, result *Result) error {
	if err := r.stores.Runs.Insert(ctx, result.Run); err != nil {
		return fmt.Errorf("insert run %s: %w", result.Run.ShortID, err)
	}
	if err := r.stores.Capacity.Insert(ctx, result.Capacity); err != nil {
		return fmt.Errorf("insert capacity result: %w", err)
	}
	if err := r.stores.TradeCosts.InsertBulk(ctx, result.Trades); err != nil {
		return fmt.Errorf("insert trade costs: %w", err)
	}
	if err := r.stores.Summaries.InsertBulk(ctx, result.Summaries); err != nil {
		return fmt.Errorf("insert daily summaries: %w", err)
	}
	return nil
}

// securityUniverse returns the distinct securities in the weight
// series, in first-seen order. Order does not matter downstream; the
// adapter sorts its own copy.
func securityUniverse(weights []*domain.TargetWeight) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, w := range weights {
		if _, ok := seen[w.SecurityID]; ok {
			continue
		}
		seen[w.SecurityID] = struct{}{}
		ids = append(ids, w.SecurityID)
	}
	return ids
}
