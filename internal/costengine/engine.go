// Package costengine prices the trades implied by a target weight
// series and produces the cost-adjusted daily return series. All
// computation is pure and deterministic: iteration runs over a sorted
// date axis and sorted security ids only, so identical inputs yield
// byte-identical output.
package costengine

import (
	"fmt"
	"log"
	"math"
	"sort"

	"costlab/internal/domain"
)

// Engine applies the transaction cost model. One engine per run; it is
// not safe for concurrent Run calls because it carries per-run
// counters.
type Engine struct {
	logger *log.Logger

	clampCount       int
	missingLiquidity int
}

// NewEngine creates a cost engine. A nil logger disables warning logs.
func NewEngine(logger *log.Logger) *Engine {
	return &Engine{logger: logger}
}

// ClampCount returns how many daily net returns hit the floor during
// the most recent Run.
func (e *Engine) ClampCount() int { return e.clampCount }

// MissingLiquidityCount returns how many traded (security, date) pairs
// had no liquidity point and were priced off the fallback floors.
func (e *Engine) MissingLiquidityCount() int { return e.missingLiquidity }

// Run prices every implied trade and summarizes costs per day.
//
// The date axis is taken from grossReturns (sorted, distinct). Config
// and AUM are validated before any row is processed; alignment
// violations between weights and returns abort the run.
func (e *Engine) Run(
	weights []*domain.TargetWeight,
	grossReturns []*domain.GrossReturn,
	liquidity []*domain.LiquidityPoint,
	cfg domain.CostModelConfig,
	aumUSD float64,
) ([]*domain.TradeCost, []*domain.DailyCostSummary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if aumUSD <= 0 || math.IsNaN(aumUSD) || math.IsInf(aumUSD, 0) {
		return nil, nil, fmt.Errorf("%w: got %g", ErrInvalidAUM, aumUSD)
	}

	e.clampCount = 0
	e.missingLiquidity = 0

	dates, returnByDate, err := returnAxis(grossReturns)
	if err != nil {
		return nil, nil, err
	}

	deltas, err := BuildWeightDeltas(weights, dates, aumUSD)
	if err != nil {
		return nil, nil, err
	}

	deltasByDate := make(map[string][]*domain.WeightDelta)
	for _, d := range deltas {
		deltasByDate[d.Date] = append(deltasByDate[d.Date], d)
	}

	liquidityByKey := make(map[string]*domain.LiquidityPoint, len(liquidity))
	for _, p := range liquidity {
		liquidityByKey[p.SecurityID+"|"+p.Date] = p
	}

	var trades []*domain.TradeCost
	summaries := make([]*domain.DailyCostSummary, 0, len(dates))

	for _, date := range dates {
		summary := &domain.DailyCostSummary{
			Date:        date,
			GrossReturn: returnByDate[date],
		}

		for _, delta := range deltasByDate[date] {
			tc := e.priceTrade(delta, liquidityByKey, cfg)
			trades = append(trades, tc)

			summary.CommissionUSD += tc.CommissionUSD
			summary.SpreadUSD += tc.SpreadUSD
			summary.ImpactUSD += tc.ImpactUSD
			summary.TotalCostUSD += tc.TotalCostUSD
			summary.Turnover += math.Abs(delta.WeightChange)
		}

		summary.CostDrag = summary.TotalCostUSD / aumUSD
		summary.NetReturn = summary.GrossReturn - summary.CostDrag
		if summary.NetReturn < domain.NetReturnFloor {
			summary.NetReturn = domain.NetReturnFloor
			summary.Clamped = true
			e.clampCount++
			if e.logger != nil {
				e.logger.Printf("net return clamped to %g on %s (gross=%g drag=%g)",
					domain.NetReturnFloor, date, summary.GrossReturn, summary.CostDrag)
			}
		}

		summaries = append(summaries, summary)
	}

	return trades, summaries, nil
}

// priceTrade applies the three cost formulas to one weight delta.
func (e *Engine) priceTrade(delta *domain.WeightDelta, liquidityByKey map[string]*domain.LiquidityPoint, cfg domain.CostModelConfig) *domain.TradeCost {
	point, ok := liquidityByKey[delta.SecurityID+"|"+delta.Date]
	if !ok {
		// Same recoverable condition as the adapter's fallback: price
		// off the floors and record it, never fail the run for it.
		point = &domain.LiquidityPoint{
			SecurityID:      delta.SecurityID,
			Date:            delta.Date,
			ADVUSD:          domain.ADVFallbackUSD,
			Volatility:      domain.VolatilityFallback,
			UsedADVFallback: true,
			UsedVolFallback: true,
		}
		e.missingLiquidity++
		if e.logger != nil {
			e.logger.Printf("no liquidity point for security=%s date=%s, using fallback floors", delta.SecurityID, delta.Date)
		}
	}

	tv := delta.TradeValueUSD

	commission := tv * cfg.CommissionBps / 10000
	if commission < cfg.MinCommissionUSD {
		commission = cfg.MinCommissionUSD
	}
	spread := tv * (cfg.SpreadBps / 2) / 10000
	impact := tv * cfg.ImpactCoefficient * point.Volatility * math.Sqrt(tv/point.ADVUSD)

	return &domain.TradeCost{
		SecurityID:       delta.SecurityID,
		Date:             delta.Date,
		WeightChange:     delta.WeightChange,
		TradeValueUSD:    tv,
		CommissionUSD:    commission,
		SpreadUSD:        spread,
		ImpactUSD:        impact,
		TotalCostUSD:     commission + spread + impact,
		ADVUSDUsed:       point.ADVUSD,
		VolatilityUsed:   point.Volatility,
		ParticipationPct: tv / point.ADVUSD,
		UsedADVFallback:  point.UsedADVFallback,
		UsedVolFallback:  point.UsedVolFallback,
	}
}

// returnAxis builds the sorted backtest date axis from the gross
// return series and rejects duplicate dates.
func returnAxis(grossReturns []*domain.GrossReturn) ([]string, map[string]float64, error) {
	returnByDate := make(map[string]float64, len(grossReturns))
	dates := make([]string, 0, len(grossReturns))
	for _, r := range grossReturns {
		if _, dup := returnByDate[r.Date]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate gross return for %s", ErrAlignment, r.Date)
		}
		returnByDate[r.Date] = r.Return
		dates = append(dates, r.Date)
	}
	sort.Strings(dates)
	return dates, returnByDate, nil
}
