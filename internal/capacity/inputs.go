// Package capacity sizes the AUM at which a strategy stops being
// viable. The solver never re-reads liquidity or weight data; it
// operates only on scalars aggregated from the cost engine's output.
package capacity

import (
	"math"
	"sort"

	"costlab/internal/domain"
)

// Inputs are the aggregate statistics the constraints are solved
// against. Nil ADV/sigma means the input was unavailable (every trade
// was priced off a fallback floor, or there were no trades).
type Inputs struct {
	AvgDailyTurnover     float64
	PortfolioADV         *float64
	PortfolioSigma       *float64
	GrossAlphaAnnualized float64
	TradingDays          int
}

// Aggregate reduces a run's trade costs and daily summaries to solver
// inputs. ADV and volatility are time-averaged per security first and
// then combined with weights proportional to each security's total
// traded notional, so a naive average cannot bias the aggregates
// toward heavily traded names. Trades priced off fallback floors are
// excluded from the ADV/sigma aggregates: the floors are synthetic and
// would otherwise drive capacity numbers.
func Aggregate(trades []*domain.TradeCost, summaries []*domain.DailyCostSummary) Inputs {
	inputs := Inputs{TradingDays: len(summaries)}

	if len(summaries) > 0 {
		turnoverSum := 0.0
		equity := 1.0
		for _, s := range summaries {
			turnoverSum += s.Turnover
			equity *= 1 + s.GrossReturn
		}
		inputs.AvgDailyTurnover = turnoverSum / float64(len(summaries))

		n := float64(len(summaries))
		totalGross := equity - 1
		inputs.GrossAlphaAnnualized = math.Pow(1+totalGross, domain.TradingDaysPerYear/n) - 1
	}

	type securityAgg struct {
		notional float64
		advSum   float64
		advN     int
		volSum   float64
		volN     int
	}
	bySecurity := make(map[string]*securityAgg)
	for _, tc := range trades {
		agg, ok := bySecurity[tc.SecurityID]
		if !ok {
			agg = &securityAgg{}
			bySecurity[tc.SecurityID] = agg
		}
		agg.notional += tc.TradeValueUSD
		if !tc.UsedADVFallback {
			agg.advSum += tc.ADVUSDUsed
			agg.advN++
		}
		if !tc.UsedVolFallback {
			agg.volSum += tc.VolatilityUsed
			agg.volN++
		}
	}

	ids := make([]string, 0, len(bySecurity))
	for id := range bySecurity {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var advWeighted, advWeight, volWeighted, volWeight float64
	for _, id := range ids {
		agg := bySecurity[id]
		if agg.advN > 0 {
			advWeighted += agg.notional * (agg.advSum / float64(agg.advN))
			advWeight += agg.notional
		}
		if agg.volN > 0 {
			volWeighted += agg.notional * (agg.volSum / float64(agg.volN))
			volWeight += agg.notional
		}
	}

	if advWeight > 0 {
		adv := advWeighted / advWeight
		inputs.PortfolioADV = &adv
	}
	if volWeight > 0 {
		sigma := volWeighted / volWeight
		inputs.PortfolioSigma = &sigma
	}

	return inputs
}
