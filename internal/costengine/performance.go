package costengine

import (
	"math"

	"costlab/internal/domain"
)

// ComputeStats calculates compounded series metrics from a daily
// return series. Metrics come from the full series by standard
// compounding, never by adjusting a pre-computed aggregate, so the
// interaction between costs and compounding is preserved. Non-finite
// values are dropped; an empty or entirely non-finite series yields
// all-nil stats (undefined, not zero).
func ComputeStats(returns []float64) domain.PerformanceStats {
	finite := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) && !math.IsInf(r, 0) {
			finite = append(finite, r)
		}
	}
	if len(finite) == 0 {
		return domain.PerformanceStats{}
	}

	total := compound(finite)
	stats := domain.PerformanceStats{
		TotalReturn: &total,
	}

	if sharpe, ok := annualizedSharpe(finite); ok {
		stats.Sharpe = &sharpe
	}

	dd := maxDrawdown(finite)
	stats.MaxDrawdown = &dd

	return stats
}

// compound returns the total compounded return of the series.
func compound(returns []float64) float64 {
	equity := 1.0
	for _, r := range returns {
		equity *= 1 + r
	}
	return equity - 1
}

// annualizedSharpe returns mean/stddev * sqrt(252). Undefined (false)
// for fewer than two observations or zero volatility.
func annualizedSharpe(returns []float64) (float64, bool) {
	n := len(returns)
	if n < 2 {
		return 0, false
	}

	sum := 0.0
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(n)

	sumSq := 0.0
	for _, r := range returns {
		diff := r - mean
		sumSq += diff * diff
	}
	stddev := math.Sqrt(sumSq / float64(n-1))
	if stddev == 0 {
		return 0, false
	}

	return mean / stddev * math.Sqrt(domain.TradingDaysPerYear), true
}

// maxDrawdown returns the worst peak-to-trough decline of the
// compounded equity curve, as a positive fraction of the peak.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}
