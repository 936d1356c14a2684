package domain

// TradeCost is the cost breakdown for one (security, date) trade.
// Exactly one row exists per security per backtest date with a
// non-zero weight change. TotalCostUSD always equals the sum of the
// three components.
type TradeCost struct {
	RunID            string  // owning backtest run
	SecurityID       string
	Date             string
	WeightChange     float64 // signed weight change that produced the trade
	TradeValueUSD    float64 // |weight change| * AUM
	CommissionUSD    float64
	SpreadUSD        float64
	ImpactUSD        float64
	TotalCostUSD     float64 // commission + spread + impact
	ADVUSDUsed       float64 // liquidity inputs actually used (post-fallback)
	VolatilityUsed   float64
	ParticipationPct float64 // trade value / ADV
	UsedADVFallback  bool
	UsedVolFallback  bool
}

// DailyCostSummary is the portfolio-level cost summary for one
// backtest date.
type DailyCostSummary struct {
	RunID         string
	Date          string
	GrossReturn   float64
	CommissionUSD float64 // category subtotals across securities
	SpreadUSD     float64
	ImpactUSD     float64
	TotalCostUSD  float64
	CostDrag      float64 // TotalCostUSD / AUM, always >= 0
	NetReturn     float64 // GrossReturn - CostDrag, clamped at NetReturnFloor
	Turnover      float64 // sum of |weight change| across securities
	Clamped       bool    // NetReturn hit the floor
}

// NetReturnFloor is the clamp applied to net returns so that
// compounding stays well-defined under degenerate inputs.
const NetReturnFloor = -0.9999

// PerformanceStats holds compounded series metrics. Nil fields mean
// the metric is undefined (empty or non-finite series), which is
// distinct from zero.
type PerformanceStats struct {
	TotalReturn *float64 // compounded total return
	Sharpe      *float64 // annualized, mean/stddev * sqrt(252)
	MaxDrawdown *float64 // worst peak-to-trough on the equity curve
}

// TradingDaysPerYear is the annualization convention used throughout.
const TradingDaysPerYear = 252
