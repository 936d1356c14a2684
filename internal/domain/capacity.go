package domain

// Breakeven search status constants. A status other than
// BreakevenOK is a valid outcome callers must branch on, not an error.
const (
	BreakevenOK                     = "ok"
	BreakevenNoPositiveAlpha        = "no_positive_alpha"
	BreakevenADVUnavailable         = "adv_unavailable"
	BreakevenVolatilityUnavailable  = "volatility_unavailable"
	BreakevenMinCommissionDominated = "min_commission_dominated"
	BreakevenNetNegativeAtMin       = "net_negative_at_min"
	BreakevenAlwaysPositive         = "always_positive"
)

// Binding constraint names for CapacityResult.
const (
	ConstraintImpactLimit        = "impact_limit"
	ConstraintParticipationLimit = "participation_limit"
	ConstraintBreakeven          = "breakeven"
	ConstraintNone               = "none"
	ConstraintNoPositiveAlpha    = "no_positive_alpha"
	ConstraintAllUnavailable     = "all_unavailable"
)

// CapacityResult is the capacity analysis for one completed backtest
// run. Nil capacity fields mean the constraint was not computable,
// which callers must keep distinct from zero and from +Inf.
type CapacityResult struct {
	RunID string

	// Aggregate inputs the constraints were solved against.
	AvgDailyTurnover     float64
	PortfolioADV         *float64 // trade-weighted average ADV, nil if unavailable
	PortfolioSigma       *float64 // trade-weighted average volatility, nil if unavailable
	GrossAlphaAnnualized float64

	// Per-constraint capacities in USD.
	CapacityAtImpactLimit        *float64
	CapacityAtParticipationLimit *float64
	CapacityAtBreakeven          *float64
	BreakevenStatus              string

	// ImpliedCapacityUSD is the minimum of the computable constraints;
	// math.Inf(1) when turnover is zero, nil when nothing was computable.
	ImpliedCapacityUSD *float64
	BindingConstraint  string
}
