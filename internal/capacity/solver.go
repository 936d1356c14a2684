package capacity

import (
	"math"

	"costlab/internal/domain"
)

// Breakeven search range and precision.
const (
	MinSearchAUM    = 10_000.0          // $10k
	MaxSearchAUM    = 100_000_000_000.0 // $100B
	SearchPrecision = 1_000.0           // $1k
)

// Solver computes capacity constraints for one run. It records the
// number of binary-search iterations for observability.
type Solver struct {
	iterations int
}

// NewSolver creates a capacity solver.
func NewSolver() *Solver {
	return &Solver{}
}

// Iterations returns the breakeven binary-search iteration count of
// the most recent Solve call.
func (s *Solver) Iterations() int { return s.iterations }

// Solve produces the capacity result for the given aggregate inputs.
// Indeterminate outcomes are returned as statuses on the result, never
// as errors.
func (s *Solver) Solve(inputs Inputs, cfg domain.CostModelConfig) *domain.CapacityResult {
	s.iterations = 0

	result := &domain.CapacityResult{
		AvgDailyTurnover:     inputs.AvgDailyTurnover,
		PortfolioADV:         inputs.PortfolioADV,
		PortfolioSigma:       inputs.PortfolioSigma,
		GrossAlphaAnnualized: inputs.GrossAlphaAnnualized,
	}

	// Zero turnover means the strategy never trades: costs are zero at
	// any AUM and no constraint can bind.
	if inputs.AvgDailyTurnover == 0 {
		unbounded := math.Inf(1)
		result.ImpliedCapacityUSD = &unbounded
		result.BindingConstraint = domain.ConstraintNone
		if inputs.GrossAlphaAnnualized > 0 {
			result.BreakevenStatus = domain.BreakevenAlwaysPositive
		} else {
			result.BreakevenStatus = domain.BreakevenNoPositiveAlpha
		}
		return result
	}

	result.CapacityAtImpactLimit = s.impactLimitCapacity(inputs, cfg)
	result.CapacityAtParticipationLimit = s.participationLimitCapacity(inputs, cfg)
	result.CapacityAtBreakeven, result.BreakevenStatus = s.findBreakevenAUM(inputs, cfg)

	// An unprofitable strategy has zero capacity regardless of the
	// liquidity constraints.
	if result.BreakevenStatus == domain.BreakevenNoPositiveAlpha {
		zero := 0.0
		result.ImpliedCapacityUSD = &zero
		result.BindingConstraint = domain.ConstraintNoPositiveAlpha
		return result
	}

	type candidate struct {
		name  string
		value *float64
	}
	candidates := []candidate{
		{domain.ConstraintImpactLimit, result.CapacityAtImpactLimit},
		{domain.ConstraintParticipationLimit, result.CapacityAtParticipationLimit},
		{domain.ConstraintBreakeven, result.CapacityAtBreakeven},
	}

	for _, c := range candidates {
		if c.value == nil {
			continue
		}
		if result.ImpliedCapacityUSD == nil || *c.value < *result.ImpliedCapacityUSD {
			v := *c.value
			result.ImpliedCapacityUSD = &v
			result.BindingConstraint = c.name
		}
	}

	if result.ImpliedCapacityUSD == nil {
		result.BindingConstraint = domain.ConstraintAllUnavailable
	}

	return result
}

// impactLimitCapacity solves the square-root impact law for the AUM at
// which the modeled daily impact reaches max_impact_bps:
//
//	max_impact_bps = turnover * eta * sigma * sqrt(turnover*AUM/ADV) * 10000
//	AUM = (max_impact_bps / (turnover*eta*sigma*10000))^2 * ADV / turnover
func (s *Solver) impactLimitCapacity(inputs Inputs, cfg domain.CostModelConfig) *float64 {
	if inputs.PortfolioADV == nil || inputs.PortfolioSigma == nil {
		return nil
	}
	turnover := inputs.AvgDailyTurnover
	denom := turnover * cfg.ImpactCoefficient * *inputs.PortfolioSigma * 10000
	if denom <= 0 {
		return nil
	}
	ratio := cfg.MaxImpactBps / denom
	aum := ratio * ratio * *inputs.PortfolioADV / turnover
	return &aum
}

// participationLimitCapacity is the AUM at which the average daily
// trade consumes the configured fraction of ADV.
func (s *Solver) participationLimitCapacity(inputs Inputs, cfg domain.CostModelConfig) *float64 {
	if inputs.PortfolioADV == nil {
		return nil
	}
	aum := cfg.ADVParticipationLimit * *inputs.PortfolioADV / inputs.AvgDailyTurnover
	return &aum
}

// findBreakevenAUM searches for the AUM at which annualized net alpha
// crosses zero. The net-alpha function is monotonically non-increasing
// in AUM (cost grows super-linearly via the square-root impact term),
// so a binary search over [MinSearchAUM, MaxSearchAUM] converges.
// Short-circuit conditions each yield a distinct status instead of a
// numeric answer.
func (s *Solver) findBreakevenAUM(inputs Inputs, cfg domain.CostModelConfig) (*float64, string) {
	if inputs.GrossAlphaAnnualized <= 0 {
		return nil, domain.BreakevenNoPositiveAlpha
	}
	if inputs.PortfolioADV == nil {
		return nil, domain.BreakevenADVUnavailable
	}
	if inputs.PortfolioSigma == nil {
		return nil, domain.BreakevenVolatilityUnavailable
	}

	if s.minCommissionDominates(inputs, cfg) {
		return nil, domain.BreakevenMinCommissionDominated
	}

	netAtMin := s.netAlphaAnnualized(MinSearchAUM, inputs, cfg)
	if netAtMin < 0 {
		// Unprofitable even at the smallest searchable size: report the
		// minimum as a conservative capacity.
		min := MinSearchAUM
		return &min, domain.BreakevenNetNegativeAtMin
	}

	netAtMax := s.netAlphaAnnualized(MaxSearchAUM, inputs, cfg)
	if netAtMax > 0 {
		return nil, domain.BreakevenAlwaysPositive
	}

	lo, hi := MinSearchAUM, MaxSearchAUM
	for hi-lo > SearchPrecision {
		mid := lo + (hi-lo)/2
		s.iterations++
		if s.netAlphaAnnualized(mid, inputs, cfg) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	root := lo + (hi-lo)/2
	return &root, domain.BreakevenOK
}

// minCommissionDominates reports whether the per-trade commission
// floor swamps the basis-point model at the smallest searchable AUM,
// which makes the breakeven answer unreliable.
func (s *Solver) minCommissionDominates(inputs Inputs, cfg domain.CostModelConfig) bool {
	if cfg.MinCommissionUSD == 0 {
		return false
	}
	tv := inputs.AvgDailyTurnover * MinSearchAUM
	bpsCommission := tv * cfg.CommissionBps / 10000
	if cfg.MinCommissionUSD <= bpsCommission {
		return false
	}
	total := s.dailyCost(MinSearchAUM, inputs, cfg)
	return cfg.MinCommissionUSD > 0.5*total
}

// dailyCost models one aggregate daily trade of value turnover*AUM
// through the same three cost formulas the engine applies per trade.
func (s *Solver) dailyCost(aum float64, inputs Inputs, cfg domain.CostModelConfig) float64 {
	tv := inputs.AvgDailyTurnover * aum

	commission := tv * cfg.CommissionBps / 10000
	if commission < cfg.MinCommissionUSD {
		commission = cfg.MinCommissionUSD
	}
	spread := tv * (cfg.SpreadBps / 2) / 10000
	impact := tv * cfg.ImpactCoefficient * *inputs.PortfolioSigma * math.Sqrt(tv / *inputs.PortfolioADV)

	return commission + spread + impact
}

// netAlphaAnnualized compounds the synthetic daily net return back to
// an annual figure for a given AUM.
func (s *Solver) netAlphaAnnualized(aum float64, inputs Inputs, cfg domain.CostModelConfig) float64 {
	dailyGross := math.Pow(1+inputs.GrossAlphaAnnualized, 1.0/domain.TradingDaysPerYear) - 1
	dailyNet := dailyGross - s.dailyCost(aum, inputs, cfg)/aum
	if dailyNet <= -1 {
		return -1
	}
	return math.Pow(1+dailyNet, domain.TradingDaysPerYear) - 1
}
