package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned when a CostModelConfig fails validation.
var ErrInvalidConfig = errors.New("invalid cost model config")

// CostModelConfig holds the transaction cost model parameters for one
// backtest run. Constructed once per run, immutable thereafter.
type CostModelConfig struct {
	SchemaVersion         int     // config schema version, >= 1
	CommissionBps         float64 // commission in basis points of trade value
	MinCommissionUSD      float64 // per-trade commission floor in USD
	SpreadBps             float64 // full quoted bid-ask spread in basis points
	ImpactCoefficient     float64 // eta in the square-root impact law
	ADVParticipationLimit float64 // max fraction of ADV consumed per day (e.g. 0.05)
	MaxImpactBps          float64 // impact ceiling used by the capacity solver
}

// Documented bounds for CostModelConfig fields.
const (
	CommissionBpsMax         = 10.0
	MinCommissionUSDMax      = 1000.0
	SpreadBpsMax             = 50.0
	ImpactCoefficientMin     = 0.01
	ImpactCoefficientMax     = 1.0
	ADVParticipationLimitMin = 0.01
	ADVParticipationLimitMax = 0.20
	MaxImpactBpsMin          = 1.0
	MaxImpactBpsMax          = 50.0
)

// Validate checks all fields for finiteness and documented bounds.
// A config that fails validation must be rejected before any row is
// processed.
func (c CostModelConfig) Validate() error {
	if c.SchemaVersion < 1 {
		return fmt.Errorf("%w: schema_version %d, must be >= 1", ErrInvalidConfig, c.SchemaVersion)
	}

	fields := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"commission_bps", c.CommissionBps, 0, CommissionBpsMax},
		{"min_commission_usd", c.MinCommissionUSD, 0, MinCommissionUSDMax},
		{"spread_bps", c.SpreadBps, 0, SpreadBpsMax},
		{"impact_coefficient", c.ImpactCoefficient, ImpactCoefficientMin, ImpactCoefficientMax},
		{"adv_participation_limit", c.ADVParticipationLimit, ADVParticipationLimitMin, ADVParticipationLimitMax},
		{"max_impact_bps", c.MaxImpactBps, MaxImpactBpsMin, MaxImpactBpsMax},
	}

	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidConfig, f.name)
		}
		if f.value < f.min || f.value > f.max {
			return fmt.Errorf("%w: %s %g outside [%g, %g]", ErrInvalidConfig, f.name, f.value, f.min, f.max)
		}
	}

	return nil
}
