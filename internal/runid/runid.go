// Package runid derives deterministic backtest run identifiers.
package runid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"

	"costlab/internal/domain"
)

// Compute derives a deterministic run_id using SHA256.
// Formula: SHA256(start|end|aum|schema|commission|min_commission|spread|eta|participation|max_impact)
// Returns hex-encoded hash (64 characters). Identical inputs always
// produce the same id, so re-running a backtest is a detectable
// duplicate rather than a new row.
func Compute(startDate, endDate string, aumUSD float64, cfg domain.CostModelConfig) string {
	data := fmt.Sprintf("%s|%s|%.6f|%d|%.6f|%.6f|%.6f|%.6f|%.6f|%.6f",
		startDate,
		endDate,
		aumUSD,
		cfg.SchemaVersion,
		cfg.CommissionBps,
		cfg.MinCommissionUSD,
		cfg.SpreadBps,
		cfg.ImpactCoefficient,
		cfg.ADVParticipationLimit,
		cfg.MaxImpactBps,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Short returns the base58 form of the first 8 bytes of a hex run_id,
// used in URLs and log lines. Returns the input unchanged if it is not
// valid hex.
func Short(runID string) string {
	raw, err := hex.DecodeString(runID)
	if err != nil || len(raw) < 8 {
		return runID
	}
	return base58.Encode(raw[:8])
}
