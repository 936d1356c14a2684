package costengine

import (
	"fmt"
	"math"
	"sort"

	"costlab/internal/domain"
)

// BuildWeightDeltas derives per-(security, date) weight changes from
// target weight snapshots over the backtest date axis. Weights are
// forward-filled across gaps; the first backtest date is a transition
// from the all-cash zero-weight state, so it produces deltas. Output
// is ordered (date ASC, security_id ASC) and includes only non-zero
// changes.
func BuildWeightDeltas(weights []*domain.TargetWeight, dates []string, aumUSD float64) ([]*domain.WeightDelta, error) {
	onAxis := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		onAxis[d] = struct{}{}
	}

	// weight lookup plus the sorted security id set, validated up front
	byKey := make(map[string]float64)
	idSet := make(map[string]struct{})
	for _, w := range weights {
		if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return nil, fmt.Errorf("%w: non-finite weight for security %s on %s", ErrAlignment, w.SecurityID, w.Date)
		}
		if _, ok := onAxis[w.Date]; !ok {
			return nil, fmt.Errorf("%w: weight for security %s dated %s is off the return axis", ErrAlignment, w.SecurityID, w.Date)
		}
		byKey[w.SecurityID+"|"+w.Date] = w.Weight
		idSet[w.SecurityID] = struct{}{}
	}

	securityIDs := make([]string, 0, len(idSet))
	for id := range idSet {
		securityIDs = append(securityIDs, id)
	}
	sort.Strings(securityIDs)

	var deltas []*domain.WeightDelta
	prev := make(map[string]float64, len(securityIDs))
	for _, date := range dates {
		for _, id := range securityIDs {
			w, ok := byKey[id+"|"+date]
			if !ok {
				w = prev[id] // forward-fill across gaps
			}
			change := w - prev[id]
			prev[id] = w
			if change == 0 {
				continue
			}
			deltas = append(deltas, &domain.WeightDelta{
				SecurityID:    id,
				Date:          date,
				WeightChange:  change,
				TradeValueUSD: math.Abs(change) * aumUSD,
			})
		}
	}
	return deltas, nil
}
