// Package liquidity computes lagged rolling ADV and volatility
// estimates from raw price bars. It is the only component that touches
// raw price/volume history; everything downstream consumes
// fallback-applied LiquidityPoints.
package liquidity

import (
	"context"
	"log"
	"math"
	"sort"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// Adapter produces LiquidityPoints for a backtest date range. The
// window and its output are lagged by one trading day, so a trade made
// on date D never uses information available only as of D.
type Adapter struct {
	logger   *log.Logger
	advFloor float64
	volFloor float64

	advFallbacks int
	volFallbacks int
}

// NewAdapter creates an adapter with the standard fallback floors.
// A nil logger disables fallback logging.
func NewAdapter(logger *log.Logger) *Adapter {
	return &Adapter{
		logger:   logger,
		advFloor: domain.ADVFallbackUSD,
		volFloor: domain.VolatilityFallback,
	}
}

// FallbackCounts returns the number of ADV and volatility fallbacks
// applied by the most recent Compute call.
func (a *Adapter) FallbackCounts() (adv, vol int) {
	return a.advFallbacks, a.volFallbacks
}

// Load fetches full bar history for the requested securities and
// computes liquidity points for [startDate, endDate]. History before
// startDate is required to seed the trailing windows, so the whole
// series is read.
func (a *Adapter) Load(ctx context.Context, store storage.PriceBarStore, securityIDs []string, startDate, endDate string) ([]*domain.LiquidityPoint, error) {
	var bars []*domain.PriceBar
	for _, id := range securityIDs {
		b, err := store.GetBySecurityID(ctx, id)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b...)
	}
	return a.Compute(bars, securityIDs, startDate, endDate), nil
}

// Compute transforms raw bars into lagged, fallback-applied liquidity
// points covering every trading date in [startDate, endDate] for every
// requested security. The result does not depend on input bar order,
// and the input is not mutated.
func (a *Adapter) Compute(bars []*domain.PriceBar, securityIDs []string, startDate, endDate string) []*domain.LiquidityPoint {
	a.advFallbacks = 0
	a.volFallbacks = 0

	axis := tradingDateAxis(bars)

	ids := make([]string, len(securityIDs))
	copy(ids, securityIDs)
	sort.Strings(ids)

	bySecurity := make(map[string]map[string]*domain.PriceBar)
	for _, b := range bars {
		m, ok := bySecurity[b.SecurityID]
		if !ok {
			m = make(map[string]*domain.PriceBar)
			bySecurity[b.SecurityID] = m
		}
		m[b.Date] = b
	}

	var points []*domain.LiquidityPoint
	for _, id := range ids {
		points = append(points, a.computeSecurity(id, bySecurity[id], axis, startDate, endDate)...)
	}
	return points
}

// computeSecurity produces the point series for one security over the
// shared trading date axis.
func (a *Adapter) computeSecurity(securityID string, barsByDate map[string]*domain.PriceBar, axis []string, startDate, endDate string) []*domain.LiquidityPoint {
	n := len(axis)

	// Per-date dollar volume and daily return observations; nil when
	// the underlying bar data is missing.
	dollarVolume := make([]*float64, n)
	dailyReturn := make([]*float64, n)
	for i, date := range axis {
		bar := barsByDate[date]
		if bar == nil {
			continue
		}
		if bar.Close != nil && bar.Volume != nil {
			dv := *bar.Close * *bar.Volume
			dollarVolume[i] = &dv
		}
		if i == 0 || bar.Close == nil {
			continue
		}
		prev := barsByDate[axis[i-1]]
		if prev != nil && prev.Close != nil && *prev.Close > 0 {
			r := *bar.Close / *prev.Close - 1
			dailyReturn[i] = &r
		}
	}

	// Raw rolling values: window of LiquidityWindowDays ending at each
	// date, requiring a full window of valid observations.
	advRaw := make([]*float64, n)
	volRaw := make([]*float64, n)
	for i := range axis {
		if i+1 < domain.LiquidityWindowDays {
			continue
		}
		lo := i + 1 - domain.LiquidityWindowDays
		advRaw[i] = windowMean(dollarVolume[lo : i+1])
		volRaw[i] = windowSampleStddev(dailyReturn[lo : i+1])
	}

	var points []*domain.LiquidityPoint
	for i, date := range axis {
		if date < startDate || date > endDate {
			continue
		}

		// Lag by one trading day: the point for D carries the window
		// ending at D-1.
		var adv, vol *float64
		if i > 0 {
			adv = advRaw[i-1]
			vol = volRaw[i-1]
		}

		p := &domain.LiquidityPoint{SecurityID: securityID, Date: date}

		if usable(adv) {
			p.ADVUSD = *adv
		} else {
			p.ADVUSD = a.advFloor
			p.UsedADVFallback = true
			a.advFallbacks++
			a.logFallback("adv", securityID, date)
		}

		if usable(vol) {
			p.Volatility = *vol
		} else {
			p.Volatility = a.volFloor
			p.UsedVolFallback = true
			a.volFallbacks++
			a.logFallback("volatility", securityID, date)
		}

		points = append(points, p)
	}
	return points
}

func (a *Adapter) logFallback(kind, securityID, date string) {
	if a.logger != nil {
		a.logger.Printf("liquidity fallback: kind=%s security=%s date=%s", kind, securityID, date)
	}
}

// usable reports whether a lagged raw value can be handed to the cost
// engine without the fallback floor.
func usable(v *float64) bool {
	return v != nil && *v > 0 && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}

// windowMean returns the mean of a fully-valid window, nil otherwise.
func windowMean(window []*float64) *float64 {
	sum := 0.0
	for _, v := range window {
		if v == nil {
			return nil
		}
		sum += *v
	}
	mean := sum / float64(len(window))
	return &mean
}

// windowSampleStddev returns the sample standard deviation (ddof=1) of
// a fully-valid window, nil otherwise.
func windowSampleStddev(window []*float64) *float64 {
	n := len(window)
	if n < 2 {
		return nil
	}
	sum := 0.0
	for _, v := range window {
		if v == nil {
			return nil
		}
		sum += *v
	}
	mean := sum / float64(n)

	sumSq := 0.0
	for _, v := range window {
		diff := *v - mean
		sumSq += diff * diff
	}
	sd := math.Sqrt(sumSq / float64(n-1))
	return &sd
}

// tradingDateAxis returns the sorted union of all bar dates. The axis
// is shared across securities so that every component iterates dates
// in the same deterministic order.
func tradingDateAxis(bars []*domain.PriceBar) []string {
	seen := make(map[string]struct{})
	for _, b := range bars {
		seen[b.Date] = struct{}{}
	}
	axis := make([]string, 0, len(seen))
	for d := range seen {
		axis = append(axis, d)
	}
	sort.Strings(axis)
	return axis
}
