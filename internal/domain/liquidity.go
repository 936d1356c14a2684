package domain

// PriceBar is one raw daily price/volume observation for a security.
// Corresponds to the price_bars table in ClickHouse. Close and Volume
// are nil when the source had no data for that day; only the liquidity
// adapter ever consumes raw bars.
type PriceBar struct {
	SecurityID string   // security identifier
	Date       string   // trading date, ISO YYYY-MM-DD
	Close      *float64 // closing price, nil if missing
	Volume     *float64 // share volume, nil if missing
}

// LiquidityPoint is the lagged, fallback-applied liquidity estimate for
// one (security, date). After the fallback policy is applied both
// numeric fields are strictly positive and finite; the cost engine is
// never handed a null or non-positive value.
type LiquidityPoint struct {
	SecurityID      string
	Date            string  // trading date the point applies to (already lagged)
	ADVUSD          float64 // trailing average daily dollar volume
	Volatility      float64 // trailing daily return volatility
	UsedADVFallback bool    // ADVUSD came from the floor, not the window
	UsedVolFallback bool    // Volatility came from the floor, not the window
}

// Liquidity fallback floors applied when a window value is missing,
// non-positive, or non-finite.
const (
	ADVFallbackUSD     = 100_000.0 // $100k daily dollar volume
	VolatilityFallback = 0.01      // 1% daily volatility
)

// LiquidityWindowDays is the trailing window length for ADV and
// volatility. A window yields a value only with this many valid
// observations.
const LiquidityWindowDays = 20
