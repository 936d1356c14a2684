package domain

// TargetWeight is one target portfolio weight snapshot row, produced by
// an external signal generator. Weights for a security not yet entered
// are implicitly zero.
type TargetWeight struct {
	SecurityID string
	Date       string  // trading date, ISO YYYY-MM-DD
	Weight     float64 // signed target weight as a fraction of AUM
}

// GrossReturn is one daily cost-free portfolio return row, produced by
// an external returns generator. Its date axis defines the backtest
// date axis.
type GrossReturn struct {
	Date   string
	Return float64
}

// WeightDelta is the signed weight change for one (security, date),
// derived from two consecutive target snapshots. The first backtest
// date is a transition from the all-cash state, so it is costed.
type WeightDelta struct {
	SecurityID    string
	Date          string
	WeightChange  float64 // signed; w[D] - w[D_prev]
	TradeValueUSD float64 // |WeightChange| * AUM
}
