package domain

// Run status constants.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// BacktestRun is the persisted metadata for one cost simulation run.
// Corresponds to the backtest_runs table in PostgreSQL.
type BacktestRun struct {
	RunID     string // deterministic content hash, hex (64 chars)
	ShortID   string // base58 short form for URLs and logs
	CreatedAt int64  // Unix timestamp in milliseconds
	StartDate string // first backtest date, ISO YYYY-MM-DD
	EndDate   string // last backtest date
	AUMUSD    float64
	Config    CostModelConfig // config snapshot the run was priced with
	Status    string          // "completed" | "failed"

	// Data quality counters surfaced from the run.
	ADVFallbackCount int
	VolFallbackCount int
	ClampCount       int
}
