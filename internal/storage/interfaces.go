package storage

import (
	"context"

	"costlab/internal/domain"
)

// PriceBarStore provides access to price_bars storage. Bars are the
// only raw history surface; nothing outside the liquidity adapter
// should read them.
type PriceBarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate (security_id, date).
	InsertBulk(ctx context.Context, bars []*domain.PriceBar) error

	// GetBySecurityID retrieves all bars for a security, ordered by date ASC.
	GetBySecurityID(ctx context.Context, securityID string) ([]*domain.PriceBar, error)

	// GetByDateRange retrieves bars for the given securities within
	// [start, end] (inclusive), ordered by (security_id, date) ASC.
	GetByDateRange(ctx context.Context, securityIDs []string, start, end string) ([]*domain.PriceBar, error)
}

// TargetWeightStore provides access to target_weights storage.
type TargetWeightStore interface {
	// InsertBulk adds multiple weight rows. Fails entire batch on duplicate (security_id, date).
	InsertBulk(ctx context.Context, weights []*domain.TargetWeight) error

	// GetByDateRange retrieves all weight rows within [start, end]
	// (inclusive), ordered by (date, security_id) ASC.
	GetByDateRange(ctx context.Context, start, end string) ([]*domain.TargetWeight, error)
}

// GrossReturnStore provides access to gross_returns storage.
type GrossReturnStore interface {
	// InsertBulk adds multiple return rows. Fails entire batch on duplicate date.
	InsertBulk(ctx context.Context, returns []*domain.GrossReturn) error

	// GetByDateRange retrieves return rows within [start, end]
	// (inclusive), ordered by date ASC.
	GetByDateRange(ctx context.Context, start, end string) ([]*domain.GrossReturn, error)
}

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestRun) error

	// GetByID retrieves a run by run_id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error)

	// GetByShortID retrieves a run by its base58 short id. Returns ErrNotFound if not exists.
	GetByShortID(ctx context.Context, shortID string) (*domain.BacktestRun, error)

	// List retrieves all runs ordered by created_at DESC, run_id ASC.
	List(ctx context.Context) ([]*domain.BacktestRun, error)
}

// TradeCostStore provides access to trade_costs storage.
type TradeCostStore interface {
	// InsertBulk adds multiple trade cost rows. Fails entire batch on
	// duplicate (run_id, security_id, date).
	InsertBulk(ctx context.Context, costs []*domain.TradeCost) error

	// GetByRunID retrieves all trade costs for a run, ordered by (date, security_id) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeCost, error)
}

// DailySummaryStore provides access to daily_cost_summaries storage.
type DailySummaryStore interface {
	// InsertBulk adds multiple summaries. Fails entire batch on duplicate (run_id, date).
	InsertBulk(ctx context.Context, summaries []*domain.DailyCostSummary) error

	// GetByRunID retrieves all summaries for a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.DailyCostSummary, error)
}

// CapacityResultStore provides access to capacity_results storage.
type CapacityResultStore interface {
	// Insert adds a new capacity result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.CapacityResult) error

	// GetByRunID retrieves the capacity result for a run. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.CapacityResult, error)
}
