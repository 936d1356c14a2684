package postgres

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const runColumns = `
	run_id, short_id, created_at, start_date, end_date, aum_usd, status,
	schema_version, commission_bps, min_commission_usd, spread_bps,
	impact_coefficient, adv_participation_limit, max_impact_bps,
	adv_fallback_count, vol_fallback_count, clamp_count
`

// Insert adds a new run. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *domain.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (` + runColumns + `) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14,
			$15, $16, $17
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.ShortID, r.CreatedAt, r.StartDate, r.EndDate, r.AUMUSD, r.Status,
		r.Config.SchemaVersion, r.Config.CommissionBps, r.Config.MinCommissionUSD, r.Config.SpreadBps,
		r.Config.ImpactCoefficient, r.Config.ADVParticipationLimit, r.Config.MaxImpactBps,
		r.ADVFallbackCount, r.VolFallbackCount, r.ClampCount,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by run_id. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetByShortID retrieves a run by its base58 short id. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByShortID(ctx context.Context, shortID string) (*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE short_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, shortID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by short id: %w", err)
	}
	return r, nil
}

// List retrieves all runs ordered by created_at DESC, run_id ASC.
func (s *BacktestRunStore) List(ctx context.Context) ([]*domain.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs ORDER BY created_at DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.BacktestRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.BacktestRun, error) {
	var r domain.BacktestRun
	err := row.Scan(
		&r.RunID, &r.ShortID, &r.CreatedAt, &r.StartDate, &r.EndDate, &r.AUMUSD, &r.Status,
		&r.Config.SchemaVersion, &r.Config.CommissionBps, &r.Config.MinCommissionUSD, &r.Config.SpreadBps,
		&r.Config.ImpactCoefficient, &r.Config.ADVParticipationLimit, &r.Config.MaxImpactBps,
		&r.ADVFallbackCount, &r.VolFallbackCount, &r.ClampCount,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
