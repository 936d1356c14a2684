package postgres

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// CapacityResultStore implements storage.CapacityResultStore using PostgreSQL.
// Nullable capacity columns map to nil pointers, preserving the
// distinction between "unavailable" and any numeric value; +Inf for the
// unconstrained case round-trips through float8.
type CapacityResultStore struct {
	pool *Pool
}

// NewCapacityResultStore creates a new CapacityResultStore.
func NewCapacityResultStore(pool *Pool) *CapacityResultStore {
	return &CapacityResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CapacityResultStore = (*CapacityResultStore)(nil)

// Insert adds a new capacity result. Returns ErrDuplicateKey if run_id exists.
func (s *CapacityResultStore) Insert(ctx context.Context, r *domain.CapacityResult) error {
	query := `
		INSERT INTO capacity_results (
			run_id, avg_daily_turnover, portfolio_adv, portfolio_sigma,
			gross_alpha_annualized, capacity_at_impact_limit,
			capacity_at_participation_limit, capacity_at_breakeven,
			breakeven_status, implied_capacity_usd, binding_constraint
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8,
			$9, $10, $11
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.AvgDailyTurnover, r.PortfolioADV, r.PortfolioSigma,
		r.GrossAlphaAnnualized, r.CapacityAtImpactLimit,
		r.CapacityAtParticipationLimit, r.CapacityAtBreakeven,
		r.BreakevenStatus, r.ImpliedCapacityUSD, r.BindingConstraint,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert capacity result: %w", err)
	}
	return nil
}

// GetByRunID retrieves the capacity result for a run. Returns ErrNotFound if not exists.
func (s *CapacityResultStore) GetByRunID(ctx context.Context, runID string) (*domain.CapacityResult, error) {
	query := `
		SELECT run_id, avg_daily_turnover, portfolio_adv, portfolio_sigma,
			gross_alpha_annualized, capacity_at_impact_limit,
			capacity_at_participation_limit, capacity_at_breakeven,
			breakeven_status, implied_capacity_usd, binding_constraint
		FROM capacity_results
		WHERE run_id = $1
	`

	var r domain.CapacityResult
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&r.RunID, &r.AvgDailyTurnover, &r.PortfolioADV, &r.PortfolioSigma,
		&r.GrossAlphaAnnualized, &r.CapacityAtImpactLimit,
		&r.CapacityAtParticipationLimit, &r.CapacityAtBreakeven,
		&r.BreakevenStatus, &r.ImpliedCapacityUSD, &r.BindingConstraint,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get capacity result: %w", err)
	}
	return &r, nil
}
