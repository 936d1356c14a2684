package postgres

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// TargetWeightStore implements storage.TargetWeightStore using PostgreSQL.
type TargetWeightStore struct {
	pool *Pool
}

// NewTargetWeightStore creates a new TargetWeightStore.
func NewTargetWeightStore(pool *Pool) *TargetWeightStore {
	return &TargetWeightStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TargetWeightStore = (*TargetWeightStore)(nil)

// InsertBulk adds multiple weight rows atomically. Fails entire batch on any duplicate.
func (s *TargetWeightStore) InsertBulk(ctx context.Context, weights []*domain.TargetWeight) error {
	if len(weights) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO target_weights (security_id, date, weight) VALUES ($1, $2, $3)`

	for _, w := range weights {
		if _, err := tx.Exec(ctx, query, w.SecurityID, w.Date, w.Weight); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert target weight in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDateRange retrieves weight rows within [start, end] (inclusive),
// ordered by (date, security_id) ASC.
func (s *TargetWeightStore) GetByDateRange(ctx context.Context, start, end string) ([]*domain.TargetWeight, error) {
	query := `
		SELECT security_id, date, weight
		FROM target_weights
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC, security_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query target weights: %w", err)
	}
	defer rows.Close()

	var weights []*domain.TargetWeight
	for rows.Next() {
		var w domain.TargetWeight
		if err := rows.Scan(&w.SecurityID, &w.Date, &w.Weight); err != nil {
			return nil, fmt.Errorf("scan target weight: %w", err)
		}
		weights = append(weights, &w)
	}
	return weights, rows.Err()
}
