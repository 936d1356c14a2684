package postgres

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// GrossReturnStore implements storage.GrossReturnStore using PostgreSQL.
type GrossReturnStore struct {
	pool *Pool
}

// NewGrossReturnStore creates a new GrossReturnStore.
func NewGrossReturnStore(pool *Pool) *GrossReturnStore {
	return &GrossReturnStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GrossReturnStore = (*GrossReturnStore)(nil)

// InsertBulk adds multiple return rows atomically. Fails entire batch on any duplicate.
func (s *GrossReturnStore) InsertBulk(ctx context.Context, returns []*domain.GrossReturn) error {
	if len(returns) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO gross_returns (date, gross_return) VALUES ($1, $2)`

	for _, r := range returns {
		if _, err := tx.Exec(ctx, query, r.Date, r.Return); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert gross return in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByDateRange retrieves return rows within [start, end] (inclusive),
// ordered by date ASC.
func (s *GrossReturnStore) GetByDateRange(ctx context.Context, start, end string) ([]*domain.GrossReturn, error) {
	query := `
		SELECT date, gross_return
		FROM gross_returns
		WHERE date >= $1 AND date <= $2
		ORDER BY date ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query gross returns: %w", err)
	}
	defer rows.Close()

	var returns []*domain.GrossReturn
	for rows.Next() {
		var r domain.GrossReturn
		if err := rows.Scan(&r.Date, &r.Return); err != nil {
			return nil, fmt.Errorf("scan gross return: %w", err)
		}
		returns = append(returns, &r)
	}
	return returns, rows.Err()
}
