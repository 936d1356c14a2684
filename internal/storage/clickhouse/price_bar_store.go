package clickhouse

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// PriceBarStore implements storage.PriceBarStore using ClickHouse.
type PriceBarStore struct {
	conn *Conn
}

// NewPriceBarStore creates a new PriceBarStore.
func NewPriceBarStore(conn *Conn) *PriceBarStore {
	return &PriceBarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceBarStore = (*PriceBarStore)(nil)

// InsertBulk adds multiple bars. Fails entire batch on duplicate (security_id, date).
func (s *PriceBarStore) InsertBulk(ctx context.Context, bars []*domain.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		securityID string
		date       string
	}
	seen := make(map[key]struct{}, len(bars))
	for _, b := range bars {
		k := key{b.SecurityID, b.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, b := range bars {
		exists, err := s.exists(ctx, b.SecurityID, b.Date)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_bars (security_id, date, close, volume)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		if err := batch.Append(b.SecurityID, b.Date, b.Close, b.Volume); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetBySecurityID retrieves all bars for a security, ordered by date ASC.
func (s *PriceBarStore) GetBySecurityID(ctx context.Context, securityID string) ([]*domain.PriceBar, error) {
	query := `
		SELECT security_id, date, close, volume
		FROM price_bars
		WHERE security_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, securityID)
	if err != nil {
		return nil, fmt.Errorf("query by security id: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// GetByDateRange retrieves bars for the given securities within
// [start, end] (inclusive), ordered by (security_id, date) ASC.
func (s *PriceBarStore) GetByDateRange(ctx context.Context, securityIDs []string, start, end string) ([]*domain.PriceBar, error) {
	query := `
		SELECT security_id, date, close, volume
		FROM price_bars
		WHERE security_id IN (?) AND date >= ? AND date <= ?
		ORDER BY security_id ASC, date ASC
	`

	rows, err := s.conn.Query(ctx, query, securityIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanPriceBars(rows)
}

// exists checks whether a bar for (security_id, date) is already stored.
func (s *PriceBarStore) exists(ctx context.Context, securityID, date string) (bool, error) {
	query := `SELECT count() FROM price_bars WHERE security_id = ? AND date = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, securityID, date).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

type barRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPriceBars(rows barRows) ([]*domain.PriceBar, error) {
	var bars []*domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.SecurityID, &b.Date, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price bar: %w", err)
		}
		bars = append(bars, &b)
	}
	return bars, rows.Err()
}
