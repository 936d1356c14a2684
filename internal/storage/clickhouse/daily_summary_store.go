package clickhouse

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// DailySummaryStore implements storage.DailySummaryStore using ClickHouse.
type DailySummaryStore struct {
	conn *Conn
}

// NewDailySummaryStore creates a new DailySummaryStore.
func NewDailySummaryStore(conn *Conn) *DailySummaryStore {
	return &DailySummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DailySummaryStore = (*DailySummaryStore)(nil)

// InsertBulk adds multiple summaries. Fails entire batch on duplicate (run_id, date).
func (s *DailySummaryStore) InsertBulk(ctx context.Context, summaries []*domain.DailyCostSummary) error {
	if len(summaries) == 0 {
		return nil
	}

	type key struct {
		runID string
		date  string
	}
	seen := make(map[key]struct{}, len(summaries))
	for _, d := range summaries {
		k := key{d.RunID, d.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	exists, err := s.runExists(ctx, summaries[0].RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO daily_cost_summaries (
			run_id, date, gross_return, commission_usd, spread_usd,
			impact_usd, total_cost_usd, cost_drag, net_return,
			turnover, clamped
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range summaries {
		err = batch.Append(
			d.RunID, d.Date, d.GrossReturn, d.CommissionUSD, d.SpreadUSD,
			d.ImpactUSD, d.TotalCostUSD, d.CostDrag, d.NetReturn,
			d.Turnover, d.Clamped,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all summaries for a run, ordered by date ASC.
func (s *DailySummaryStore) GetByRunID(ctx context.Context, runID string) ([]*domain.DailyCostSummary, error) {
	query := `
		SELECT run_id, date, gross_return, commission_usd, spread_usd,
			impact_usd, total_cost_usd, cost_drag, net_return,
			turnover, clamped
		FROM daily_cost_summaries
		WHERE run_id = ?
		ORDER BY date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.DailyCostSummary
	for rows.Next() {
		var d domain.DailyCostSummary
		err := rows.Scan(
			&d.RunID, &d.Date, &d.GrossReturn, &d.CommissionUSD, &d.SpreadUSD,
			&d.ImpactUSD, &d.TotalCostUSD, &d.CostDrag, &d.NetReturn,
			&d.Turnover, &d.Clamped,
		)
		if err != nil {
			return nil, fmt.Errorf("scan daily summary: %w", err)
		}
		summaries = append(summaries, &d)
	}
	return summaries, rows.Err()
}

func (s *DailySummaryStore) runExists(ctx context.Context, runID string) (bool, error) {
	query := `SELECT count() FROM daily_cost_summaries WHERE run_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
