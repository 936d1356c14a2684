package clickhouse

import (
	"context"
	"fmt"

	"costlab/internal/domain"
	"costlab/internal/storage"
)

// TradeCostStore implements storage.TradeCostStore using ClickHouse.
type TradeCostStore struct {
	conn *Conn
}

// NewTradeCostStore creates a new TradeCostStore.
func NewTradeCostStore(conn *Conn) *TradeCostStore {
	return &TradeCostStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeCostStore = (*TradeCostStore)(nil)

// InsertBulk adds multiple trade cost rows. Fails entire batch on
// duplicate (run_id, security_id, date).
func (s *TradeCostStore) InsertBulk(ctx context.Context, costs []*domain.TradeCost) error {
	if len(costs) == 0 {
		return nil
	}

	type key struct {
		runID      string
		securityID string
		date       string
	}
	seen := make(map[key]struct{}, len(costs))
	for _, c := range costs {
		k := key{c.RunID, c.SecurityID, c.Date}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// A run's rows are written once; one existence probe per run is
	// enough to reject re-insertion.
	exists, err := s.runExists(ctx, costs[0].RunID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_costs (
			run_id, security_id, date, weight_change, trade_value_usd,
			commission_usd, spread_usd, impact_usd, total_cost_usd,
			adv_usd_used, volatility_used, participation_pct,
			used_adv_fallback, used_vol_fallback
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, c := range costs {
		err = batch.Append(
			c.RunID, c.SecurityID, c.Date, c.WeightChange, c.TradeValueUSD,
			c.CommissionUSD, c.SpreadUSD, c.ImpactUSD, c.TotalCostUSD,
			c.ADVUSDUsed, c.VolatilityUsed, c.ParticipationPct,
			c.UsedADVFallback, c.UsedVolFallback,
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

// GetByRunID retrieves all trade costs for a run, ordered by (date, security_id) ASC.
func (s *TradeCostStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeCost, error) {
	query := `
		SELECT run_id, security_id, date, weight_change, trade_value_usd,
			commission_usd, spread_usd, impact_usd, total_cost_usd,
			adv_usd_used, volatility_used, participation_pct,
			used_adv_fallback, used_vol_fallback
		FROM trade_costs
		WHERE run_id = ?
		ORDER BY date ASC, security_id ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	var costs []*domain.TradeCost
	for rows.Next() {
		var c domain.TradeCost
		err := rows.Scan(
			&c.RunID, &c.SecurityID, &c.Date, &c.WeightChange, &c.TradeValueUSD,
			&c.CommissionUSD, &c.SpreadUSD, &c.ImpactUSD, &c.TotalCostUSD,
			&c.ADVUSDUsed, &c.VolatilityUsed, &c.ParticipationPct,
			&c.UsedADVFallback, &c.UsedVolFallback,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade cost: %w", err)
		}
		costs = append(costs, &c)
	}
	return costs, rows.Err()
}

func (s *TradeCostStore) runExists(ctx context.Context, runID string) (bool, error) {
	query := `SELECT count() FROM trade_costs WHERE run_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, runID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
