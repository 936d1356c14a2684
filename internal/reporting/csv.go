package reporting

import (
	"fmt"
	"strings"

	"costlab/internal/domain"
)

// RenderTradeCostsCSV renders a run's trade costs as a CSV string.
func RenderTradeCostsCSV(trades []*domain.TradeCost) string {
	var sb strings.Builder

	// Header
	sb.WriteString("security_id,date,weight_change,trade_value_usd,")
	sb.WriteString("commission_usd,spread_usd,impact_usd,total_cost_usd,")
	sb.WriteString("adv_usd_used,volatility_used,participation_pct,used_adv_fallback,used_vol_fallback\n")

	// Rows
	for _, tc := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%.8f,%.2f,%.6f,%.6f,%.6f,%.6f,%.2f,%.8f,%.8f,%t,%t\n",
			tc.SecurityID,
			tc.Date,
			tc.WeightChange,
			tc.TradeValueUSD,
			tc.CommissionUSD,
			tc.SpreadUSD,
			tc.ImpactUSD,
			tc.TotalCostUSD,
			tc.ADVUSDUsed,
			tc.VolatilityUsed,
			tc.ParticipationPct,
			tc.UsedADVFallback,
			tc.UsedVolFallback,
		))
	}

	return sb.String()
}

// RenderDailySummariesCSV renders a run's daily summaries as a CSV string.
func RenderDailySummariesCSV(summaries []*domain.DailyCostSummary) string {
	var sb strings.Builder

	// Header
	sb.WriteString("date,gross_return,commission_usd,spread_usd,impact_usd,")
	sb.WriteString("total_cost_usd,cost_drag,net_return,turnover,clamped\n")

	// Rows
	for _, s := range summaries {
		sb.WriteString(fmt.Sprintf("%s,%.8f,%.6f,%.6f,%.6f,%.6f,%.10f,%.8f,%.8f,%t\n",
			s.Date,
			s.GrossReturn,
			s.CommissionUSD,
			s.SpreadUSD,
			s.ImpactUSD,
			s.TotalCostUSD,
			s.CostDrag,
			s.NetReturn,
			s.Turnover,
			s.Clamped,
		))
	}

	return sb.String()
}
