package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Cost Simulation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` (%s)\n\n", r.Run.ShortID, r.Run.RunID))

	// Run metadata
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Date Range | %s to %s |\n", r.Run.StartDate, r.Run.EndDate))
	sb.WriteString(fmt.Sprintf("| AUM (USD) | %.2f |\n", r.Run.AUMUSD))
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", r.TradingDays))
	sb.WriteString(fmt.Sprintf("| Trades Priced | %d |\n", r.TradeCount))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Run.Status))
	sb.WriteString("\n")

	// Cost totals
	sb.WriteString("## Costs\n\n")
	sb.WriteString("| Category | USD |\n")
	sb.WriteString("|----------|-----|\n")
	sb.WriteString(fmt.Sprintf("| Commission | %.2f |\n", r.CommissionUSD))
	sb.WriteString(fmt.Sprintf("| Spread | %.2f |\n", r.SpreadUSD))
	sb.WriteString(fmt.Sprintf("| Impact | %.2f |\n", r.ImpactUSD))
	sb.WriteString(fmt.Sprintf("| Total | %.2f |\n", r.TotalCostUSD))
	sb.WriteString(fmt.Sprintf("\nAverage daily cost drag: %.4f bps\n\n", r.AvgDailyCostDragBps))

	// Performance
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Gross | Net |\n")
	sb.WriteString("|--------|-------|-----|\n")
	sb.WriteString(fmt.Sprintf("| Total Return | %s | %s |\n",
		fmtStat(r.Gross.TotalReturn, "%.6f"), fmtStat(r.Net.TotalReturn, "%.6f")))
	sb.WriteString(fmt.Sprintf("| Sharpe | %s | %s |\n",
		fmtStat(r.Gross.Sharpe, "%.4f"), fmtStat(r.Net.Sharpe, "%.4f")))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s | %s |\n",
		fmtStat(r.Gross.MaxDrawdown, "%.6f"), fmtStat(r.Net.MaxDrawdown, "%.6f")))
	sb.WriteString("\n")

	// Data quality
	sb.WriteString("## Data Quality\n\n")
	sb.WriteString("| Counter | Value |\n")
	sb.WriteString("|---------|-------|\n")
	sb.WriteString(fmt.Sprintf("| ADV Fallbacks | %d |\n", r.Run.ADVFallbackCount))
	sb.WriteString(fmt.Sprintf("| Volatility Fallbacks | %d |\n", r.Run.VolFallbackCount))
	sb.WriteString(fmt.Sprintf("| Net Return Clamps | %d |\n", r.Run.ClampCount))
	sb.WriteString("\n")

	// Capacity
	sb.WriteString("## Capacity\n\n")
	if r.Capacity == nil {
		sb.WriteString("No capacity result recorded.\n")
		return sb.String()
	}
	c := r.Capacity
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Avg Daily Turnover | %.6f |\n", c.AvgDailyTurnover))
	sb.WriteString(fmt.Sprintf("| Portfolio ADV (USD) | %s |\n", fmtCapacity(c.PortfolioADV)))
	sb.WriteString(fmt.Sprintf("| Portfolio Sigma | %s |\n", fmtStat(c.PortfolioSigma, "%.6f")))
	sb.WriteString(fmt.Sprintf("| Gross Alpha (ann.) | %.6f |\n", c.GrossAlphaAnnualized))
	sb.WriteString(fmt.Sprintf("| Capacity @ Impact Limit | %s |\n", fmtCapacity(c.CapacityAtImpactLimit)))
	sb.WriteString(fmt.Sprintf("| Capacity @ Participation Limit | %s |\n", fmtCapacity(c.CapacityAtParticipationLimit)))
	sb.WriteString(fmt.Sprintf("| Capacity @ Breakeven | %s |\n", fmtCapacity(c.CapacityAtBreakeven)))
	sb.WriteString(fmt.Sprintf("| Breakeven Status | %s |\n", c.BreakevenStatus))
	sb.WriteString(fmt.Sprintf("| Implied Capacity (USD) | %s |\n", fmtCapacity(c.ImpliedCapacityUSD)))
	sb.WriteString(fmt.Sprintf("| Binding Constraint | %s |\n", c.BindingConstraint))
	sb.WriteString("\n")

	switch {
	case c.ImpliedCapacityUSD == nil:
		sb.WriteString("Capacity is **unavailable**: no constraint could be computed from the run's liquidity data.\n")
	case math.IsInf(*c.ImpliedCapacityUSD, 1):
		sb.WriteString("Capacity is **unconstrained**: the strategy never trades, so no cost constraint binds at any AUM.\n")
	case *c.ImpliedCapacityUSD == 0:
		sb.WriteString("Capacity is **zero**: the strategy has no positive gross alpha to fund trading costs.\n")
	}

	return sb.String()
}

// fmtStat formats a nullable metric, rendering nil as n/a.
func fmtStat(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}

// fmtCapacity formats a nullable capacity in USD, keeping the three
// special outcomes visually distinct.
func fmtCapacity(v *float64) string {
	if v == nil {
		return "unavailable"
	}
	if math.IsInf(*v, 1) {
		return "unconstrained"
	}
	return fmt.Sprintf("%.2f", *v)
}
