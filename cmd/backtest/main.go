package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"costlab/internal/backtest"
	"costlab/internal/domain"
	"costlab/internal/reporting"
	chstore "costlab/internal/storage/clickhouse"
	"costlab/internal/storage/migrations"
	pgstore "costlab/internal/storage/postgres"
)

func main() {
	// Run definition
	startDate := flag.String("start", "", "First backtest date, YYYY-MM-DD (required)")
	endDate := flag.String("end", "", "Last backtest date, YYYY-MM-DD (required)")
	aumUSD := flag.Float64("aum", 10_000_000, "Assets under management in USD")

	// Cost model config
	commissionBps := flag.Float64("commission-bps", 0.5, "Commission in basis points of trade value")
	minCommission := flag.Float64("min-commission", 1.0, "Minimum commission per trade in USD")
	spreadBps := flag.Float64("spread-bps", 5.0, "Full quoted spread in basis points")
	impactCoefficient := flag.Float64("impact-coefficient", 0.1, "Square-root impact coefficient")
	participationLimit := flag.Float64("participation-limit", 0.05, "Max fraction of ADV per day")
	maxImpactBps := flag.Float64("max-impact-bps", 20.0, "Max tolerated daily impact in basis points")
	schemaVersion := flag.Int("schema-version", 1, "Cost model schema version")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Run from CSV fixtures without persistence")

	// Fixture inputs (memory mode)
	barsCSV := flag.String("bars-csv", "", "Price bars CSV: security_id,date,close,volume")
	weightsCSV := flag.String("weights-csv", "", "Target weights CSV: security_id,date,weight")
	returnsCSV := flag.String("returns-csv", "", "Gross returns CSV: date,gross_return")

	// Output
	outputJSON := flag.Bool("json", false, "Output report as JSON")
	reportPath := flag.String("report", "", "Write markdown report to this path")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *startDate == "" || *endDate == "" {
		logger.Fatal("--start and --end are required")
	}
	if *startDate > *endDate {
		logger.Fatalf("--start %s is after --end %s", *startDate, *endDate)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	spec := backtest.RunSpec{
		StartDate: *startDate,
		EndDate:   *endDate,
		AUMUSD:    *aumUSD,
		Config: domain.CostModelConfig{
			SchemaVersion:         *schemaVersion,
			CommissionBps:         *commissionBps,
			MinCommissionUSD:      *minCommission,
			SpreadBps:             *spreadBps,
			ImpactCoefficient:     *impactCoefficient,
			ADVParticipationLimit: *participationLimit,
			MaxImpactBps:          *maxImpactBps,
		},
	}
	if err := spec.Config.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	var result *backtest.Result
	var err error
	if *useMemory {
		result, err = runFromFixtures(spec, *weightsCSV, *returnsCSV, *barsCSV, logger)
	} else {
		result, err = runFromStores(ctx, spec, *postgresDSN, *clickhouseDSN, logger)
	}
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	report := reporting.BuildReport(result.Run, result.Trades, result.Summaries, result.Capacity)
	report.GeneratedAt = time.UnixMilli(result.Run.CreatedAt).UTC()

	if *reportPath != "" {
		if err := os.WriteFile(*reportPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
			logger.Fatalf("write report: %v", err)
		}
		logger.Printf("report written to %s", *reportPath)
	}

	if *outputJSON {
		// +Inf capacity is not representable in JSON; render it as a string.
		output, err := json.MarshalIndent(jsonSafe(report), "", "  ")
		if err != nil {
			logger.Fatalf("encode report: %v", err)
		}
		fmt.Println(string(output))
	} else {
		printReport(report)
	}
}

// runFromFixtures loads CSV inputs and executes without persistence.
func runFromFixtures(spec backtest.RunSpec, weightsPath, returnsPath, barsPath string, logger *log.Logger) (*backtest.Result, error) {
	if weightsPath == "" || returnsPath == "" {
		return nil, fmt.Errorf("--weights-csv and --returns-csv are required with --use-memory")
	}

	weights, err := loadWeightsCSV(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("load weights: %w", err)
	}
	returns, err := loadReturnsCSV(returnsPath)
	if err != nil {
		return nil, fmt.Errorf("load returns: %w", err)
	}

	var bars []*domain.PriceBar
	if barsPath != "" {
		bars, err = loadBarsCSV(barsPath)
		if err != nil {
			return nil, fmt.Errorf("load bars: %w", err)
		}
	} else {
		logger.Print("no --bars-csv given, every trade will price off the fallback floors")
	}

	runner := backtest.NewRunner(backtest.Stores{}, logger)
	return runner.RunInMemory(spec, bars, weights, returns)
}

// runFromStores connects both backends, applies migrations and runs
// with full persistence.
func runFromStores(ctx context.Context, spec backtest.RunSpec, postgresDSN, clickhouseDSN string, logger *log.Logger) (*backtest.Result, error) {
	if postgresDSN == "" {
		return nil, fmt.Errorf("--postgres-dsn is required when not using --use-memory")
	}
	if clickhouseDSN == "" {
		return nil, fmt.Errorf("--clickhouse-dsn is required when not using --use-memory")
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	defer conn.Close()

	runner := backtest.NewRunner(backtest.Stores{
		PriceBars:  chstore.NewPriceBarStore(conn),
		Weights:    pgstore.NewTargetWeightStore(pool),
		Returns:    pgstore.NewGrossReturnStore(pool),
		Runs:       pgstore.NewBacktestRunStore(pool),
		TradeCosts: chstore.NewTradeCostStore(conn),
		Summaries:  chstore.NewDailySummaryStore(conn),
		Capacity:   pgstore.NewCapacityResultStore(pool),
	}, logger)

	return runner.Run(ctx, spec)
}

func loadBarsCSV(path string) ([]*domain.PriceBar, error) {
	var bars []*domain.PriceBar
	err := readCSV(path, 4, func(record []string) error {
		bar := &domain.PriceBar{SecurityID: record[0], Date: record[1]}
		if record[2] != "" {
			v, err := strconv.ParseFloat(record[2], 64)
			if err != nil {
				return fmt.Errorf("close %q: %w", record[2], err)
			}
			bar.Close = &v
		}
		if record[3] != "" {
			v, err := strconv.ParseFloat(record[3], 64)
			if err != nil {
				return fmt.Errorf("volume %q: %w", record[3], err)
			}
			bar.Volume = &v
		}
		bars = append(bars, bar)
		return nil
	})
	return bars, err
}

func loadWeightsCSV(path string) ([]*domain.TargetWeight, error) {
	var weights []*domain.TargetWeight
	err := readCSV(path, 3, func(record []string) error {
		w, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return fmt.Errorf("weight %q: %w", record[2], err)
		}
		weights = append(weights, &domain.TargetWeight{
			SecurityID: record[0],
			Date:       record[1],
			Weight:     w,
		})
		return nil
	})
	return weights, err
}

func loadReturnsCSV(path string) ([]*domain.GrossReturn, error) {
	var returns []*domain.GrossReturn
	err := readCSV(path, 2, func(record []string) error {
		r, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return fmt.Errorf("gross_return %q: %w", record[1], err)
		}
		returns = append(returns, &domain.GrossReturn{Date: record[0], Return: r})
		return nil
	})
	return returns, err
}

// readCSV streams a headered CSV file with a fixed field count.
func readCSV(path string, fields int, row func(record []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	// Skip header
	if _, err := r.Read(); err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := row(record); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

// printReport outputs a human-readable run summary.
func printReport(r *reporting.Report) {
	fmt.Println()
	fmt.Println("=== Cost Simulation Result ===")
	fmt.Printf("Run ID:             %s\n", r.Run.RunID)
	fmt.Printf("Short ID:           %s\n", r.Run.ShortID)
	fmt.Printf("Date Range:         %s to %s\n", r.Run.StartDate, r.Run.EndDate)
	fmt.Printf("AUM:                %.2f USD\n", r.Run.AUMUSD)
	fmt.Printf("Trading Days:       %d\n", r.TradingDays)
	fmt.Printf("Trades Priced:      %d\n", r.TradeCount)
	fmt.Println()

	fmt.Println("Costs:")
	fmt.Printf("  Commission:       %.2f USD\n", r.CommissionUSD)
	fmt.Printf("  Spread:           %.2f USD\n", r.SpreadUSD)
	fmt.Printf("  Impact:           %.2f USD\n", r.ImpactUSD)
	fmt.Printf("  Total:            %.2f USD\n", r.TotalCostUSD)
	fmt.Printf("  Avg Daily Drag:   %.4f bps\n", r.AvgDailyCostDragBps)
	fmt.Println()

	fmt.Println("Performance:")
	fmt.Printf("  Gross Return:     %s\n", fmtPct(r.Gross.TotalReturn))
	fmt.Printf("  Net Return:       %s\n", fmtPct(r.Net.TotalReturn))
	fmt.Printf("  Gross Sharpe:     %s\n", fmtF64(r.Gross.Sharpe))
	fmt.Printf("  Net Sharpe:       %s\n", fmtF64(r.Net.Sharpe))
	fmt.Printf("  Net Max Drawdown: %s\n", fmtPct(r.Net.MaxDrawdown))
	fmt.Println()

	fmt.Println("Data Quality:")
	fmt.Printf("  ADV Fallbacks:    %d\n", r.Run.ADVFallbackCount)
	fmt.Printf("  Vol Fallbacks:    %d\n", r.Run.VolFallbackCount)
	fmt.Printf("  Clamps:           %d\n", r.Run.ClampCount)
	fmt.Println()

	if r.Capacity != nil {
		c := r.Capacity
		fmt.Println("Capacity:")
		fmt.Printf("  Breakeven Status: %s\n", c.BreakevenStatus)
		fmt.Printf("  Binding:          %s\n", c.BindingConstraint)
		if c.ImpliedCapacityUSD != nil {
			fmt.Printf("  Implied Capacity: %.2f USD\n", *c.ImpliedCapacityUSD)
		} else {
			fmt.Println("  Implied Capacity: unavailable")
		}
	}
}

// jsonSafe rewraps the report so every float is JSON-encodable. Only
// capacity fields can be non-finite.
func jsonSafe(r *reporting.Report) map[string]any {
	out := map[string]any{
		"generated_at":            r.GeneratedAt,
		"run":                     r.Run,
		"trading_days":            r.TradingDays,
		"trade_count":             r.TradeCount,
		"commission_usd":          r.CommissionUSD,
		"spread_usd":              r.SpreadUSD,
		"impact_usd":              r.ImpactUSD,
		"total_cost_usd":          r.TotalCostUSD,
		"avg_daily_cost_drag_bps": r.AvgDailyCostDragBps,
		"gross":                   r.Gross,
		"net":                     r.Net,
	}
	if r.Capacity != nil {
		c := r.Capacity
		out["capacity"] = map[string]any{
			"run_id":                          c.RunID,
			"avg_daily_turnover":              c.AvgDailyTurnover,
			"portfolio_adv":                   c.PortfolioADV,
			"portfolio_sigma":                 c.PortfolioSigma,
			"gross_alpha_annualized":          c.GrossAlphaAnnualized,
			"capacity_at_impact_limit":        jsonFloat(c.CapacityAtImpactLimit),
			"capacity_at_participation_limit": jsonFloat(c.CapacityAtParticipationLimit),
			"capacity_at_breakeven":           jsonFloat(c.CapacityAtBreakeven),
			"breakeven_status":                c.BreakevenStatus,
			"implied_capacity_usd":            jsonFloat(c.ImpliedCapacityUSD),
			"binding_constraint":              c.BindingConstraint,
		}
	}
	return out
}

func jsonFloat(v *float64) any {
	if v == nil {
		return nil
	}
	if math.IsInf(*v, 1) {
		return "unconstrained"
	}
	return *v
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

func fmtF64(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}
