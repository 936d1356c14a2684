// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Cost engine metrics
	TradesCosted       prometheus.Counter
	ClampsApplied      prometheus.Counter
	LiquidityFallbacks *prometheus.CounterVec

	// Capacity solver metrics
	BreakevenIterations prometheus.Histogram
	BreakevenOutcomes   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Reporting metrics
	ReportsGenerated prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "costlab"
	}

	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),

		TradesCosted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cost_engine",
			Name:      "trades_costed_total",
			Help:      "Total number of trades priced by the cost engine",
		}),
		ClampsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cost_engine",
			Name:      "clamps_applied_total",
			Help:      "Total number of net returns clamped at the floor",
		}),
		LiquidityFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liquidity",
			Name:      "fallbacks_total",
			Help:      "Total number of liquidity fallback substitutions by kind",
		}, []string{"kind"}),

		BreakevenIterations: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "breakeven_iterations",
			Help:      "Binary search iterations per breakeven solve",
			Buckets:   []float64{5, 10, 15, 20, 25, 30, 40, 50},
		}),
		BreakevenOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "capacity",
			Name:      "breakeven_outcomes_total",
			Help:      "Total number of breakeven solves by status",
		}, []string{"status"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reporting",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a completed or failed backtest run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordTradesCosted adds to the trades costed counter.
func RecordTradesCosted(n int) {
	DefaultMetrics.TradesCosted.Add(float64(n))
}

// RecordClamps adds to the clamp counter.
func RecordClamps(n int) {
	DefaultMetrics.ClampsApplied.Add(float64(n))
}

// RecordFallbacks adds to the liquidity fallback counters.
func RecordFallbacks(advCount, volCount int) {
	DefaultMetrics.LiquidityFallbacks.WithLabelValues("adv").Add(float64(advCount))
	DefaultMetrics.LiquidityFallbacks.WithLabelValues("volatility").Add(float64(volCount))
}

// RecordBreakeven records the outcome of one breakeven solve.
func RecordBreakeven(status string, iterations int) {
	DefaultMetrics.BreakevenOutcomes.WithLabelValues(status).Inc()
	DefaultMetrics.BreakevenIterations.Observe(float64(iterations))
}

// RecordReportGenerated increments the reports generated counter.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
