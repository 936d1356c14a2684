// Package main provides the read-only results server: run listings,
// per-run cost and capacity payloads, CSV downloads, a websocket
// stream of completed-run events and Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"costlab/internal/backtest"
	"costlab/internal/domain"
	"costlab/internal/observability"
	"costlab/internal/reporting"
	"costlab/internal/storage"
	chstore "costlab/internal/storage/clickhouse"
	"costlab/internal/storage/memory"
	"costlab/internal/storage/migrations"
	pgstore "costlab/internal/storage/postgres"
)

// Server serves stored run results over HTTP.
type Server struct {
	stores    backtest.Stores
	runner    *backtest.Runner
	generator *reporting.Generator
	hub       *wsHub
	logger    *log.Logger
	enableRun bool
	started   time.Time
}

func main() {
	loadEnvFile()

	addr := flag.String("addr", ":8080", "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	enableRun := flag.Bool("enable-run", false, "Expose POST /api/run for executing backtests")

	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("create stores: %v", err)
	}
	defer cleanup()

	server := &Server{
		stores:    stores,
		runner:    backtest.NewRunner(stores, logger),
		generator: reporting.NewGenerator(stores.Runs, stores.TradeCosts, stores.Summaries, stores.Capacity),
		hub:       newWSHub(logger),
		logger:    logger,
		enableRun: *enableRun,
		started:   time.Now().UTC(),
	}

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
		cancel()
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores builds the store set for the selected backend mode.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (backtest.Stores, func(), error) {
	if useMemory {
		stores := backtest.Stores{
			PriceBars:  memory.NewPriceBarStore(),
			Weights:    memory.NewTargetWeightStore(),
			Returns:    memory.NewGrossReturnStore(),
			Runs:       memory.NewBacktestRunStore(),
			TradeCosts: memory.NewTradeCostStore(),
			Summaries:  memory.NewDailySummaryStore(),
			Capacity:   memory.NewCapacityResultStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return backtest.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return backtest.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return backtest.Stores{}, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	stores := backtest.Stores{
		PriceBars:  chstore.NewPriceBarStore(conn),
		Weights:    pgstore.NewTargetWeightStore(pool),
		Returns:    pgstore.NewGrossReturnStore(pool),
		Runs:       pgstore.NewBacktestRunStore(pool),
		TradeCosts: chstore.NewTradeCostStore(conn),
		Summaries:  chstore.NewDailySummaryStore(conn),
		Capacity:   pgstore.NewCapacityResultStore(pool),
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/runs/{id}/capacity", s.handleGetCapacity)
	mux.HandleFunc("GET /api/runs/{id}/summary.csv", s.handleSummaryCSV)
	mux.HandleFunc("GET /api/runs/{id}/trades.csv", s.handleTradesCSV)
	mux.HandleFunc("GET /api/runs/{id}/report.md", s.handleReportMD)

	if s.enableRun {
		mux.HandleFunc("POST /api/run", s.handleRun)
	}

	mux.HandleFunc("GET /ws", s.hub.handleWS)

	return mux
}

// resolveRun accepts either a full run id or its base58 short form.
func (s *Server) resolveRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	run, err := s.stores.Runs.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return s.stores.Runs.GetByShortID(ctx, id)
	}
	return run, err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":      "running",
		"uptime":      time.Since(s.started).String(),
		"started_at":  s.started,
		"ws_clients":  s.hub.clientCount(),
		"run_enabled": s.enableRun,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.stores.Runs.List(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	views := make([]map[string]any, len(runs))
	for i, run := range runs {
		views[i] = runView(run)
	}
	writeJSON(w, views)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, runView(run))
}

func (s *Server) handleGetCapacity(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	capResult, err := s.stores.Capacity.GetByRunID(r.Context(), run.RunID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, capacityView(capResult))
}

func (s *Server) handleSummaryCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	summaries, err := s.stores.Summaries.GetByRunID(r.Context(), run.RunID)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(reporting.RenderDailySummariesCSV(summaries)))
}

func (s *Server) handleTradesCSV(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	trades, err := s.stores.TradeCosts.GetByRunID(r.Context(), run.RunID)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Write([]byte(reporting.RenderTradeCostsCSV(trades)))
}

func (s *Server) handleReportMD(w http.ResponseWriter, r *http.Request) {
	run, err := s.resolveRun(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, err)
		return
	}
	report, err := s.generator.Generate(r.Context(), run.RunID)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown")
	w.Write([]byte(reporting.RenderMarkdown(report)))
}

// runRequest is the POST /api/run payload.
type runRequest struct {
	StartDate             string  `json:"start_date"`
	EndDate               string  `json:"end_date"`
	AUMUSD                float64 `json:"aum_usd"`
	SchemaVersion         int     `json:"schema_version"`
	CommissionBps         float64 `json:"commission_bps"`
	MinCommissionUSD      float64 `json:"min_commission_usd"`
	SpreadBps             float64 `json:"spread_bps"`
	ImpactCoefficient     float64 `json:"impact_coefficient"`
	ADVParticipationLimit float64 `json:"adv_participation_limit"`
	MaxImpactBps          float64 `json:"max_impact_bps"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	spec := backtest.RunSpec{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		AUMUSD:    req.AUMUSD,
		Config: domain.CostModelConfig{
			SchemaVersion:         req.SchemaVersion,
			CommissionBps:         req.CommissionBps,
			MinCommissionUSD:      req.MinCommissionUSD,
			SpreadBps:             req.SpreadBps,
			ImpactCoefficient:     req.ImpactCoefficient,
			ADVParticipationLimit: req.ADVParticipationLimit,
			MaxImpactBps:          req.MaxImpactBps,
		},
	}

	result, err := s.runner.Run(r.Context(), spec)
	if err != nil {
		httpError(w, err)
		return
	}

	s.hub.broadcast(map[string]any{
		"event":              "run_completed",
		"run_id":             result.Run.RunID,
		"short_id":           result.Run.ShortID,
		"binding_constraint": result.Capacity.BindingConstraint,
	})

	writeJSON(w, runView(result.Run))
}

func runView(run *domain.BacktestRun) map[string]any {
	return map[string]any{
		"run_id":             run.RunID,
		"short_id":           run.ShortID,
		"created_at":         run.CreatedAt,
		"start_date":         run.StartDate,
		"end_date":           run.EndDate,
		"aum_usd":            run.AUMUSD,
		"status":             run.Status,
		"config":             run.Config,
		"adv_fallback_count": run.ADVFallbackCount,
		"vol_fallback_count": run.VolFallbackCount,
		"clamp_count":        run.ClampCount,
	}
}

// capacityView makes the result JSON-encodable: +Inf capacity becomes
// the string "unconstrained".
func capacityView(c *domain.CapacityResult) map[string]any {
	return map[string]any{
		"run_id":                          c.RunID,
		"avg_daily_turnover":              c.AvgDailyTurnover,
		"portfolio_adv":                   c.PortfolioADV,
		"portfolio_sigma":                 c.PortfolioSigma,
		"gross_alpha_annualized":          c.GrossAlphaAnnualized,
		"capacity_at_impact_limit":        capacityFloat(c.CapacityAtImpactLimit),
		"capacity_at_participation_limit": capacityFloat(c.CapacityAtParticipationLimit),
		"capacity_at_breakeven":           capacityFloat(c.CapacityAtBreakeven),
		"breakeven_status":                c.BreakevenStatus,
		"implied_capacity_usd":            capacityFloat(c.ImpliedCapacityUSD),
		"binding_constraint":              c.BindingConstraint,
	}
}

func capacityFloat(v *float64) any {
	if v == nil {
		return nil
	}
	if math.IsInf(*v, 1) {
		return "unconstrained"
	}
	return *v
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrDuplicateKey):
		http.Error(w, "already exists", http.StatusConflict)
	case errors.Is(err, domain.ErrInvalidConfig):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// wsHub broadcasts run events to connected websocket clients.
type wsHub struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newWSHub(logger *log.Logger) *wsHub {
	return &wsHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

func (h *wsHub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	// Drain reads; the stream is broadcast-only. Exit cleans up on
	// client disconnect.
	go func() {
		defer h.remove(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *wsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

func (h *wsHub) broadcast(event map[string]any) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("websocket encode: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Printf("websocket write: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *wsHub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
