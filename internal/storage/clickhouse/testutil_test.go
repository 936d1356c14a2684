package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a ClickHouse container and returns a connection.
// Returns a cleanup function that must be called when done.
func setupTestDB(t *testing.T) (*Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := NewConn(ctx, dsn)
	require.NoError(t, err)

	createTestTables(t, conn)

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}

	return conn, cleanup
}

// createTestTables applies the timeseries schema. Kept in sync with
// the embedded migrations, which live in a package that imports this
// one and so cannot be used here.
func createTestTables(t *testing.T, conn *Conn) {
	t.Helper()
	ctx := context.Background()

	err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_bars (
			security_id String,
			date        String,
			close       Nullable(Float64),
			volume      Nullable(Float64)
		) ENGINE = MergeTree()
		ORDER BY (security_id, date)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trade_costs (
			run_id            String,
			security_id       String,
			date              String,
			weight_change     Float64,
			trade_value_usd   Float64,
			commission_usd    Float64,
			spread_usd        Float64,
			impact_usd        Float64,
			total_cost_usd    Float64,
			adv_usd_used      Float64,
			volatility_used   Float64,
			participation_pct Float64,
			used_adv_fallback Bool,
			used_vol_fallback Bool
		) ENGINE = MergeTree()
		ORDER BY (run_id, date, security_id)
	`)
	require.NoError(t, err)

	err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS daily_cost_summaries (
			run_id         String,
			date           String,
			gross_return   Float64,
			commission_usd Float64,
			spread_usd     Float64,
			impact_usd     Float64,
			total_cost_usd Float64,
			cost_drag      Float64,
			net_return     Float64,
			turnover       Float64,
			clamped        Bool
		) ENGINE = MergeTree()
		ORDER BY (run_id, date)
	`)
	require.NoError(t, err)
}

// ptr is a helper to create pointers for test values
func ptr[T any](v T) *T {
	return &v
}
