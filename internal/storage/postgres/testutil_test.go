package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"costlab/internal/domain"
	"costlab/internal/storage/migrations"
	"costlab/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// the embedded migrations. Returns a cleanup function that must be
// called after tests complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	err = migrations.RunPostgresMigrations(ctx, pool)
	require.NoError(t, err, "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}

func testConfig() domain.CostModelConfig {
	return domain.CostModelConfig{
		SchemaVersion:         1,
		CommissionBps:         0.5,
		MinCommissionUSD:      1.0,
		SpreadBps:             5.0,
		ImpactCoefficient:     0.1,
		ADVParticipationLimit: 0.05,
		MaxImpactBps:          20.0,
	}
}

func createTestRun(runID, shortID string, createdAt int64) *domain.BacktestRun {
	return &domain.BacktestRun{
		RunID:            runID,
		ShortID:          shortID,
		CreatedAt:        createdAt,
		StartDate:        "2024-01-02",
		EndDate:          "2024-06-28",
		AUMUSD:           10_000_000,
		Config:           testConfig(),
		Status:           domain.RunStatusCompleted,
		ADVFallbackCount: 3,
		VolFallbackCount: 1,
		ClampCount:       0,
	}
}
