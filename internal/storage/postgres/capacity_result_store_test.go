package postgres_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costlab/internal/domain"
	"costlab/internal/storage"
	"costlab/internal/storage/postgres"
)

func insertRunForCapacity(t *testing.T, ctx context.Context, pool *postgres.Pool, runID string) {
	t.Helper()
	runs := postgres.NewBacktestRunStore(pool)
	require.NoError(t, runs.Insert(ctx, createTestRun(runID, "short-"+runID, 1700000000000)))
}

func TestCapacityResultStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertRunForCapacity(t, ctx, pool, "cap-run-1")

	store := postgres.NewCapacityResultStore(pool)

	result := &domain.CapacityResult{
		RunID:                        "cap-run-1",
		AvgDailyTurnover:             0.05,
		PortfolioADV:                 ptr(50_000_000.0),
		PortfolioSigma:               ptr(0.02),
		GrossAlphaAnnualized:         0.10,
		CapacityAtImpactLimit:        ptr(4e11),
		CapacityAtParticipationLimit: ptr(5e7),
		CapacityAtBreakeven:          ptr(1.3e10),
		BreakevenStatus:              domain.BreakevenOK,
		ImpliedCapacityUSD:           ptr(5e7),
		BindingConstraint:            domain.ConstraintParticipationLimit,
	}

	require.NoError(t, store.Insert(ctx, result))

	retrieved, err := store.GetByRunID(ctx, "cap-run-1")
	require.NoError(t, err)

	assert.Equal(t, result.RunID, retrieved.RunID)
	assert.InDelta(t, result.AvgDailyTurnover, retrieved.AvgDailyTurnover, 1e-12)
	require.NotNil(t, retrieved.PortfolioADV)
	assert.InDelta(t, *result.PortfolioADV, *retrieved.PortfolioADV, 0.01)
	require.NotNil(t, retrieved.PortfolioSigma)
	assert.InDelta(t, *result.PortfolioSigma, *retrieved.PortfolioSigma, 1e-12)
	require.NotNil(t, retrieved.CapacityAtImpactLimit)
	assert.InDelta(t, *result.CapacityAtImpactLimit, *retrieved.CapacityAtImpactLimit, 1.0)
	require.NotNil(t, retrieved.ImpliedCapacityUSD)
	assert.InDelta(t, *result.ImpliedCapacityUSD, *retrieved.ImpliedCapacityUSD, 0.01)
	assert.Equal(t, domain.BreakevenOK, retrieved.BreakevenStatus)
	assert.Equal(t, domain.ConstraintParticipationLimit, retrieved.BindingConstraint)
}

func TestCapacityResultStore_NilFieldsRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertRunForCapacity(t, ctx, pool, "cap-run-nil")

	store := postgres.NewCapacityResultStore(pool)

	result := &domain.CapacityResult{
		RunID:                "cap-run-nil",
		AvgDailyTurnover:     0.05,
		GrossAlphaAnnualized: 0.10,
		BreakevenStatus:      domain.BreakevenADVUnavailable,
		BindingConstraint:    domain.ConstraintAllUnavailable,
	}

	require.NoError(t, store.Insert(ctx, result))

	retrieved, err := store.GetByRunID(ctx, "cap-run-nil")
	require.NoError(t, err)

	assert.Nil(t, retrieved.PortfolioADV)
	assert.Nil(t, retrieved.PortfolioSigma)
	assert.Nil(t, retrieved.CapacityAtImpactLimit)
	assert.Nil(t, retrieved.CapacityAtParticipationLimit)
	assert.Nil(t, retrieved.CapacityAtBreakeven)
	assert.Nil(t, retrieved.ImpliedCapacityUSD)
}

func TestCapacityResultStore_InfinityRoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertRunForCapacity(t, ctx, pool, "cap-run-inf")

	store := postgres.NewCapacityResultStore(pool)

	result := &domain.CapacityResult{
		RunID:                "cap-run-inf",
		AvgDailyTurnover:     0,
		GrossAlphaAnnualized: 0.10,
		BreakevenStatus:      domain.BreakevenOK,
		ImpliedCapacityUSD:   ptr(math.Inf(1)),
		BindingConstraint:    domain.ConstraintNone,
	}

	require.NoError(t, store.Insert(ctx, result))

	retrieved, err := store.GetByRunID(ctx, "cap-run-inf")
	require.NoError(t, err)

	require.NotNil(t, retrieved.ImpliedCapacityUSD)
	assert.True(t, math.IsInf(*retrieved.ImpliedCapacityUSD, 1))
}

func TestCapacityResultStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	insertRunForCapacity(t, ctx, pool, "cap-run-dup")

	store := postgres.NewCapacityResultStore(pool)

	result := &domain.CapacityResult{
		RunID:                "cap-run-dup",
		AvgDailyTurnover:     0.05,
		GrossAlphaAnnualized: 0.10,
		BreakevenStatus:      domain.BreakevenOK,
		BindingConstraint:    domain.ConstraintNone,
	}

	require.NoError(t, store.Insert(ctx, result))
	assert.ErrorIs(t, store.Insert(ctx, result), storage.ErrDuplicateKey)
}

func TestCapacityResultStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewCapacityResultStore(pool)

	_, err := store.GetByRunID(ctx, "nonexistent-run")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
