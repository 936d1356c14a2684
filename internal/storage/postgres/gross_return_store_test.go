package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"costlab/internal/domain"
	"costlab/internal/storage"
	"costlab/internal/storage/postgres"
)

func TestGrossReturnStore_InsertBulkAndGetByDateRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewGrossReturnStore(pool)

	returns := []*domain.GrossReturn{
		{Date: "2024-01-04", Return: -0.002},
		{Date: "2024-01-02", Return: 0.001},
		{Date: "2024-01-03", Return: 0.0035},
	}

	require.NoError(t, store.InsertBulk(ctx, returns))

	result, err := store.GetByDateRange(ctx, "2024-01-02", "2024-01-03")
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "2024-01-02", result[0].Date)
	assert.InDelta(t, 0.001, result[0].Return, 1e-12)
	assert.Equal(t, "2024-01-03", result[1].Date)
	assert.InDelta(t, 0.0035, result[1].Return, 1e-12)
}

func TestGrossReturnStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewGrossReturnStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.GrossReturn{
		{Date: "2024-01-02", Return: 0.001},
	}))

	err := store.InsertBulk(ctx, []*domain.GrossReturn{
		{Date: "2024-01-03", Return: 0.002},
		{Date: "2024-01-02", Return: 0.003},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	result, err := store.GetByDateRange(ctx, "2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestGrossReturnStore_EmptyRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := postgres.NewGrossReturnStore(pool)

	result, err := store.GetByDateRange(ctx, "2030-01-01", "2030-12-31")
	require.NoError(t, err)
	assert.Empty(t, result)
}
