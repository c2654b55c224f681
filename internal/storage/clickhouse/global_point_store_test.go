package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

func TestGlobalPointStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewGlobalPointStore(conn)

	points := []*domain.GlobalPoint{
		{Epoch: 0, Bias: 0, Slope: 0, Ts: 1000, Marker: 10},
		{Epoch: 1, Bias: 500_000_000, Slope: 2_000, Ts: 2000, Marker: 20},
		{Epoch: 2, Bias: 400_000_000, Slope: 2_000, Ts: 3000, Marker: 30},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByEpoch(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000_000), got.Bias)
	assert.Equal(t, uint64(20), got.Marker)

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Epoch)

	ranged, err := store.GetByTimeRange(ctx, 2000, 3000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, uint64(1), ranged[0].Epoch)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGlobalPointStore_DuplicateEpoch(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewGlobalPointStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.GlobalPoint{{Epoch: 5, Ts: 100}}))

	err := store.InsertBulk(ctx, []*domain.GlobalPoint{{Epoch: 5, Ts: 200}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.GlobalPoint{{Epoch: 6, Ts: 200}, {Epoch: 6, Ts: 300}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestGlobalPointStore_EmptyStore(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewGlobalPointStore(conn)

	_, err := store.GetLatest(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetByEpoch(context.Background(), 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
