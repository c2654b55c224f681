package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

func TestAccountPointStore_InsertBulkAndGet(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountPointStore(conn)

	points := []*domain.AccountPoint{
		{Account: "alice", Index: 1, Bias: 300_000_000, Slope: 1_000, Ts: 1000, Marker: 10},
		{Account: "alice", Index: 2, Bias: 250_000_000, Slope: 1_000, Ts: 2000, Marker: 20},
		{Account: "bob", Index: 1, Bias: 900_000_000, Slope: 3_000, Ts: 1500, Marker: 15},
	}
	require.NoError(t, store.InsertBulk(ctx, points))

	got, err := store.GetByAccount(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Index)
	assert.Equal(t, uint64(2), got[1].Index)

	latest, err := store.GetLatestByAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Index)
	assert.Equal(t, int64(250_000_000), latest.Bias)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alice", all[0].Account)
	assert.Equal(t, "bob", all[2].Account)
}

func TestAccountPointStore_DuplicateIndex(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAccountPointStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.AccountPoint{{Account: "a", Index: 1, Ts: 100}}))

	err := store.InsertBulk(ctx, []*domain.AccountPoint{{Account: "a", Index: 1, Ts: 200}})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same index under a different account is a distinct key.
	require.NoError(t, store.InsertBulk(ctx, []*domain.AccountPoint{{Account: "b", Index: 1, Ts: 100}}))
}

func TestAccountPointStore_UnknownAccount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAccountPointStore(conn)

	got, err := store.GetByAccount(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.GetLatestByAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
