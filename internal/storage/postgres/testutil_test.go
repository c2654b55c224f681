package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the schema.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema creates the ledger tables. Mirrors the embedded migrations,
// inlined here so the test does not import the migrations package (which
// imports this one).
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := `
		CREATE TABLE IF NOT EXISTS locks (
			account TEXT PRIMARY KEY,
			amount BIGINT NOT NULL,
			unlock_ts BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS slope_changes (
			boundary_ts BIGINT PRIMARY KEY,
			delta BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS deposit_events (
			id TEXT PRIMARY KEY,
			account TEXT NOT NULL,
			payer TEXT NOT NULL,
			amount BIGINT NOT NULL,
			unlock_ts BIGINT NOT NULL,
			kind TEXT NOT NULL,
			ts BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS withdraw_events (
			id TEXT PRIMARY KEY,
			account TEXT NOT NULL,
			amount BIGINT NOT NULL,
			ts BIGINT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS supply_events (
			id TEXT PRIMARY KEY,
			prev_supply BIGINT NOT NULL,
			supply BIGINT NOT NULL,
			ts BIGINT NOT NULL
		);
	`

	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err, "failed to apply schema")
}
