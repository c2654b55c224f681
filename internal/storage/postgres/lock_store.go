package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// LockStore implements storage.LockStore using PostgreSQL.
type LockStore struct {
	pool *Pool
}

// NewLockStore creates a new LockStore.
func NewLockStore(pool *Pool) *LockStore {
	return &LockStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LockStore = (*LockStore)(nil)

// Upsert writes the current lock for an account, replacing any prior row.
func (s *LockStore) Upsert(ctx context.Context, l *domain.LockState) error {
	if l == nil || l.Account == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO locks (account, amount, unlock_ts, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account) DO UPDATE SET
			amount = EXCLUDED.amount,
			unlock_ts = EXCLUDED.unlock_ts,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, l.Account, int64(l.Amount), l.End, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert lock: %w", err)
	}
	return nil
}

// GetByAccount retrieves the lock for an account. Returns ErrNotFound if not exists.
func (s *LockStore) GetByAccount(ctx context.Context, account string) (*domain.LockState, error) {
	query := `
		SELECT account, amount, unlock_ts, updated_at
		FROM locks
		WHERE account = $1
	`

	var l domain.LockState
	var amount int64
	err := s.pool.QueryRow(ctx, query, account).Scan(&l.Account, &amount, &l.End, &l.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get lock by account: %w", err)
	}
	l.Amount = uint64(amount)
	return &l, nil
}

// GetAll retrieves every stored lock, ordered by account ASC.
func (s *LockStore) GetAll(ctx context.Context) ([]*domain.LockState, error) {
	query := `
		SELECT account, amount, unlock_ts, updated_at
		FROM locks
		ORDER BY account ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all locks: %w", err)
	}
	defer rows.Close()

	return scanLocks(rows)
}

// GetExpiring retrieves locks with End within [start, end] (inclusive), ordered by End ASC.
func (s *LockStore) GetExpiring(ctx context.Context, start, end int64) ([]*domain.LockState, error) {
	query := `
		SELECT account, amount, unlock_ts, updated_at
		FROM locks
		WHERE amount > 0 AND unlock_ts >= $1 AND unlock_ts <= $2
		ORDER BY unlock_ts ASC, account ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get expiring locks: %w", err)
	}
	defer rows.Close()

	return scanLocks(rows)
}

// scanLocks scans multiple rows into a slice of LockState.
func scanLocks(rows pgx.Rows) ([]*domain.LockState, error) {
	var locks []*domain.LockState

	for rows.Next() {
		var l domain.LockState
		var amount int64

		if err := rows.Scan(&l.Account, &amount, &l.End, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan lock row: %w", err)
		}
		l.Amount = uint64(amount)
		locks = append(locks, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lock rows: %w", err)
	}

	return locks, nil
}
