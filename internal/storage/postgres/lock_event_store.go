package postgres

import (
	"context"
	"fmt"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// LockEventStore implements storage.LockEventStore using PostgreSQL.
type LockEventStore struct {
	pool *Pool
}

// NewLockEventStore creates a new LockEventStore.
func NewLockEventStore(pool *Pool) *LockEventStore {
	return &LockEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LockEventStore = (*LockEventStore)(nil)

// InsertDeposit appends a deposit event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertDeposit(ctx context.Context, e *domain.DepositEvent) error {
	if e == nil || e.ID == "" || e.Account == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO deposit_events (id, account, payer, amount, unlock_ts, kind, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query, e.ID, e.Account, e.Payer, int64(e.Amount), e.End, string(e.Kind), e.Ts)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert deposit event: %w", err)
	}
	return nil
}

// InsertWithdraw appends a withdraw event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertWithdraw(ctx context.Context, e *domain.WithdrawEvent) error {
	if e == nil || e.ID == "" || e.Account == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO withdraw_events (id, account, amount, ts)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, e.ID, e.Account, int64(e.Amount), e.Ts)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert withdraw event: %w", err)
	}
	return nil
}

// InsertSupply appends a supply change event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertSupply(ctx context.Context, e *domain.SupplyEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO supply_events (id, prev_supply, supply, ts)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.pool.Exec(ctx, query, e.ID, int64(e.PrevSupply), int64(e.Supply), e.Ts)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert supply event: %w", err)
	}
	return nil
}

// GetDepositsByAccount retrieves deposit events for an account, ordered by Ts ASC.
func (s *LockEventStore) GetDepositsByAccount(ctx context.Context, account string) ([]*domain.DepositEvent, error) {
	query := `
		SELECT id, account, payer, amount, unlock_ts, kind, ts
		FROM deposit_events
		WHERE account = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("get deposits by account: %w", err)
	}
	defer rows.Close()

	var events []*domain.DepositEvent
	for rows.Next() {
		var e domain.DepositEvent
		var amount int64
		var kind string

		if err := rows.Scan(&e.ID, &e.Account, &e.Payer, &amount, &e.End, &kind, &e.Ts); err != nil {
			return nil, fmt.Errorf("scan deposit event row: %w", err)
		}
		e.Amount = uint64(amount)
		e.Kind = domain.DepositKind(kind)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deposit event rows: %w", err)
	}

	return events, nil
}

// GetWithdrawalsByAccount retrieves withdraw events for an account, ordered by Ts ASC.
func (s *LockEventStore) GetWithdrawalsByAccount(ctx context.Context, account string) ([]*domain.WithdrawEvent, error) {
	query := `
		SELECT id, account, amount, ts
		FROM withdraw_events
		WHERE account = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("get withdrawals by account: %w", err)
	}
	defer rows.Close()

	var events []*domain.WithdrawEvent
	for rows.Next() {
		var e domain.WithdrawEvent
		var amount int64

		if err := rows.Scan(&e.ID, &e.Account, &amount, &e.Ts); err != nil {
			return nil, fmt.Errorf("scan withdraw event row: %w", err)
		}
		e.Amount = uint64(amount)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdraw event rows: %w", err)
	}

	return events, nil
}

// GetSupplyByTimeRange retrieves supply events with Ts within [start, end] (inclusive).
func (s *LockEventStore) GetSupplyByTimeRange(ctx context.Context, start, end int64) ([]*domain.SupplyEvent, error) {
	query := `
		SELECT id, prev_supply, supply, ts
		FROM supply_events
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get supply events by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.SupplyEvent
	for rows.Next() {
		var e domain.SupplyEvent
		var prev, supply int64

		if err := rows.Scan(&e.ID, &prev, &supply, &e.Ts); err != nil {
			return nil, fmt.Errorf("scan supply event row: %w", err)
		}
		e.PrevSupply = uint64(prev)
		e.Supply = uint64(supply)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate supply event rows: %w", err)
	}

	return events, nil
}
