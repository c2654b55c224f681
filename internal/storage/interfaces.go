package storage

import (
	"context"

	"vote-escrow-ledger/internal/domain"
)

// LockStore provides access to per-account lock state.
type LockStore interface {
	// Upsert writes the current lock for an account, replacing any prior row.
	// An Amount of zero clears the lock but keeps the row for audit.
	Upsert(ctx context.Context, l *domain.LockState) error

	// GetByAccount retrieves the lock for an account. Returns ErrNotFound if not exists.
	GetByAccount(ctx context.Context, account string) (*domain.LockState, error)

	// GetAll retrieves every stored lock, ordered by account ASC.
	GetAll(ctx context.Context) ([]*domain.LockState, error)

	// GetExpiring retrieves locks with End within [start, end] (inclusive),
	// ordered by End ASC.
	GetExpiring(ctx context.Context, start, end int64) ([]*domain.LockState, error)
}

// SlopeChangeStore provides access to the scheduled slope-delta table.
type SlopeChangeStore interface {
	// Upsert writes the pending slope delta for a week boundary.
	Upsert(ctx context.Context, c *domain.SlopeChange) error

	// GetByTimeRange retrieves entries with Ts within [start, end] (inclusive),
	// ordered by Ts ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SlopeChange, error)

	// GetAll retrieves every entry, ordered by Ts ASC.
	GetAll(ctx context.Context) ([]*domain.SlopeChange, error)
}

// GlobalPointStore provides access to aggregate curve history.
type GlobalPointStore interface {
	// InsertBulk appends multiple points. Fails entire batch on duplicate epoch.
	InsertBulk(ctx context.Context, points []*domain.GlobalPoint) error

	// GetByEpoch retrieves one point. Returns ErrNotFound if not exists.
	GetByEpoch(ctx context.Context, epoch uint64) (*domain.GlobalPoint, error)

	// GetLatest retrieves the highest-epoch point. Returns ErrNotFound when empty.
	GetLatest(ctx context.Context) (*domain.GlobalPoint, error)

	// GetByTimeRange retrieves points with Ts within [start, end] (inclusive),
	// ordered by epoch ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.GlobalPoint, error)

	// GetAll retrieves the full history, ordered by epoch ASC.
	GetAll(ctx context.Context) ([]*domain.GlobalPoint, error)
}

// AccountPointStore provides access to per-account curve history.
type AccountPointStore interface {
	// InsertBulk appends multiple points. Fails entire batch on duplicate (account, index).
	InsertBulk(ctx context.Context, points []*domain.AccountPoint) error

	// GetByAccount retrieves all points for an account, ordered by index ASC.
	GetByAccount(ctx context.Context, account string) ([]*domain.AccountPoint, error)

	// GetLatestByAccount retrieves the highest-index point for an account.
	// Returns ErrNotFound when the account has no history.
	GetLatestByAccount(ctx context.Context, account string) (*domain.AccountPoint, error)

	// GetAll retrieves the full history, ordered by account ASC then index ASC.
	GetAll(ctx context.Context) ([]*domain.AccountPoint, error)
}

// LockEventStore provides access to the lifecycle event log.
type LockEventStore interface {
	// InsertDeposit appends a deposit event. Returns ErrDuplicateKey if the ID exists.
	InsertDeposit(ctx context.Context, e *domain.DepositEvent) error

	// InsertWithdraw appends a withdraw event. Returns ErrDuplicateKey if the ID exists.
	InsertWithdraw(ctx context.Context, e *domain.WithdrawEvent) error

	// InsertSupply appends a supply change event. Returns ErrDuplicateKey if the ID exists.
	InsertSupply(ctx context.Context, e *domain.SupplyEvent) error

	// GetDepositsByAccount retrieves deposit events for an account, ordered by Ts ASC.
	GetDepositsByAccount(ctx context.Context, account string) ([]*domain.DepositEvent, error)

	// GetWithdrawalsByAccount retrieves withdraw events for an account, ordered by Ts ASC.
	GetWithdrawalsByAccount(ctx context.Context, account string) ([]*domain.WithdrawEvent, error)

	// GetSupplyByTimeRange retrieves supply events with Ts within [start, end]
	// (inclusive), ordered by Ts ASC.
	GetSupplyByTimeRange(ctx context.Context, start, end int64) ([]*domain.SupplyEvent, error)
}
