package postgres

import (
	"context"
	"fmt"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// SlopeChangeStore implements storage.SlopeChangeStore using PostgreSQL.
type SlopeChangeStore struct {
	pool *Pool
}

// NewSlopeChangeStore creates a new SlopeChangeStore.
func NewSlopeChangeStore(pool *Pool) *SlopeChangeStore {
	return &SlopeChangeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SlopeChangeStore = (*SlopeChangeStore)(nil)

// Upsert writes the pending slope delta for a week boundary.
func (s *SlopeChangeStore) Upsert(ctx context.Context, c *domain.SlopeChange) error {
	if c == nil || c.Ts <= 0 {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO slope_changes (boundary_ts, delta)
		VALUES ($1, $2)
		ON CONFLICT (boundary_ts) DO UPDATE SET delta = EXCLUDED.delta
	`

	if _, err := s.pool.Exec(ctx, query, c.Ts, c.Delta); err != nil {
		return fmt.Errorf("upsert slope change: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves entries with Ts within [start, end] (inclusive), ordered by Ts ASC.
func (s *SlopeChangeStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.SlopeChange, error) {
	query := `
		SELECT boundary_ts, delta
		FROM slope_changes
		WHERE boundary_ts >= $1 AND boundary_ts <= $2
		ORDER BY boundary_ts ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get slope changes by time range: %w", err)
	}
	defer rows.Close()

	var changes []*domain.SlopeChange
	for rows.Next() {
		var c domain.SlopeChange
		if err := rows.Scan(&c.Ts, &c.Delta); err != nil {
			return nil, fmt.Errorf("scan slope change row: %w", err)
		}
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slope change rows: %w", err)
	}

	return changes, nil
}

// GetAll retrieves every entry, ordered by Ts ASC.
func (s *SlopeChangeStore) GetAll(ctx context.Context) ([]*domain.SlopeChange, error) {
	return s.GetByTimeRange(ctx, 0, 1<<62)
}
