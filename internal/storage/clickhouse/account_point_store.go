package clickhouse

import (
	"context"
	"fmt"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// AccountPointStore implements storage.AccountPointStore using ClickHouse.
type AccountPointStore struct {
	conn *Conn
}

// NewAccountPointStore creates a new AccountPointStore.
func NewAccountPointStore(conn *Conn) *AccountPointStore {
	return &AccountPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AccountPointStore = (*AccountPointStore)(nil)

// InsertBulk appends multiple points. Fails entire batch on duplicate (account, index).
func (s *AccountPointStore) InsertBulk(ctx context.Context, points []*domain.AccountPoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		account string
		index   uint64
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Account == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.Account, p.Index}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing rows. MergeTree does not
	// enforce uniqueness at insert time.
	for _, p := range points {
		exists, err := s.exists(ctx, p.Account, p.Index)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO account_points (account, idx, bias, slope, ts, marker)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Account, p.Index, p.Bias, p.Slope, p.Ts, p.Marker); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAccount retrieves all points for an account, ordered by index ASC.
func (s *AccountPointStore) GetByAccount(ctx context.Context, account string) ([]*domain.AccountPoint, error) {
	query := `
		SELECT account, idx, bias, slope, ts, marker
		FROM account_points
		WHERE account = ?
		ORDER BY idx ASC
	`

	rows, err := s.conn.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("query by account: %w", err)
	}
	defer rows.Close()

	return scanAccountPoints(rows)
}

// GetLatestByAccount retrieves the highest-index point for an account.
func (s *AccountPointStore) GetLatestByAccount(ctx context.Context, account string) (*domain.AccountPoint, error) {
	query := `
		SELECT account, idx, bias, slope, ts, marker
		FROM account_points
		WHERE account = ?
		ORDER BY idx DESC
		LIMIT 1
	`

	var p domain.AccountPoint
	err := s.conn.QueryRow(ctx, query, account).Scan(&p.Account, &p.Index, &p.Bias, &p.Slope, &p.Ts, &p.Marker)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// GetAll retrieves the full history, ordered by account ASC then index ASC.
func (s *AccountPointStore) GetAll(ctx context.Context) ([]*domain.AccountPoint, error) {
	query := `
		SELECT account, idx, bias, slope, ts, marker
		FROM account_points
		ORDER BY account ASC, idx ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanAccountPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *AccountPointStore) exists(ctx context.Context, account string, index uint64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM account_points WHERE account = ? AND idx = ?`, account, index).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanAccountPoints scans multiple rows.
func scanAccountPoints(rows chRows) ([]*domain.AccountPoint, error) {
	var points []*domain.AccountPoint

	for rows.Next() {
		var p domain.AccountPoint
		if err := rows.Scan(&p.Account, &p.Index, &p.Bias, &p.Slope, &p.Ts, &p.Marker); err != nil {
			return nil, fmt.Errorf("scan account point row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account point rows: %w", err)
	}

	return points, nil
}
