package clickhouse

import (
	"context"
	"fmt"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// GlobalPointStore implements storage.GlobalPointStore using ClickHouse.
type GlobalPointStore struct {
	conn *Conn
}

// NewGlobalPointStore creates a new GlobalPointStore.
func NewGlobalPointStore(conn *Conn) *GlobalPointStore {
	return &GlobalPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.GlobalPointStore = (*GlobalPointStore)(nil)

// InsertBulk appends multiple points. Fails entire batch on duplicate epoch.
func (s *GlobalPointStore) InsertBulk(ctx context.Context, points []*domain.GlobalPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[uint64]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.Epoch]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.Epoch] = struct{}{}
	}

	// Check for duplicates against existing rows. MergeTree does not
	// enforce uniqueness at insert time.
	for _, p := range points {
		exists, err := s.exists(ctx, p.Epoch)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO global_points (epoch, bias, slope, ts, marker)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Epoch, p.Bias, p.Slope, p.Ts, p.Marker); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEpoch retrieves one point. Returns ErrNotFound if not exists.
func (s *GlobalPointStore) GetByEpoch(ctx context.Context, epoch uint64) (*domain.GlobalPoint, error) {
	query := `
		SELECT epoch, bias, slope, ts, marker
		FROM global_points
		WHERE epoch = ?
		LIMIT 1
	`

	var p domain.GlobalPoint
	err := s.conn.QueryRow(ctx, query, epoch).Scan(&p.Epoch, &p.Bias, &p.Slope, &p.Ts, &p.Marker)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// GetLatest retrieves the highest-epoch point. Returns ErrNotFound when empty.
func (s *GlobalPointStore) GetLatest(ctx context.Context) (*domain.GlobalPoint, error) {
	query := `
		SELECT epoch, bias, slope, ts, marker
		FROM global_points
		ORDER BY epoch DESC
		LIMIT 1
	`

	var p domain.GlobalPoint
	err := s.conn.QueryRow(ctx, query).Scan(&p.Epoch, &p.Bias, &p.Slope, &p.Ts, &p.Marker)
	if err != nil {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// GetByTimeRange retrieves points with Ts within [start, end] (inclusive), ordered by epoch ASC.
func (s *GlobalPointStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.GlobalPoint, error) {
	query := `
		SELECT epoch, bias, slope, ts, marker
		FROM global_points
		WHERE ts >= ? AND ts <= ?
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanGlobalPoints(rows)
}

// GetAll retrieves the full history, ordered by epoch ASC.
func (s *GlobalPointStore) GetAll(ctx context.Context) ([]*domain.GlobalPoint, error) {
	query := `
		SELECT epoch, bias, slope, ts, marker
		FROM global_points
		ORDER BY epoch ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}
	defer rows.Close()

	return scanGlobalPoints(rows)
}

// exists checks if a point with the given epoch exists.
func (s *GlobalPointStore) exists(ctx context.Context, epoch uint64) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM global_points WHERE epoch = ?`, epoch).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanGlobalPoints scans multiple rows.
func scanGlobalPoints(rows chRows) ([]*domain.GlobalPoint, error) {
	var points []*domain.GlobalPoint

	for rows.Next() {
		var p domain.GlobalPoint
		if err := rows.Scan(&p.Epoch, &p.Bias, &p.Slope, &p.Ts, &p.Marker); err != nil {
			return nil, fmt.Errorf("scan global point row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate global point rows: %w", err)
	}

	return points, nil
}
