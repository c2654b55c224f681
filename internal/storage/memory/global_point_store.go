package memory

import (
	"context"
	"sort"
	"sync"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// GlobalPointStore is an in-memory implementation of storage.GlobalPointStore.
type GlobalPointStore struct {
	mu   sync.RWMutex
	data map[uint64]*domain.GlobalPoint // keyed by epoch
}

// NewGlobalPointStore creates a new in-memory global point store.
func NewGlobalPointStore() *GlobalPointStore {
	return &GlobalPointStore{
		data: make(map[uint64]*domain.GlobalPoint),
	}
}

// InsertBulk appends multiple points. Fails entire batch on duplicate epoch.
func (s *GlobalPointStore) InsertBulk(_ context.Context, points []*domain.GlobalPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[uint64]struct{}, len(points))
	for _, p := range points {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.Epoch]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.Epoch]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.Epoch] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[p.Epoch] = &copy
	}

	return nil
}

// GetByEpoch retrieves one point. Returns ErrNotFound if not exists.
func (s *GlobalPointStore) GetByEpoch(_ context.Context, epoch uint64) (*domain.GlobalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[epoch]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// GetLatest retrieves the highest-epoch point. Returns ErrNotFound when empty.
func (s *GlobalPointStore) GetLatest(_ context.Context) (*domain.GlobalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.GlobalPoint
	for _, p := range s.data {
		if latest == nil || p.Epoch > latest.Epoch {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

// GetByTimeRange retrieves points with Ts within [start, end] (inclusive), ordered by epoch ASC.
func (s *GlobalPointStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.GlobalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GlobalPoint
	for _, p := range s.data {
		if p.Ts >= start && p.Ts <= end {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Epoch < result[j].Epoch
	})

	return result, nil
}

// GetAll retrieves the full history, ordered by epoch ASC.
func (s *GlobalPointStore) GetAll(_ context.Context) ([]*domain.GlobalPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.GlobalPoint, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Epoch < result[j].Epoch
	})

	return result, nil
}

var _ storage.GlobalPointStore = (*GlobalPointStore)(nil)
