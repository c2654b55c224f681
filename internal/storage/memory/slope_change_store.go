package memory

import (
	"context"
	"sort"
	"sync"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// SlopeChangeStore is an in-memory implementation of storage.SlopeChangeStore.
type SlopeChangeStore struct {
	mu   sync.RWMutex
	data map[int64]int64 // week boundary -> slope delta
}

// NewSlopeChangeStore creates a new in-memory slope change store.
func NewSlopeChangeStore() *SlopeChangeStore {
	return &SlopeChangeStore{
		data: make(map[int64]int64),
	}
}

// Upsert writes the pending slope delta for a week boundary.
func (s *SlopeChangeStore) Upsert(_ context.Context, c *domain.SlopeChange) error {
	if c == nil || c.Ts <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[c.Ts] = c.Delta
	return nil
}

// GetByTimeRange retrieves entries with Ts within [start, end] (inclusive), ordered by Ts ASC.
func (s *SlopeChangeStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.SlopeChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SlopeChange
	for ts, delta := range s.data {
		if ts >= start && ts <= end {
			result = append(result, &domain.SlopeChange{Ts: ts, Delta: delta})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ts < result[j].Ts
	})

	return result, nil
}

// GetAll retrieves every entry, ordered by Ts ASC.
func (s *SlopeChangeStore) GetAll(_ context.Context) ([]*domain.SlopeChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SlopeChange, 0, len(s.data))
	for ts, delta := range s.data {
		result = append(result, &domain.SlopeChange{Ts: ts, Delta: delta})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Ts < result[j].Ts
	})

	return result, nil
}

var _ storage.SlopeChangeStore = (*SlopeChangeStore)(nil)
