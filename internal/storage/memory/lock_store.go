package memory

import (
	"context"
	"sort"
	"sync"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// LockStore is an in-memory implementation of storage.LockStore.
type LockStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LockState // keyed by account
}

// NewLockStore creates a new in-memory lock store.
func NewLockStore() *LockStore {
	return &LockStore{
		data: make(map[string]*domain.LockState),
	}
}

// Upsert writes the current lock for an account, replacing any prior row.
func (s *LockStore) Upsert(_ context.Context, l *domain.LockState) error {
	if l == nil || l.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *l
	s.data[l.Account] = &copy
	return nil
}

// GetByAccount retrieves the lock for an account. Returns ErrNotFound if not exists.
func (s *LockStore) GetByAccount(_ context.Context, account string) (*domain.LockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.data[account]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copy := *l
	return &copy, nil
}

// GetAll retrieves every stored lock, ordered by account ASC.
func (s *LockStore) GetAll(_ context.Context) ([]*domain.LockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.LockState, 0, len(s.data))
	for _, l := range s.data {
		copy := *l
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Account < result[j].Account
	})

	return result, nil
}

// GetExpiring retrieves locks with End within [start, end] (inclusive), ordered by End ASC.
func (s *LockStore) GetExpiring(_ context.Context, start, end int64) ([]*domain.LockState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LockState
	for _, l := range s.data {
		if l.Amount > 0 && l.End >= start && l.End <= end {
			copy := *l
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].End != result[j].End {
			return result[i].End < result[j].End
		}
		return result[i].Account < result[j].Account
	})

	return result, nil
}

var _ storage.LockStore = (*LockStore)(nil)
