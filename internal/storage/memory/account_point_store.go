package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// AccountPointStore is an in-memory implementation of storage.AccountPointStore.
type AccountPointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.AccountPoint // keyed by account|index
}

// NewAccountPointStore creates a new in-memory account point store.
func NewAccountPointStore() *AccountPointStore {
	return &AccountPointStore{
		data: make(map[string]*domain.AccountPoint),
	}
}

func accountPointKey(account string, index uint64) string {
	return fmt.Sprintf("%s|%d", account, index)
}

// InsertBulk appends multiple points. Fails entire batch on duplicate (account, index).
func (s *AccountPointStore) InsertBulk(_ context.Context, points []*domain.AccountPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Account == "" {
			return storage.ErrInvalidInput
		}
		key := accountPointKey(p.Account, p.Index)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range points {
		copy := *p
		s.data[accountPointKey(p.Account, p.Index)] = &copy
	}

	return nil
}

// GetByAccount retrieves all points for an account, ordered by index ASC.
func (s *AccountPointStore) GetByAccount(_ context.Context, account string) ([]*domain.AccountPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AccountPoint
	for _, p := range s.data {
		if p.Account == account {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})

	return result, nil
}

// GetLatestByAccount retrieves the highest-index point for an account.
func (s *AccountPointStore) GetLatestByAccount(_ context.Context, account string) (*domain.AccountPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.AccountPoint
	for _, p := range s.data {
		if p.Account == account && (latest == nil || p.Index > latest.Index) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

// GetAll retrieves the full history, ordered by account ASC then index ASC.
func (s *AccountPointStore) GetAll(_ context.Context) ([]*domain.AccountPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AccountPoint, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Account != result[j].Account {
			return result[i].Account < result[j].Account
		}
		return result[i].Index < result[j].Index
	})

	return result, nil
}

var _ storage.AccountPointStore = (*AccountPointStore)(nil)
