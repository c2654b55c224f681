package memory

import (
	"context"
	"sort"
	"sync"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

// LockEventStore is an in-memory implementation of storage.LockEventStore.
type LockEventStore struct {
	mu        sync.RWMutex
	deposits  map[string]*domain.DepositEvent
	withdraws map[string]*domain.WithdrawEvent
	supply    map[string]*domain.SupplyEvent
}

// NewLockEventStore creates a new in-memory event store.
func NewLockEventStore() *LockEventStore {
	return &LockEventStore{
		deposits:  make(map[string]*domain.DepositEvent),
		withdraws: make(map[string]*domain.WithdrawEvent),
		supply:    make(map[string]*domain.SupplyEvent),
	}
}

// InsertDeposit appends a deposit event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertDeposit(_ context.Context, e *domain.DepositEvent) error {
	if e == nil || e.ID == "" || e.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.deposits[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *e
	s.deposits[e.ID] = &copy
	return nil
}

// InsertWithdraw appends a withdraw event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertWithdraw(_ context.Context, e *domain.WithdrawEvent) error {
	if e == nil || e.ID == "" || e.Account == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.withdraws[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *e
	s.withdraws[e.ID] = &copy
	return nil
}

// InsertSupply appends a supply change event. Returns ErrDuplicateKey if the ID exists.
func (s *LockEventStore) InsertSupply(_ context.Context, e *domain.SupplyEvent) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.supply[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *e
	s.supply[e.ID] = &copy
	return nil
}

// GetDepositsByAccount retrieves deposit events for an account, ordered by Ts ASC.
func (s *LockEventStore) GetDepositsByAccount(_ context.Context, account string) ([]*domain.DepositEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DepositEvent
	for _, e := range s.deposits {
		if e.Account == account {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ts != result[j].Ts {
			return result[i].Ts < result[j].Ts
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetWithdrawalsByAccount retrieves withdraw events for an account, ordered by Ts ASC.
func (s *LockEventStore) GetWithdrawalsByAccount(_ context.Context, account string) ([]*domain.WithdrawEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.WithdrawEvent
	for _, e := range s.withdraws {
		if e.Account == account {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ts != result[j].Ts {
			return result[i].Ts < result[j].Ts
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetSupplyByTimeRange retrieves supply events with Ts within [start, end] (inclusive).
func (s *LockEventStore) GetSupplyByTimeRange(_ context.Context, start, end int64) ([]*domain.SupplyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SupplyEvent
	for _, e := range s.supply {
		if e.Ts >= start && e.Ts <= end {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ts != result[j].Ts {
			return result[i].Ts < result[j].Ts
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

var _ storage.LockEventStore = (*LockEventStore)(nil)
