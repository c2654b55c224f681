package memory

import (
	"context"
	"errors"
	"testing"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/storage"
)

func TestLockStore_UpsertAndGet(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	lock := &domain.LockState{Account: "acct1", Amount: 500, End: 2000, UpdatedAt: 100}
	if err := store.Upsert(ctx, lock); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByAccount(ctx, "acct1")
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if got.Amount != 500 || got.End != 2000 {
		t.Errorf("lock mismatch: got %+v", got)
	}

	// Upsert replaces the existing row.
	lock.Amount = 700
	lock.UpdatedAt = 200
	if err := store.Upsert(ctx, lock); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = store.GetByAccount(ctx, "acct1")
	if err != nil {
		t.Fatalf("GetByAccount failed: %v", err)
	}
	if got.Amount != 700 || got.UpdatedAt != 200 {
		t.Errorf("replaced lock mismatch: got %+v", got)
	}
}

func TestLockStore_NotFound(t *testing.T) {
	store := NewLockStore()

	_, err := store.GetByAccount(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLockStore_InvalidInput(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil lock: got %v", err)
	}
	if err := store.Upsert(ctx, &domain.LockState{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty account: got %v", err)
	}
}

func TestLockStore_GetAllOrdered(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	for _, acct := range []string{"charlie", "alice", "bob"} {
		if err := store.Upsert(ctx, &domain.LockState{Account: acct, Amount: 1, End: 100}); err != nil {
			t.Fatalf("Upsert %s failed: %v", acct, err)
		}
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("GetAll returned %d locks, want 3", len(all))
	}
	want := []string{"alice", "bob", "charlie"}
	for i, l := range all {
		if l.Account != want[i] {
			t.Errorf("position %d: got %s, want %s", i, l.Account, want[i])
		}
	}
}

func TestLockStore_GetExpiring(t *testing.T) {
	store := NewLockStore()
	ctx := context.Background()

	locks := []*domain.LockState{
		{Account: "a", Amount: 10, End: 1000},
		{Account: "b", Amount: 10, End: 2000},
		{Account: "c", Amount: 10, End: 3000},
		{Account: "d", Amount: 0, End: 1500}, // cleared, never expiring
	}
	for _, l := range locks {
		if err := store.Upsert(ctx, l); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := store.GetExpiring(ctx, 1000, 2000)
	if err != nil {
		t.Fatalf("GetExpiring failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("GetExpiring returned %d locks, want 2", len(got))
	}
	if got[0].Account != "a" || got[1].Account != "b" {
		t.Errorf("unexpected order: %s, %s", got[0].Account, got[1].Account)
	}
}
