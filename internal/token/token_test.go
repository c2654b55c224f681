package token

import (
	"context"
	"errors"
	"testing"
)

func TestMintTransferBalance(t *testing.T) {
	l := NewLedger()
	if err := l.Mint("alice", 1000); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := l.Transfer("alice", "bob", 400); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := l.BalanceOf("alice"); got != 600 {
		t.Errorf("alice = %d, want 600", got)
	}
	if got := l.BalanceOf("bob"); got != 400 {
		t.Errorf("bob = %d, want 400", got)
	}
	if got := l.TotalSupply(); got != 1000 {
		t.Errorf("total = %d, want 1000", got)
	}
}

func TestTransfer_InsufficientBalance(t *testing.T) {
	l := NewLedger()
	if err := l.Transfer("alice", "bob", 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestTransferFrom_ConsumesAllowance(t *testing.T) {
	l := NewLedger()
	if err := l.Mint("alice", 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := l.TransferFrom("vault", "alice", "vault", 50); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("no allowance: %v", err)
	}

	l.Approve("alice", "vault", 60)
	if err := l.TransferFrom("vault", "alice", "vault", 50); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := l.Allowance("alice", "vault"); got != 10 {
		t.Errorf("allowance = %d, want 10", got)
	}
	if err := l.TransferFrom("vault", "alice", "vault", 20); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("exhausted allowance: %v", err)
	}
}

func TestEscrowMover_RoundTrip(t *testing.T) {
	l := NewLedger()
	if err := l.Mint("alice", 500); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	mover := NewEscrowMover(l, "vault")
	ctx := context.Background()

	if err := mover.MoveIn(ctx, "alice", 200); !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("unapproved move-in: %v", err)
	}

	l.Approve("alice", "vault", 200)
	if err := mover.MoveIn(ctx, "alice", 200); err != nil {
		t.Fatalf("MoveIn: %v", err)
	}
	if got := l.BalanceOf("vault"); got != 200 {
		t.Errorf("vault = %d, want 200", got)
	}

	if err := mover.MoveOut(ctx, "alice", 200); err != nil {
		t.Fatalf("MoveOut: %v", err)
	}
	if got := l.BalanceOf("alice"); got != 500 {
		t.Errorf("alice = %d, want full 500 back", got)
	}
	if got := l.BalanceOf("vault"); got != 0 {
		t.Errorf("vault = %d, want 0", got)
	}
}
