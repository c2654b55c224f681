// Package token is a minimal in-memory fungible balance/allowance ledger
// and the asset-mover adapter the escrow ledger locks tokens through.
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Ledger errors.
var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrOverflow              = errors.New("token: balance overflow")
)

// Ledger tracks balances and allowances for a single token.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[string]uint64
	allowances map[string]map[string]uint64 // owner -> spender -> amount
	total      uint64
}

// NewLedger creates an empty token ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]uint64),
		allowances: make(map[string]map[string]uint64),
	}
}

// BalanceOf returns the account's balance.
func (l *Ledger) BalanceOf(account string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account]
}

// TotalSupply returns the minted supply.
func (l *Ledger) TotalSupply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.total
}

// Mint credits amount to account.
func (l *Ledger) Mint(account string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total+amount < l.total || l.balances[account]+amount < l.balances[account] {
		return ErrOverflow
	}
	l.balances[account] += amount
	l.total += amount
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(from, to, amount)
}

// Approve sets spender's allowance over owner's balance.
func (l *Ledger) Approve(owner, spender string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.allowances[owner]
	if m == nil {
		m = make(map[string]uint64)
		l.allowances[owner] = m
	}
	m[spender] = amount
}

// Allowance returns spender's remaining allowance over owner's balance.
func (l *Ledger) Allowance(owner, spender string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowances[owner][spender]
}

// TransferFrom moves amount from owner to to, consuming spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	allowed := l.allowances[owner][spender]
	if allowed < amount {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientAllowance, allowed, amount)
	}
	if err := l.transfer(owner, to, amount); err != nil {
		return err
	}
	l.allowances[owner][spender] = allowed - amount
	return nil
}

func (l *Ledger) transfer(from, to string, amount uint64) error {
	bal := l.balances[from]
	if bal < amount {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientBalance, bal, amount)
	}
	if l.balances[to]+amount < l.balances[to] {
		return ErrOverflow
	}
	l.balances[from] = bal - amount
	l.balances[to] += amount
	return nil
}

// EscrowMover adapts a Ledger to the escrow.AssetMover interface: deposits
// pull approved tokens into the vault account, withdrawals pay out of it.
type EscrowMover struct {
	ledger *Ledger
	vault  string
}

// NewEscrowMover creates a mover with the given vault address.
func NewEscrowMover(ledger *Ledger, vault string) *EscrowMover {
	return &EscrowMover{ledger: ledger, vault: vault}
}

// MoveIn pulls amount from the payer into the vault. The payer must have
// approved the vault as a spender.
func (m *EscrowMover) MoveIn(_ context.Context, from string, amount uint64) error {
	return m.ledger.TransferFrom(m.vault, from, m.vault, amount)
}

// MoveOut pays amount from the vault to the recipient.
func (m *EscrowMover) MoveOut(_ context.Context, to string, amount uint64) error {
	return m.ledger.Transfer(m.vault, to, amount)
}
