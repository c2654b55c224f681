// Package whitelist implements the contract-origin checker consulted by
// the escrow ledger for non-EOA depositors.
package whitelist

import "sync"

// List is a mutable allow-list of contract addresses.
type List struct {
	mu      sync.RWMutex
	allowed map[string]struct{}
}

// New creates a list seeded with the given addresses.
func New(seed ...string) *List {
	l := &List{allowed: make(map[string]struct{}, len(seed))}
	for _, a := range seed {
		l.allowed[a] = struct{}{}
	}
	return l
}

// IsAllowed reports whether the address may accumulate power as a contract.
func (l *List) IsAllowed(account string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.allowed[account]
	return ok
}

// Add allows an address.
func (l *List) Add(account string) {
	l.mu.Lock()
	l.allowed[account] = struct{}{}
	l.mu.Unlock()
}

// Remove disallows an address.
func (l *List) Remove(account string) {
	l.mu.Lock()
	delete(l.allowed, account)
	l.mu.Unlock()
}

// Entries returns the allowed addresses in unspecified order.
func (l *List) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.allowed))
	for a := range l.allowed {
		out = append(out, a)
	}
	return out
}
