package escrow

import (
	"fmt"
	"sort"

	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/domain"
)

// Snapshot is the full persisted state surface of a ledger: current locks,
// both point histories, the slope schedule and the locked supply.
type Snapshot struct {
	Locks        []domain.LockState
	Global       []domain.GlobalPoint
	Accounts     []domain.AccountPoint
	SlopeChanges []domain.SlopeChange
	Supply       uint64
}

// Snapshot captures the ledger state for archival or inspection.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Snapshot{Supply: l.supply}
	for account, lock := range l.locks {
		s.Locks = append(s.Locks, domain.LockState{
			Account: account, Amount: lock.Amount, End: lock.End,
		})
	}
	for i, p := range l.global {
		s.Global = append(s.Global, domain.GlobalPoint{
			Epoch: uint64(i), Bias: p.Bias, Slope: p.Slope, Ts: p.Ts, Marker: p.Marker,
		})
	}
	for account, pts := range l.accounts {
		for i := 1; i < len(pts); i++ {
			p := pts[i]
			s.Accounts = append(s.Accounts, domain.AccountPoint{
				Account: account, Index: uint64(i),
				Bias: p.Bias, Slope: p.Slope, Ts: p.Ts, Marker: p.Marker,
			})
		}
	}
	for ts, delta := range l.slopeChanges {
		s.SlopeChanges = append(s.SlopeChanges, domain.SlopeChange{Ts: ts, Delta: delta})
	}
	sort.Slice(s.Locks, func(i, j int) bool { return s.Locks[i].Account < s.Locks[j].Account })
	sort.Slice(s.Accounts, func(i, j int) bool {
		if s.Accounts[i].Account != s.Accounts[j].Account {
			return s.Accounts[i].Account < s.Accounts[j].Account
		}
		return s.Accounts[i].Index < s.Accounts[j].Index
	})
	sort.Slice(s.SlopeChanges, func(i, j int) bool { return s.SlopeChanges[i].Ts < s.SlopeChanges[j].Ts })
	return s
}

// NewFromSnapshot rebuilds a ledger from persisted state, validating that
// histories are contiguous and monotonic. An empty snapshot behaves like
// New.
func NewFromSnapshot(cfg Config, snap Snapshot) (*Ledger, error) {
	l := New(cfg)
	if len(snap.Global) == 0 {
		return l, nil
	}

	l.global = l.global[:0]
	for i, gp := range snap.Global {
		if gp.Epoch != uint64(i) {
			return nil, fmt.Errorf("%w: global epoch %d at position %d", ErrCorruptSnapshot, gp.Epoch, i)
		}
		if i > 0 {
			prev := l.global[i-1]
			if gp.Ts < prev.Ts || gp.Marker < prev.Marker {
				return nil, fmt.Errorf("%w: non-monotonic global history at epoch %d", ErrCorruptSnapshot, i)
			}
		}
		if gp.Bias < 0 || gp.Slope < 0 {
			return nil, fmt.Errorf("%w: negative global point at epoch %d", ErrCorruptSnapshot, i)
		}
		l.global = append(l.global, curve.Point{Bias: gp.Bias, Slope: gp.Slope, Ts: gp.Ts, Marker: gp.Marker})
	}
	l.epoch = uint64(len(l.global) - 1)

	accounts := append([]domain.AccountPoint(nil), snap.Accounts...)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Account != accounts[j].Account {
			return accounts[i].Account < accounts[j].Account
		}
		return accounts[i].Index < accounts[j].Index
	})
	for _, ap := range accounts {
		pts := l.accounts[ap.Account]
		if len(pts) == 0 {
			pts = []curve.Point{{}}
		}
		if ap.Index != uint64(len(pts)) {
			return nil, fmt.Errorf("%w: account %s history gap at index %d", ErrCorruptSnapshot, ap.Account, ap.Index)
		}
		if prev := pts[len(pts)-1]; len(pts) > 1 && (ap.Ts < prev.Ts || ap.Marker < prev.Marker) {
			return nil, fmt.Errorf("%w: non-monotonic history for account %s", ErrCorruptSnapshot, ap.Account)
		}
		l.accounts[ap.Account] = append(pts, curve.Point{Bias: ap.Bias, Slope: ap.Slope, Ts: ap.Ts, Marker: ap.Marker})
	}

	for _, lock := range snap.Locks {
		if lock.Amount == 0 && lock.End == 0 {
			continue
		}
		if lock.Amount > 0 && (lock.End <= 0 || lock.End%curve.Week != 0) {
			return nil, fmt.Errorf("%w: lock for %s has unrounded end %d", ErrCorruptSnapshot, lock.Account, lock.End)
		}
		l.locks[lock.Account] = domain.LockedBalance{Amount: lock.Amount, End: lock.End}
	}

	for _, sc := range snap.SlopeChanges {
		l.slopeChanges[sc.Ts] = sc.Delta
	}
	l.supply = snap.Supply
	return l, nil
}
