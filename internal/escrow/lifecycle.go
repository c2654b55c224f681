package escrow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/domain"
)

// schedEntry remembers a slope-schedule value before an operation touched it.
type schedEntry struct {
	ts      int64
	delta   int64
	existed bool
}

// journal captures everything a mutating operation may change, so a failed
// asset movement can roll the ledger back to its pre-operation state.
type journal struct {
	epoch     uint64
	globalLen int
	account   string
	acctLen   int
	lock      domain.LockedBalance
	supply    uint64
	sched     []schedEntry
}

func (l *Ledger) begin(account string, touched ...int64) journal {
	j := journal{
		epoch:     l.epoch,
		globalLen: len(l.global),
		account:   account,
		lock:      l.locks[account],
		supply:    l.supply,
	}
	if account != "" {
		j.acctLen = len(l.accounts[account])
	}
	seen := make(map[int64]bool, len(touched))
	for _, ts := range touched {
		if ts == 0 || seen[ts] {
			continue
		}
		seen[ts] = true
		delta, ok := l.slopeChanges[ts]
		j.sched = append(j.sched, schedEntry{ts: ts, delta: delta, existed: ok})
	}
	return j
}

func (l *Ledger) rollback(j journal) {
	l.epoch = j.epoch
	l.global = l.global[:j.globalLen]
	if j.account != "" {
		if j.acctLen == 0 {
			delete(l.accounts, j.account)
		} else {
			l.accounts[j.account] = l.accounts[j.account][:j.acctLen]
		}
		if j.lock.IsZero() {
			delete(l.locks, j.account)
		} else {
			l.locks[j.account] = j.lock
		}
	}
	l.supply = j.supply
	for _, e := range j.sched {
		if e.existed {
			l.slopeChanges[e.ts] = e.delta
		} else {
			delete(l.slopeChanges, e.ts)
		}
	}
}

// delta assembles the committed Delta for sinks from the journal marks.
func (l *Ledger) delta(j journal, now int64) Delta {
	d := Delta{Supply: l.supply}
	for i := j.globalLen; i < len(l.global); i++ {
		p := l.global[i]
		d.GlobalPoints = append(d.GlobalPoints, domain.GlobalPoint{
			Epoch: uint64(i), Bias: p.Bias, Slope: p.Slope, Ts: p.Ts, Marker: p.Marker,
		})
	}
	if j.account != "" {
		pts := l.accounts[j.account]
		if len(pts) > j.acctLen {
			p := pts[len(pts)-1]
			d.AccountPoint = &domain.AccountPoint{
				Account: j.account, Index: uint64(len(pts) - 1),
				Bias: p.Bias, Slope: p.Slope, Ts: p.Ts, Marker: p.Marker,
			}
		}
		lock := l.locks[j.account]
		d.Lock = &domain.LockState{
			Account: j.account, Amount: lock.Amount, End: lock.End, UpdatedAt: now,
		}
		for _, e := range j.sched {
			d.SlopeChanges = append(d.SlopeChanges, domain.SlopeChange{
				Ts: e.ts, Delta: l.slopeChanges[e.ts],
			})
		}
	}
	if l.supply != j.supply {
		d.SupplyEvent = &domain.SupplyEvent{
			ID: uuid.NewString(), PrevSupply: j.supply, Supply: l.supply, Ts: now,
		}
	}
	return d
}

func (l *Ledger) checkOrigin(caller Caller) error {
	if !caller.Contract {
		return nil
	}
	if l.whitelist == nil || !l.whitelist.IsAllowed(caller.Addr) {
		return ErrContractNotAllowed
	}
	return nil
}

// CreateLock locks amount until unlockTime (rounded down to a week) for the
// caller. The caller must hold no lock, the rounded unlock time must be
// strictly in the future and within the maximum duration.
func (l *Ledger) CreateLock(ctx context.Context, caller Caller, amount uint64, unlockTime int64) error {
	if err := l.checkOrigin(caller); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	unlock := curve.FloorWeek(unlockTime)
	old := l.locks[caller.Addr]
	if old.Amount > 0 {
		return ErrLockExists
	}
	if unlock <= now {
		return ErrUnlockInPast
	}
	if unlock > now+curve.MaxLockDuration {
		return ErrUnlockTooFar
	}

	newLock := domain.LockedBalance{Amount: amount, End: unlock}
	return l.commitDeposit(ctx, caller.Addr, caller.Addr, old, newLock, amount, domain.DepositCreate, now)
}

// IncreaseAmount adds amount to the caller's active lock without changing
// its unlock time.
func (l *Ledger) IncreaseAmount(ctx context.Context, caller Caller, amount uint64) error {
	if err := l.checkOrigin(caller); err != nil {
		return err
	}
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	old := l.locks[caller.Addr]
	if old.Amount == 0 {
		return ErrNoLock
	}
	if old.End <= now {
		return ErrLockExpired
	}

	newAmount, err := addAmount(old.Amount, amount)
	if err != nil {
		return err
	}
	newLock := domain.LockedBalance{Amount: newAmount, End: old.End}
	return l.commitDeposit(ctx, caller.Addr, caller.Addr, old, newLock, amount, domain.DepositAmount, now)
}

// IncreaseUnlockTime extends the caller's active lock to a strictly later
// week-rounded unlock time. No tokens move.
func (l *Ledger) IncreaseUnlockTime(ctx context.Context, caller Caller, unlockTime int64) error {
	if err := l.checkOrigin(caller); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	old := l.locks[caller.Addr]
	if old.Amount == 0 {
		return ErrNoLock
	}
	if old.End <= now {
		return ErrLockExpired
	}
	unlock := curve.FloorWeek(unlockTime)
	if unlock <= old.End {
		return ErrUnlockNotExtended
	}
	if unlock > now+curve.MaxLockDuration {
		return ErrUnlockTooFar
	}

	newLock := domain.LockedBalance{Amount: old.Amount, End: unlock}
	return l.commitDeposit(ctx, caller.Addr, caller.Addr, old, newLock, 0, domain.DepositUnlockTime, now)
}

// DepositFor adds amount to another account's active lock. Any caller is
// permitted, contracts included: topping up cannot extend a lock, so it
// grants the payer nothing.
func (l *Ledger) DepositFor(ctx context.Context, caller Caller, account string, amount uint64) error {
	if amount == 0 {
		return ErrZeroAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	old := l.locks[account]
	if old.Amount == 0 {
		return ErrNoLock
	}
	if old.End <= now {
		return ErrLockExpired
	}

	newAmount, err := addAmount(old.Amount, amount)
	if err != nil {
		return err
	}
	newLock := domain.LockedBalance{Amount: newAmount, End: old.End}
	return l.commitDeposit(ctx, caller.Addr, account, old, newLock, amount, domain.DepositForOther, now)
}

// Withdraw returns the caller's full principal once the lock has expired
// and resets the account to the no-lock state. Returns the amount moved
// out.
func (l *Ledger) Withdraw(ctx context.Context, caller Caller) (uint64, error) {
	if err := l.checkOrigin(caller); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	old := l.locks[caller.Addr]
	if old.Amount == 0 {
		return 0, ErrNoLock
	}
	if old.End > now {
		return 0, ErrLockNotExpired
	}

	amount := old.Amount
	j := l.begin(caller.Addr, old.End)

	if err := l.checkpoint(caller.Addr, old, domain.LockedBalance{}); err != nil {
		l.rollback(j)
		return 0, err
	}
	l.locks[caller.Addr] = domain.LockedBalance{}
	l.supply -= amount

	if l.mover != nil {
		if err := l.mover.MoveOut(ctx, caller.Addr, amount); err != nil {
			l.rollback(j)
			return 0, fmt.Errorf("move out: %w", err)
		}
	}

	d := l.delta(j, now)
	d.Withdraw = &domain.WithdrawEvent{
		ID: uuid.NewString(), Account: caller.Addr, Amount: amount, Ts: now,
	}
	l.emit(d)
	return amount, nil
}

// Checkpoint performs a pure global sync: aggregate history is brought up
// to the current time with no account delta. Safe to call at any time;
// calling it twice within the same second is a no-op the second time.
func (l *Ledger) Checkpoint() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	j := l.begin("")
	if err := l.checkpoint("", domain.LockedBalance{}, domain.LockedBalance{}); err != nil {
		l.rollback(j)
		return err
	}
	if len(l.global) > j.globalLen {
		l.emit(l.delta(j, now))
	}
	return nil
}

// commitDeposit runs the shared tail of all deposit-style transitions:
// checkpoint, lock/supply write, token move-in, delta emission. The caller
// holds the write lock and has validated the transition.
func (l *Ledger) commitDeposit(ctx context.Context, payer, account string, old, newLock domain.LockedBalance, value uint64, kind domain.DepositKind, now int64) error {
	newSupply, err := addAmount(l.supply, value)
	if err != nil {
		return err
	}

	j := l.begin(account, old.End, newLock.End)

	if err := l.checkpoint(account, old, newLock); err != nil {
		l.rollback(j)
		return err
	}
	l.locks[account] = newLock
	l.supply = newSupply

	if value > 0 && l.mover != nil {
		if err := l.mover.MoveIn(ctx, payer, value); err != nil {
			l.rollback(j)
			return fmt.Errorf("move in: %w", err)
		}
	}

	d := l.delta(j, now)
	d.Deposit = &domain.DepositEvent{
		ID:      uuid.NewString(),
		Account: account,
		Payer:   payer,
		Amount:  value,
		End:     newLock.End,
		Kind:    kind,
		Ts:      now,
	}
	l.emit(d)
	return nil
}

// addAmount is checked uint64 addition capped at MaxLockAmount, the
// largest total the fixed-point curve can represent.
func addAmount(a, b uint64) (uint64, error) {
	s := a + b
	if s < a || s > curve.MaxLockAmount {
		return 0, ErrAmountTooLarge
	}
	return s, nil
}
