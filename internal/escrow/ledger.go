// Package escrow implements the time-decaying, checkpointed voting-power
// ledger: per-account locks, the aggregate decay curve with its slope-change
// schedule, append-only point histories, and point-in-time / historical
// power queries.
package escrow

import (
	"context"
	"sync"
	"time"

	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/domain"
)

// Clock supplies ledger time in unix seconds.
type Clock interface {
	Now() int64
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() int64

// Now implements Clock.
func (f ClockFunc) Now() int64 { return f() }

// SystemClock is the wall-clock default.
var SystemClock Clock = ClockFunc(func() int64 { return time.Now().Unix() })

// MarkerSource supplies the current external sequence marker
// (e.g. a block height).
type MarkerSource interface {
	Current() uint64
}

// AssetMover moves the escrowed token in and out of the ledger's custody.
// A mover error aborts the whole ledger operation.
type AssetMover interface {
	MoveIn(ctx context.Context, from string, amount uint64) error
	MoveOut(ctx context.Context, to string, amount uint64) error
}

// Whitelist answers whether a contract caller may accumulate power.
type Whitelist interface {
	IsAllowed(account string) bool
}

// Caller identifies the originator of a mutating operation. Contract
// callers must pass the whitelist check on every transition except
// DepositFor.
type Caller struct {
	Addr     string
	Contract bool
}

// Delta describes the state committed by one mutating operation. Sinks
// receive it after the operation is final; they must not call back into
// the ledger.
type Delta struct {
	GlobalPoints []domain.GlobalPoint // appended aggregate points, epoch order
	AccountPoint *domain.AccountPoint // appended per-account point, nil for pure sync
	Lock         *domain.LockState    // new lock state, nil for pure sync
	SlopeChanges []domain.SlopeChange // schedule entries written
	Supply       uint64               // total locked supply after the operation
	Deposit      *domain.DepositEvent
	Withdraw     *domain.WithdrawEvent
	SupplyEvent  *domain.SupplyEvent
}

// DeltaSink observes committed operations.
type DeltaSink interface {
	Record(Delta)
}

// Config wires a Ledger's collaborators. Mover, Whitelist and Sink may be
// nil: a nil mover skips token movement, a nil whitelist rejects all
// contract callers, a nil sink discards deltas.
type Config struct {
	Clock     Clock
	Markers   MarkerSource
	Mover     AssetMover
	Whitelist Whitelist
	Sink      DeltaSink
}

// Ledger is the escrow accounting engine. All mutating operations are
// serialized behind mu; queries take the read lock and never mutate.
type Ledger struct {
	mu sync.RWMutex

	clock     Clock
	markers   MarkerSource
	mover     AssetMover
	whitelist Whitelist
	sink      DeltaSink

	locks        map[string]domain.LockedBalance
	epoch        uint64
	global       []curve.Point            // index == epoch, entry 0 seeded
	accounts     map[string][]curve.Point // index 0 unused zero point
	slopeChanges map[int64]int64          // week ts -> fixed-point slope delta
	supply       uint64
}

// New creates a ledger with global epoch 0 seeded at the current clock and
// marker with zero bias and slope.
func New(cfg Config) *Ledger {
	l := &Ledger{
		clock:        cfg.Clock,
		markers:      cfg.Markers,
		mover:        cfg.Mover,
		whitelist:    cfg.Whitelist,
		sink:         cfg.Sink,
		locks:        make(map[string]domain.LockedBalance),
		accounts:     make(map[string][]curve.Point),
		slopeChanges: make(map[int64]int64),
	}
	if l.clock == nil {
		l.clock = SystemClock
	}
	if l.markers == nil {
		l.markers = zeroMarkers{}
	}
	l.global = []curve.Point{{Ts: l.clock.Now(), Marker: l.markers.Current()}}
	return l
}

type zeroMarkers struct{}

func (zeroMarkers) Current() uint64 { return 0 }

// LockOf returns the account's current lock state.
func (l *Ledger) LockOf(account string) domain.LockedBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locks[account]
}

// Supply returns the total locked token amount (principal, not power).
func (l *Ledger) Supply() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply
}

// Epoch returns the latest global history epoch.
func (l *Ledger) Epoch() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch
}

// AccountEpoch returns the latest per-account history index, 0 when the
// account has no history.
func (l *Ledger) AccountEpoch(account string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pts := l.accounts[account]
	if len(pts) == 0 {
		return 0
	}
	return uint64(len(pts) - 1)
}

func (l *Ledger) emit(d Delta) {
	if l.sink != nil {
		l.sink.Record(d)
	}
}
