// Package vesting implements single-beneficiary linear vesting schedules
// and the factory that instantiates them. Vesting is deliberately thin:
// linear interpolation between start and end plus claim bookkeeping.
package vesting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"vote-escrow-ledger/internal/escrow"
)

// Vesting errors.
var (
	ErrExists        = errors.New("vesting: schedule already exists")
	ErrNotFound      = errors.New("vesting: no schedule")
	ErrBadSchedule   = errors.New("vesting: invalid schedule parameters")
	ErrNothingVested = errors.New("vesting: nothing claimable")
)

// Schedule vests a fixed total linearly from Start over Duration seconds,
// with an optional cliff before which nothing is claimable.
type Schedule struct {
	mu          sync.Mutex
	beneficiary string
	total       uint64
	start       int64
	duration    int64
	cliff       int64 // seconds after start
	claimed     uint64

	clock escrow.Clock
	mover escrow.AssetMover
}

// Beneficiary returns the receiving account.
func (s *Schedule) Beneficiary() string { return s.beneficiary }

// Total returns the full vesting amount.
func (s *Schedule) Total() uint64 { return s.total }

// Claimed returns the amount already paid out.
func (s *Schedule) Claimed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimed
}

// VestedAt returns the amount vested by time t.
func (s *Schedule) VestedAt(t int64) uint64 {
	if t < s.start+s.cliff {
		return 0
	}
	elapsed := t - s.start
	if elapsed >= s.duration {
		return s.total
	}
	// total*elapsed fits in uint64, checked at deploy time.
	return s.total * uint64(elapsed) / uint64(s.duration)
}

// Claimable returns what the beneficiary could claim right now.
func (s *Schedule) Claimable() uint64 {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VestedAt(now) - s.claimed
}

// Claim pays out everything vested and not yet claimed. Returns the amount
// moved. A mover failure leaves the claim bookkeeping untouched.
func (s *Schedule) Claim(ctx context.Context) (uint64, error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.VestedAt(now) - s.claimed
	if due == 0 {
		return 0, ErrNothingVested
	}
	if s.mover != nil {
		if err := s.mover.MoveOut(ctx, s.beneficiary, due); err != nil {
			return 0, fmt.Errorf("vesting payout: %w", err)
		}
	}
	s.claimed += due
	return due, nil
}

// Factory instantiates and indexes per-beneficiary vesting schedules.
type Factory struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule

	clock escrow.Clock
	mover escrow.AssetMover
	cap   uint64
}

// NewFactory creates a factory. maxTotal bounds any single schedule; zero
// means unbounded.
func NewFactory(clock escrow.Clock, mover escrow.AssetMover, maxTotal uint64) *Factory {
	if clock == nil {
		clock = escrow.SystemClock
	}
	return &Factory{
		schedules: make(map[string]*Schedule),
		clock:     clock,
		mover:     mover,
		cap:       maxTotal,
	}
}

// Deploy creates the schedule for a beneficiary. One schedule per
// beneficiary; duration must be positive and the cliff within it.
func (f *Factory) Deploy(beneficiary string, total uint64, start, duration, cliff int64) (*Schedule, error) {
	if beneficiary == "" || total == 0 || duration <= 0 || cliff < 0 || cliff > duration {
		return nil, ErrBadSchedule
	}
	if f.cap > 0 && total > f.cap {
		return nil, ErrBadSchedule
	}
	// The interpolation multiplies total by elapsed seconds.
	if total > math.MaxUint64/uint64(duration) {
		return nil, ErrBadSchedule
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.schedules[beneficiary]; ok {
		return nil, ErrExists
	}
	s := &Schedule{
		beneficiary: beneficiary,
		total:       total,
		start:       start,
		duration:    duration,
		cliff:       cliff,
		clock:       f.clock,
		mover:       f.mover,
	}
	f.schedules[beneficiary] = s
	return s, nil
}

// Get returns the beneficiary's schedule.
func (f *Factory) Get(beneficiary string) (*Schedule, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.schedules[beneficiary]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}
