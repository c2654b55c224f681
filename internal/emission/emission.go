// Package emission models a token release schedule with a per-second
// rate that steps down geometrically at fixed-length epoch boundaries.
package emission

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrBadSchedule = errors.New("emission: invalid schedule parameters")
	ErrOverflow    = errors.New("emission: arithmetic overflow")
)

// Schedule emits initialRate tokens per second during the first epoch
// and multiplies the rate by cutNum/cutDen at every epoch boundary.
// Rates are memoized per epoch; once a rate truncates to zero all later
// epochs stay zero.
type Schedule struct {
	start    int64
	epochLen int64
	cutNum   uint64
	cutDen   uint64

	mu    sync.Mutex
	rates []uint64 // rates[e] is the per-second rate during epoch e
}

// NewSchedule builds a schedule. The reduction ratio must be below one
// so the emitted supply converges.
func NewSchedule(start, epochLen int64, initialRate, cutNum, cutDen uint64) (*Schedule, error) {
	if epochLen <= 0 || initialRate == 0 || cutDen == 0 || cutNum >= cutDen {
		return nil, ErrBadSchedule
	}
	if initialRate > math.MaxUint64/cutNum {
		return nil, ErrBadSchedule
	}
	return &Schedule{
		start:    start,
		epochLen: epochLen,
		cutNum:   cutNum,
		cutDen:   cutDen,
		rates:    []uint64{initialRate},
	}, nil
}

// Start returns the instant emission begins.
func (s *Schedule) Start() int64 { return s.start }

func (s *Schedule) rateForEpoch(e int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for int64(len(s.rates)) <= e {
		last := s.rates[len(s.rates)-1]
		// last <= initialRate, so the product cannot overflow.
		s.rates = append(s.rates, last*s.cutNum/s.cutDen)
	}
	return s.rates[e]
}

// RateAt returns the per-second emission rate in force at t.
func (s *Schedule) RateAt(t int64) uint64 {
	if t < s.start {
		return 0
	}
	return s.rateForEpoch((t - s.start) / s.epochLen)
}

// MintableBetween returns the tokens emitted over the half-open
// interval [t0, t1). The result is monotonic in t1 for fixed t0. The
// accumulation is checked; an interval whose emission exceeds uint64
// returns ErrOverflow rather than wrapping.
func (s *Schedule) MintableBetween(t0, t1 int64) (uint64, error) {
	if t0 < s.start {
		t0 = s.start
	}
	if t1 <= t0 {
		return 0, nil
	}
	var total uint64
	for t0 < t1 {
		e := (t0 - s.start) / s.epochLen
		end := s.start + (e+1)*s.epochLen
		if end > t1 {
			end = t1
		}
		rate := s.rateForEpoch(e)
		if rate == 0 {
			break
		}
		span := uint64(end - t0)
		if rate > math.MaxUint64/span {
			return 0, ErrOverflow
		}
		chunk := rate * span
		if total+chunk < total {
			return 0, ErrOverflow
		}
		total += chunk
		t0 = end
	}
	return total, nil
}
