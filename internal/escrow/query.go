package escrow

import (
	"fmt"
	"sort"

	"vote-escrow-ledger/internal/curve"
)

// PowerOf returns the account's current voting power.
func (l *Ledger) PowerOf(account string) uint64 {
	return l.PowerOfAt(account, l.clock.Now())
}

// PowerOfAt returns the account's voting power at time at. For at not
// before the latest recorded point this is a single extrapolation; earlier
// times binary-search the account history. Accounts with no history have
// zero power.
func (l *Ledger) PowerOfAt(account string, at int64) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pts := l.accounts[account]
	if len(pts) < 2 {
		return 0
	}
	p := pts[len(pts)-1]
	if at < p.Ts {
		// Most recent point recorded at or before at; index 0 is the
		// unused zero point.
		i := sort.Search(len(pts)-1, func(i int) bool {
			return pts[i+1].Ts > at
		})
		if i == 0 {
			return 0
		}
		p = pts[i]
	}
	return curve.ToUnits(curve.Value(p, at))
}

// PowerOfAtMarker returns the account's voting power as of an external
// sequence marker. The marker must not exceed the current one. The
// marker->time translation interpolates between the bounding global
// points.
func (l *Ledger) PowerOfAtMarker(account string, marker uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.clock.Now()
	mark := l.currentMarker()
	if marker > mark {
		return 0, fmt.Errorf("%w: %d > %d", ErrMarkerInFuture, marker, mark)
	}

	pts := l.accounts[account]
	if len(pts) < 2 {
		return 0, nil
	}
	i := sort.Search(len(pts)-1, func(i int) bool {
		return pts[i+1].Marker > marker
	})
	if i == 0 {
		return 0, nil
	}
	up := pts[i]

	at := l.timeAtMarker(marker, now, mark)
	if at < up.Ts {
		at = up.Ts
	}
	return curve.ToUnits(curve.Value(up, at)), nil
}

// TotalPower returns the aggregate voting power at the current time.
func (l *Ledger) TotalPower() (uint64, error) {
	return l.TotalPowerAt(l.clock.Now())
}

// TotalPowerAt returns the aggregate voting power at time at: the bounding
// global point is found by binary search, then the same week-bucket sweep
// as the checkpoint engine runs forward read-only, applying scheduled
// slope changes without recording anything.
func (l *Ledger) TotalPowerAt(at int64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.globalPointAt(at)
	if !ok {
		return 0, nil
	}
	return l.sweepValue(p, at)
}

// TotalPowerAtMarker returns the aggregate voting power as of an external
// sequence marker, interpolating a timestamp between the bounding epochs.
func (l *Ledger) TotalPowerAtMarker(marker uint64) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	now := l.clock.Now()
	mark := l.currentMarker()
	if marker > mark {
		return 0, fmt.Errorf("%w: %d > %d", ErrMarkerInFuture, marker, mark)
	}

	e := l.epochAtMarker(marker)
	if e < 0 {
		return 0, nil
	}
	at := l.timeAtMarker(marker, now, mark)
	p := l.global[e]
	if at < p.Ts {
		at = p.Ts
	}
	return l.sweepValue(p, at)
}

// currentMarker returns the live marker, clamped to be non-decreasing
// against recorded history.
func (l *Ledger) currentMarker() uint64 {
	mark := l.markers.Current()
	if last := l.global[l.epoch].Marker; mark < last {
		mark = last
	}
	return mark
}

// globalPointAt returns the most recent global point recorded at or before
// at. ok is false when at predates all history.
func (l *Ledger) globalPointAt(at int64) (curve.Point, bool) {
	n := len(l.global)
	i := sort.Search(n, func(i int) bool { return l.global[i].Ts > at })
	if i == 0 {
		return curve.Point{}, false
	}
	return l.global[i-1], true
}

// epochAtMarker returns the highest epoch recorded at or before marker,
// or -1 when the marker predates all history.
func (l *Ledger) epochAtMarker(marker uint64) int {
	n := len(l.global)
	i := sort.Search(n, func(i int) bool { return l.global[i].Marker > marker })
	return i - 1
}

// timeAtMarker estimates the timestamp for a marker by linear
// interpolation between the bounding global points (or the live clock for
// the open-ended latest interval).
func (l *Ledger) timeAtMarker(marker uint64, now int64, mark uint64) int64 {
	e := l.epochAtMarker(marker)
	if e < 0 {
		return l.global[0].Ts
	}
	p0 := l.global[e]

	var dt int64
	var dm uint64
	if e < int(l.epoch) {
		p1 := l.global[e+1]
		dt = p1.Ts - p0.Ts
		dm = p1.Marker - p0.Marker
	} else {
		dt = now - p0.Ts
		dm = mark - p0.Marker
	}
	if dm == 0 || dt <= 0 {
		return p0.Ts
	}
	return p0.Ts + dt*int64(marker-p0.Marker)/int64(dm)
}

// sweepValue runs the read-only bucketed sweep from point p to time
// at >= p.Ts and returns the resulting bias in power units.
func (l *Ledger) sweepValue(p curve.Point, at int64) (uint64, error) {
	ti := curve.FloorWeek(p.Ts)
	for i := 0; i < curve.MaxSweepWeeks; i++ {
		ti += curve.Week
		var dslope int64
		if ti > at {
			ti = at
		} else {
			dslope = l.slopeChanges[ti]
		}

		decay, err := curve.CheckedMul(p.Slope, ti-p.Ts)
		if err != nil {
			return 0, fmt.Errorf("sweep decay at %d: %w", ti, err)
		}
		p.Bias -= decay
		if p.Bias < 0 {
			p.Bias = 0
		}
		p.Slope += dslope
		if p.Slope < 0 {
			p.Slope = 0
		}
		p.Ts = ti
		if ti == at {
			return curve.ToUnits(p.Bias), nil
		}
	}
	return 0, fmt.Errorf("%w: sweep from %d to %d", ErrHistoryGap, p.Ts, at)
}
