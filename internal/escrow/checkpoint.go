package escrow

import (
	"fmt"

	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/domain"
)

// checkpoint advances the aggregate curve from the last recorded point to
// now in week buckets, applying scheduled slope changes and recording one
// point per crossed boundary, then folds in the account delta (if any),
// pre-schedules the future slope drops, and appends the per-account point.
//
// account == "" performs a pure global sync with no lock delta. The caller
// holds the write lock.
func (l *Ledger) checkpoint(account string, old, new domain.LockedBalance) error {
	now := l.clock.Now()
	mark := l.markers.Current()

	var uOldSlope, uOldBias, uNewSlope, uNewBias int64
	var oldDslope, newDslope int64

	if account != "" {
		var err error
		if old.Amount > 0 && old.End > now {
			if uOldSlope, err = curve.LockSlope(old.Amount); err != nil {
				return fmt.Errorf("old lock slope: %w", err)
			}
			uOldBias = curve.LockBias(uOldSlope, old.End, now)
		}
		if new.Amount > 0 && new.End > now {
			if uNewSlope, err = curve.LockSlope(new.Amount); err != nil {
				return fmt.Errorf("new lock slope: %w", err)
			}
			uNewBias = curve.LockBias(uNewSlope, new.End, now)
		}

		// Read the scheduled deltas for the expiries we are about to
		// adjust. When the expiries coincide they share one entry.
		oldDslope = l.slopeChanges[old.End]
		if new.End != 0 {
			if new.End == old.End {
				newDslope = oldDslope
			} else {
				newDslope = l.slopeChanges[new.End]
			}
		}
	}

	last := l.global[l.epoch]
	if mark < last.Marker {
		// Markers are non-decreasing by contract; tolerate a source that
		// briefly rewinds (e.g. feed reconnect) instead of corrupting
		// history.
		mark = last.Marker
	}

	// A pure sync within the same second has nothing to record.
	if account == "" && now == last.Ts {
		return nil
	}

	// Estimated markers per second since the last point, fixed-point by
	// MarkerScale, used to back-fill markers at bucket boundaries.
	initial := last
	var markerRate int64
	if now > last.Ts {
		dm, err := curve.CheckedMul(curve.MarkerScale, int64(mark-last.Marker))
		if err != nil {
			return fmt.Errorf("marker rate: %w", err)
		}
		markerRate = dm / (now - last.Ts)
	}

	ti := curve.FloorWeek(last.Ts)
	reached := false
	for i := 0; i < curve.MaxSweepWeeks; i++ {
		ti += curve.Week
		var dslope int64
		if ti > now {
			ti = now
		} else {
			dslope = l.slopeChanges[ti]
		}

		decay, err := curve.CheckedMul(last.Slope, ti-last.Ts)
		if err != nil {
			return fmt.Errorf("sweep decay at %d: %w", ti, err)
		}
		if last.Bias, err = curve.CheckedSub(last.Bias, decay); err != nil {
			return fmt.Errorf("sweep bias at %d: %w", ti, err)
		}
		if last.Slope, err = curve.CheckedAdd(last.Slope, dslope); err != nil {
			return fmt.Errorf("sweep slope at %d: %w", ti, err)
		}
		if last.Bias < 0 {
			last.Bias = 0
		}
		if last.Slope < 0 {
			last.Slope = 0
		}
		last.Marker = initial.Marker + uint64(markerRate*(ti-initial.Ts)/curve.MarkerScale)
		last.Ts = ti

		if ti == now {
			last.Marker = mark
			reached = true
			break
		}
		l.epoch++
		l.global = append(l.global, last)
	}
	if !reached {
		return fmt.Errorf("%w: %d buckets from %d to %d",
			ErrHistoryGap, curve.MaxSweepWeeks, initial.Ts, now)
	}

	if account != "" {
		var err error
		if last.Slope, err = curve.CheckedAdd(last.Slope, uNewSlope-uOldSlope); err != nil {
			return fmt.Errorf("fold slope delta: %w", err)
		}
		if last.Bias, err = curve.CheckedAdd(last.Bias, uNewBias-uOldBias); err != nil {
			return fmt.Errorf("fold bias delta: %w", err)
		}
		if last.Slope < 0 {
			last.Slope = 0
		}
		if last.Bias < 0 {
			last.Bias = 0
		}
	}

	l.epoch++
	l.global = append(l.global, last)

	if account == "" {
		return nil
	}

	// Pre-schedule the future decay-rate drops. Entries hold -slope per
	// expiring lock; the adjustments below cancel the old contribution and
	// add the new one.
	if old.End > now {
		oldDslope += uOldSlope
		if new.End == old.End {
			oldDslope -= uNewSlope
		}
		l.slopeChanges[old.End] = oldDslope
	}
	if new.End > now && new.End > old.End {
		newDslope -= uNewSlope
		l.slopeChanges[new.End] = newDslope
	}

	pts := l.accounts[account]
	if len(pts) == 0 {
		pts = []curve.Point{{}} // index 0 unused
	}
	pts = append(pts, curve.Point{Bias: uNewBias, Slope: uNewSlope, Ts: now, Marker: mark})
	l.accounts[account] = pts
	return nil
}
