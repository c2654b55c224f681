// Package curve implements the fixed-point decay-curve math shared by the
// escrow ledger's checkpoint and query engines.
package curve

import "errors"

// Time and scaling constants for the decay curve.
const (
	// Week is the bucket width for checkpoint sweeps and unlock-time rounding.
	Week int64 = 7 * 86400

	// MaxLockDuration is the reference duration every lock normalizes to.
	// A lock held for the full duration starts with bias equal to its amount.
	MaxLockDuration int64 = 4 * 365 * 86400

	// Scale is the fixed-point precision carried through bias/slope math.
	// Bias and slope are stored scaled by this factor; conversion back to
	// integer power units happens only at the query boundary. The scale
	// exceeds MaxLockDuration so slope truncation costs under one power
	// unit per lock.
	Scale int64 = 1_000_000_000

	// MarkerScale is the fixed-point precision of the markers-per-second
	// ratio used to extrapolate sequence markers at bucket boundaries.
	MarkerScale int64 = 1_000_000_000

	// MaxSweepWeeks caps the bucketed sweep at 50 years of idle time.
	// Exceeding it is a fatal condition, not a silent truncation.
	MaxSweepWeeks = 2600
)

// MaxLockAmount is the largest lockable amount. Larger amounts would
// overflow the fixed-point bias representation and are rejected outright.
const MaxLockAmount uint64 = uint64(1<<63-1) / uint64(Scale)

// ErrOverflow reports int64 overflow in checked curve arithmetic.
var ErrOverflow = errors.New("curve: arithmetic overflow")

// Point is an immutable snapshot of the decay curve at one moment.
// Bias and Slope are fixed-point (scaled by Scale); Slope is the decrease
// in bias per second. Both are clamped to >= 0 whenever a point is
// recorded, but the type is signed to allow transient negative
// intermediates inside the checkpoint engine.
type Point struct {
	Bias   int64
	Slope  int64
	Ts     int64  // unix seconds
	Marker uint64 // external sequence marker (e.g. block height)
}

// FloorWeek rounds a timestamp down to a week boundary.
func FloorWeek(ts int64) int64 {
	if ts < 0 {
		return 0
	}
	return ts - ts%Week
}

// LockSlope derives the fixed-point decay slope for a lock of amount.
// Returns ErrOverflow for amounts above MaxLockAmount.
func LockSlope(amount uint64) (int64, error) {
	if amount > MaxLockAmount {
		return 0, ErrOverflow
	}
	return int64(amount) * Scale / MaxLockDuration, nil
}

// LockBias derives the fixed-point bias of a lock expiring at end,
// evaluated at t. Zero at or past expiry. The caller guarantees
// end-t <= MaxLockDuration, which keeps the product in range for any
// slope produced by LockSlope.
func LockBias(slope, end, t int64) int64 {
	if end <= t || slope <= 0 {
		return 0
	}
	return slope * (end - t)
}

// Value evaluates a point's curve at time t >= p.Ts, clamped to >= 0.
// The early-out on the zero crossing keeps the multiplication in range
// even for timestamps far past expiry.
func Value(p Point, t int64) int64 {
	if p.Bias <= 0 {
		return 0
	}
	dt := t - p.Ts
	if dt <= 0 {
		return p.Bias
	}
	if p.Slope > 0 && dt >= p.Bias/p.Slope+1 {
		return 0
	}
	v := p.Bias - p.Slope*dt
	if v < 0 {
		return 0
	}
	return v
}

// ToUnits converts a non-negative fixed-point bias to integer power units.
func ToUnits(fp int64) uint64 {
	if fp <= 0 {
		return 0
	}
	return uint64(fp / Scale)
}

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b int64) (int64, error) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, ErrOverflow
	}
	return s, nil
}

// CheckedSub returns a-b or ErrOverflow.
func CheckedSub(a, b int64) (int64, error) {
	d := a - b
	if (b < 0 && d < a) || (b > 0 && d > a) {
		return 0, ErrOverflow
	}
	return d, nil
}

// CheckedMul returns a*b or ErrOverflow.
func CheckedMul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a {
		return 0, ErrOverflow
	}
	return p, nil
}
