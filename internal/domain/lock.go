package domain

// LockedBalance is the current lock state for one account.
// End == 0 or Amount == 0 means no active lock. Whenever Amount > 0 the
// end timestamp is rounded down to a week boundary.
type LockedBalance struct {
	Amount uint64 // locked principal, integer power units
	End    int64  // unlock timestamp (unix seconds), 0 when no lock
}

// IsZero reports whether no lock is present.
func (l LockedBalance) IsZero() bool {
	return l.Amount == 0 && l.End == 0
}

// Active reports whether the lock holds funds and has not expired.
func (l LockedBalance) Active(now int64) bool {
	return l.Amount > 0 && l.End > now
}

// Expired reports whether the lock holds funds past its unlock time.
func (l LockedBalance) Expired(now int64) bool {
	return l.Amount > 0 && l.End <= now
}

// LockState is the persisted row for an account's current lock.
// Corresponds to the locks table in PostgreSQL.
type LockState struct {
	Account   string // base58 account address
	Amount    uint64 // locked principal
	End       int64  // unlock timestamp, 0 when no lock
	UpdatedAt int64  // last mutation timestamp (unix seconds)
}

// SlopeChange is a persisted slope-schedule entry: the pending fixed-point
// slope delta applied to the aggregate curve when ts is crossed.
type SlopeChange struct {
	Ts    int64 // week-rounded expiry timestamp
	Delta int64 // fixed-point slope delta, may be zero
}

// GlobalPoint is a persisted aggregate history point.
// Corresponds to the global_points table in ClickHouse.
type GlobalPoint struct {
	Epoch  uint64 // ledger-internal history index
	Bias   int64  // fixed-point aggregate bias
	Slope  int64  // fixed-point aggregate slope
	Ts     int64  // unix seconds
	Marker uint64 // external sequence marker
}

// AccountPoint is a persisted per-account history point.
// Corresponds to the account_points table in ClickHouse.
type AccountPoint struct {
	Account string
	Index   uint64 // per-account history index, first real entry at 1
	Bias    int64
	Slope   int64
	Ts      int64
	Marker  uint64
}
