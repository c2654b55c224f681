package escrow

import "errors"

// Validation errors. Every precondition violation is rejected before any
// state mutation.
var (
	// ErrLockExists is returned by CreateLock when the account already
	// holds an active or expired lock.
	ErrLockExists = errors.New("escrow: lock already exists")

	// ErrNoLock is returned when an operation targets an account without
	// a lock.
	ErrNoLock = errors.New("escrow: no lock")

	// ErrLockExpired is returned when a deposit-style operation targets a
	// lock whose unlock time has already passed.
	ErrLockExpired = errors.New("escrow: lock expired")

	// ErrLockNotExpired is returned by Withdraw before the unlock time.
	ErrLockNotExpired = errors.New("escrow: lock not expired")

	// ErrZeroAmount is returned for zero-value deposits.
	ErrZeroAmount = errors.New("escrow: amount must be positive")

	// ErrAmountTooLarge is returned when an amount would overflow the
	// fixed-point curve representation, for the account or in aggregate.
	ErrAmountTooLarge = errors.New("escrow: amount too large")

	// ErrUnlockInPast is returned when the rounded unlock time is not
	// strictly in the future.
	ErrUnlockInPast = errors.New("escrow: unlock time must be in the future")

	// ErrUnlockTooFar is returned when the unlock time exceeds the
	// maximum lock duration.
	ErrUnlockTooFar = errors.New("escrow: unlock time exceeds maximum lock duration")

	// ErrUnlockNotExtended is returned when increase_unlock_time does not
	// strictly extend the current unlock time.
	ErrUnlockNotExtended = errors.New("escrow: unlock time must extend the lock")

	// ErrContractNotAllowed is returned when a contract caller is not on
	// the depositor whitelist.
	ErrContractNotAllowed = errors.New("escrow: contract depositor not allowed")

	// ErrMarkerInFuture is returned by historical queries for markers
	// beyond the current sequence marker.
	ErrMarkerInFuture = errors.New("escrow: marker is in the future")

	// ErrHistoryGap is returned when a checkpoint sweep would exceed its
	// iteration ceiling. The ceiling covers decades of idle time, so this
	// signals a corrupted clock rather than a recoverable condition.
	ErrHistoryGap = errors.New("escrow: idle gap exceeds sweep ceiling")

	// ErrCorruptSnapshot is returned when a restored snapshot violates
	// history invariants.
	ErrCorruptSnapshot = errors.New("escrow: corrupt snapshot")
)
