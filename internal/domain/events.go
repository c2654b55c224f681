package domain

// DepositKind classifies which lifecycle transition produced a deposit event.
type DepositKind string

// Deposit kinds.
const (
	DepositCreate     DepositKind = "create_lock"
	DepositAmount     DepositKind = "increase_amount"
	DepositUnlockTime DepositKind = "increase_unlock_time"
	DepositForOther   DepositKind = "deposit_for"
)

// DepositEvent is emitted after a committed deposit-style transition.
type DepositEvent struct {
	ID      string      // uuid
	Account string      // lock owner
	Payer   string      // token source, differs from Account for deposit_for
	Amount  uint64      // delta moved in (0 for pure extensions)
	End     int64       // lock end after the transition
	Kind    DepositKind // which transition
	Ts      int64       // ledger time of the transition
}

// WithdrawEvent is emitted after a committed withdrawal.
type WithdrawEvent struct {
	ID      string // uuid
	Account string
	Amount  uint64 // full principal moved back out
	Ts      int64
}

// SupplyEvent is emitted whenever the total locked supply changes.
type SupplyEvent struct {
	ID         string
	PrevSupply uint64
	Supply     uint64
	Ts         int64
}
