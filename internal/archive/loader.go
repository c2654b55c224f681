package archive

import (
	"context"
	"errors"
	"fmt"

	"vote-escrow-ledger/internal/escrow"
)

// LoadSnapshot reconstructs a ledger snapshot from storage. It requires the
// lock, slope-change and global-point stores; account history is optional
// and loaded when the store is present.
func LoadSnapshot(ctx context.Context, stores Stores) (*escrow.Snapshot, error) {
	if stores.Locks == nil || stores.SlopeChanges == nil || stores.GlobalPoints == nil {
		return nil, errors.New("archive: lock, slope change and global point stores are required")
	}

	snap := &escrow.Snapshot{}

	locks, err := stores.Locks.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load locks: %w", err)
	}
	for _, l := range locks {
		if l.Amount == 0 {
			continue // cleared locks are audit rows, not state
		}
		snap.Locks = append(snap.Locks, *l)
		snap.Supply += l.Amount
	}

	global, err := stores.GlobalPoints.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load global points: %w", err)
	}
	for _, p := range global {
		snap.Global = append(snap.Global, *p)
	}

	changes, err := stores.SlopeChanges.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load slope changes: %w", err)
	}
	for _, c := range changes {
		snap.SlopeChanges = append(snap.SlopeChanges, *c)
	}

	if stores.AccountPoints != nil {
		points, err := stores.AccountPoints.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load account points: %w", err)
		}
		for _, p := range points {
			snap.Accounts = append(snap.Accounts, *p)
		}
	}

	return snap, nil
}
