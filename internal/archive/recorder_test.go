package archive

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/observability"
	"vote-escrow-ledger/internal/storage/memory"
)

func memStores() Stores {
	return Stores{
		Locks:         memory.NewLockStore(),
		SlopeChanges:  memory.NewSlopeChangeStore(),
		GlobalPoints:  memory.NewGlobalPointStore(),
		AccountPoints: memory.NewAccountPointStore(),
		Events:        memory.NewLockEventStore(),
	}
}

func TestRecorder_PersistsDelta(t *testing.T) {
	stores := memStores()
	rec := NewRecorder(RecorderOptions{Stores: stores})
	defer rec.Close()

	rec.Record(escrow.Delta{
		GlobalPoints: []domain.GlobalPoint{
			{Epoch: 1, Bias: 100, Slope: 1, Ts: 1000, Marker: 10},
			{Epoch: 2, Bias: 90, Slope: 1, Ts: 2000, Marker: 20},
		},
		AccountPoint: &domain.AccountPoint{Account: "alice", Index: 1, Bias: 100, Slope: 1, Ts: 2000, Marker: 20},
		Lock:         &domain.LockState{Account: "alice", Amount: 500, End: 9000, UpdatedAt: 2000},
		SlopeChanges: []domain.SlopeChange{{Ts: 9000, Delta: -1}},
		Supply:       500,
		Deposit:      &domain.DepositEvent{ID: "d1", Account: "alice", Payer: "alice", Amount: 500, End: 9000, Kind: domain.DepositCreate, Ts: 2000},
		SupplyEvent:  &domain.SupplyEvent{ID: "s1", PrevSupply: 0, Supply: 500, Ts: 2000},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	lock, err := stores.Locks.GetByAccount(ctx, "alice")
	if err != nil || lock.Amount != 500 {
		t.Errorf("lock not archived: %+v, %v", lock, err)
	}

	points, err := stores.GlobalPoints.GetAll(ctx)
	if err != nil || len(points) != 2 {
		t.Errorf("global points not archived: %d, %v", len(points), err)
	}

	acct, err := stores.AccountPoints.GetByAccount(ctx, "alice")
	if err != nil || len(acct) != 1 {
		t.Errorf("account point not archived: %d, %v", len(acct), err)
	}

	deps, err := stores.Events.GetDepositsByAccount(ctx, "alice")
	if err != nil || len(deps) != 1 || deps[0].ID != "d1" {
		t.Errorf("deposit event not archived: %+v, %v", deps, err)
	}
}

func TestRecorder_FlushOnIdleReturnsImmediately(t *testing.T) {
	rec := NewRecorder(RecorderOptions{Stores: memStores()})
	defer rec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rec.Flush(ctx); err != nil {
		t.Fatalf("Flush on idle recorder: %v", err)
	}
}

func TestRecorder_CloseDrainsQueue(t *testing.T) {
	stores := memStores()
	rec := NewRecorder(RecorderOptions{Stores: stores, BufferSize: 64})

	for i := 0; i < 20; i++ {
		rec.Record(escrow.Delta{
			SupplyEvent: &domain.SupplyEvent{ID: "s" + string(rune('a'+i)), Supply: uint64(i), Ts: int64(i)},
		})
	}
	rec.Close()

	events, err := stores.Events.GetSupplyByTimeRange(context.Background(), 0, 100)
	if err != nil {
		t.Fatalf("GetSupplyByTimeRange failed: %v", err)
	}
	if len(events) != 20 {
		t.Errorf("archived %d supply events, want 20", len(events))
	}
}

func TestRecorder_WriteAndDropMetrics(t *testing.T) {
	metrics := observability.NewMetrics("test_archive")

	stores := Stores{Events: memory.NewLockEventStore()}
	rec := NewRecorder(RecorderOptions{Stores: stores, Metrics: metrics})

	// A duplicate event id fails the second write.
	ev := &domain.SupplyEvent{ID: "dup", PrevSupply: 0, Supply: 10, Ts: 100}
	rec.Record(escrow.Delta{Supply: 10, SupplyEvent: ev})
	rec.Record(escrow.Delta{Supply: 10, SupplyEvent: ev})
	rec.Close()

	if got := testutil.ToFloat64(metrics.ArchiveWrites); got != 1 {
		t.Errorf("archive writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ArchiveWriteErrors); got != 1 {
		t.Errorf("archive write errors = %v, want 1", got)
	}
}

func TestLoadSnapshot_RoundTrip(t *testing.T) {
	stores := memStores()
	rec := NewRecorder(RecorderOptions{Stores: stores})

	rec.Record(escrow.Delta{
		GlobalPoints: []domain.GlobalPoint{{Epoch: 0, Ts: 500, Marker: 1}, {Epoch: 1, Bias: 100, Slope: 1, Ts: 1000, Marker: 10}},
		AccountPoint: &domain.AccountPoint{Account: "bob", Index: 1, Bias: 100, Slope: 1, Ts: 1000, Marker: 10},
		Lock:         &domain.LockState{Account: "bob", Amount: 300, End: 9000, UpdatedAt: 1000},
		SlopeChanges: []domain.SlopeChange{{Ts: 9000, Delta: -1}},
		Supply:       300,
	})
	rec.Close()

	ctx := context.Background()
	snap, err := LoadSnapshot(ctx, stores)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if snap.Supply != 300 {
		t.Errorf("supply = %d, want 300", snap.Supply)
	}
	if len(snap.Locks) != 1 || snap.Locks[0].Account != "bob" {
		t.Errorf("unexpected locks: %+v", snap.Locks)
	}
	if len(snap.Global) != 2 || len(snap.Accounts) != 1 || len(snap.SlopeChanges) != 1 {
		t.Errorf("unexpected history sizes: %d global, %d account, %d sched",
			len(snap.Global), len(snap.Accounts), len(snap.SlopeChanges))
	}
}

func TestLoadSnapshot_RequiresCoreStores(t *testing.T) {
	_, err := LoadSnapshot(context.Background(), Stores{})
	if err == nil {
		t.Fatal("expected error for missing stores")
	}
}
