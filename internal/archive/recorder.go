// Package archive persists committed ledger operations to durable storage
// and rebuilds boot snapshots from it.
package archive

import (
	"context"
	"log"
	"sync"
	"time"

	"vote-escrow-ledger/internal/domain"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/observability"
	"vote-escrow-ledger/internal/storage"
)

// Stores groups the backends a Recorder writes to. Any nil store is skipped,
// so a deployment can archive events without point history or vice versa.
type Stores struct {
	Locks         storage.LockStore
	SlopeChanges  storage.SlopeChangeStore
	GlobalPoints  storage.GlobalPointStore
	AccountPoints storage.AccountPointStore
	Events        storage.LockEventStore
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Stores       Stores
	BufferSize   int           // Default: 256
	WriteTimeout time.Duration // Default: 10s per delta
	Logger       *log.Logger
	Metrics      *observability.Metrics
}

// Recorder is an asynchronous escrow.DeltaSink. Record never blocks the
// ledger's write path: deltas are queued and drained by a single worker
// goroutine so storage latency cannot stall lifecycle operations.
type Recorder struct {
	stores       Stores
	queue        chan escrow.Delta
	writeTimeout time.Duration
	logger       *log.Logger
	metrics      *observability.Metrics

	wg       sync.WaitGroup
	stopOnce sync.Once
	stop     chan struct{}

	mu      sync.Mutex
	pending int
	idle    chan struct{} // closed and replaced whenever pending drops to 0
}

// NewRecorder creates a Recorder and starts its worker.
func NewRecorder(opts RecorderOptions) *Recorder {
	bufferSize := opts.BufferSize
	if bufferSize == 0 {
		bufferSize = 256
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	r := &Recorder{
		stores:       opts.Stores,
		queue:        make(chan escrow.Delta, bufferSize),
		writeTimeout: writeTimeout,
		logger:       logger,
		metrics:      opts.Metrics,
		stop:         make(chan struct{}),
		idle:         make(chan struct{}),
	}
	close(r.idle)

	r.wg.Add(1)
	go r.run()

	return r
}

// Compile-time interface check.
var _ escrow.DeltaSink = (*Recorder)(nil)

// Record queues a committed delta for archival. When the queue is full the
// delta is dropped and logged; the ledger itself remains authoritative.
func (r *Recorder) Record(d escrow.Delta) {
	r.mu.Lock()
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
	r.mu.Unlock()

	select {
	case r.queue <- d:
	default:
		r.done()
		r.metrics.RecordArchiveWriteError()
		r.logger.Printf("[archive] queue full, dropping delta (supply=%d)", d.Supply)
	}
	r.metrics.SetArchiveQueueDepth(len(r.queue))
}

// Flush blocks until every queued delta has been written or ctx expires.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case d := <-r.queue:
			r.write(d)
			r.done()
			r.metrics.SetArchiveQueueDepth(len(r.queue))
		case <-r.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case d := <-r.queue:
					r.write(d)
					r.done()
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) done() {
	r.mu.Lock()
	r.pending--
	if r.pending == 0 {
		close(r.idle)
	}
	r.mu.Unlock()
}

// write persists one delta. Failures are logged, not retried: the stores are
// a replica of in-memory state and a missed row is repaired by the next
// snapshot rebuild.
func (r *Recorder) write(d escrow.Delta) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	failed := false
	fail := func(what string, err error) {
		failed = true
		r.logger.Printf("[archive] %s: %v", what, err)
	}

	if r.stores.GlobalPoints != nil && len(d.GlobalPoints) > 0 {
		batch := make([]*domain.GlobalPoint, len(d.GlobalPoints))
		for i := range d.GlobalPoints {
			batch[i] = &d.GlobalPoints[i]
		}
		if err := r.stores.GlobalPoints.InsertBulk(ctx, batch); err != nil {
			fail("insert global points", err)
		}
	}
	if r.stores.AccountPoints != nil && d.AccountPoint != nil {
		if err := r.stores.AccountPoints.InsertBulk(ctx, []*domain.AccountPoint{d.AccountPoint}); err != nil {
			fail("insert account point", err)
		}
	}
	if r.stores.Locks != nil && d.Lock != nil {
		if err := r.stores.Locks.Upsert(ctx, d.Lock); err != nil {
			fail("upsert lock", err)
		}
	}
	if r.stores.SlopeChanges != nil {
		for i := range d.SlopeChanges {
			if err := r.stores.SlopeChanges.Upsert(ctx, &d.SlopeChanges[i]); err != nil {
				fail("upsert slope change", err)
			}
		}
	}
	if r.stores.Events != nil {
		if d.Deposit != nil {
			if err := r.stores.Events.InsertDeposit(ctx, d.Deposit); err != nil {
				fail("insert deposit event", err)
			}
		}
		if d.Withdraw != nil {
			if err := r.stores.Events.InsertWithdraw(ctx, d.Withdraw); err != nil {
				fail("insert withdraw event", err)
			}
		}
		if d.SupplyEvent != nil {
			if err := r.stores.Events.InsertSupply(ctx, d.SupplyEvent); err != nil {
				fail("insert supply event", err)
			}
		}
	}

	if failed {
		r.metrics.RecordArchiveWriteError()
	} else {
		r.metrics.RecordArchiveWrite()
	}
}
