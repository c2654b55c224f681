// Package scheduler runs the periodic ledger maintenance tasks.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"vote-escrow-ledger/internal/archive"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/observability"
)

// Scheduler manages all cron tasks: the periodic checkpoint sweep that keeps
// the aggregate history current even when no one transacts, and the archive
// flush that bounds how much unwritten history the recorder holds.
type Scheduler struct {
	Cron     *cron.Cron
	Ledger   *escrow.Ledger
	Recorder *archive.Recorder
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ledger *escrow.Ledger, rec *archive.Recorder, metrics *observability.Metrics, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		Cron:     cron.New(),
		Ledger:   ledger,
		Recorder: rec,
		Metrics:  metrics,
		Logger:   logger,
	}
}

// RegisterAll registers the checkpoint and flush tasks.
func (s *Scheduler) RegisterAll(checkpointCron, flushCron string) error {
	if _, err := s.Cron.AddFunc(checkpointCron, s.checkpointTask); err != nil {
		return fmt.Errorf("register checkpoint task: %w", err)
	}
	if s.Recorder != nil {
		if _, err := s.Cron.AddFunc(flushCron, s.flushTask); err != nil {
			return fmt.Errorf("register flush task: %w", err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Println("[scheduler] started")
}

// Stop stops the cron scheduler and waits for running tasks.
func (s *Scheduler) Stop() {
	ctx := s.Cron.Stop()
	<-ctx.Done()
	s.Logger.Println("[scheduler] stopped")
}

// RunCheckpointNow executes the checkpoint task immediately.
func (s *Scheduler) RunCheckpointNow() {
	s.checkpointTask()
}

func (s *Scheduler) checkpointTask() {
	before := s.Ledger.Epoch()
	start := time.Now()
	if err := s.Ledger.Checkpoint(); err != nil {
		s.Logger.Printf("[scheduler] checkpoint failed: %v", err)
		s.Metrics.RecordOperationError("checkpoint", "sweep")
		return
	}
	after := s.Ledger.Epoch()
	s.Metrics.RecordOperation("checkpoint", time.Since(start).Seconds())
	s.Metrics.ObserveSweep(after - before)
	s.Metrics.UpdateLedgerState(after, s.Ledger.Supply())
}

func (s *Scheduler) flushTask() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Recorder.Flush(ctx); err != nil {
		s.Logger.Printf("[scheduler] archive flush timed out: %v", err)
	}
}
