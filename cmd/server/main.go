// Package main runs the vote-escrow ledger service: the accounting engine,
// its HTTP API, the marker feed follower, periodic checkpoint sweeps and the
// storage archiver.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vote-escrow-ledger/internal/api"
	"vote-escrow-ledger/internal/archive"
	"vote-escrow-ledger/internal/config"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/marker"
	"vote-escrow-ledger/internal/observability"
	"vote-escrow-ledger/internal/scheduler"
	chstore "vote-escrow-ledger/internal/storage/clickhouse"
	"vote-escrow-ledger/internal/storage/memory"
	"vote-escrow-ledger/internal/storage/migrations"
	pgstore "vote-escrow-ledger/internal/storage/postgres"
	"vote-escrow-ledger/internal/token"
	"vote-escrow-ledger/internal/whitelist"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	// Marker source: follow the external head feed when configured,
	// otherwise run a local counter.
	var markers escrow.MarkerSource
	var wsSource *marker.WSSource
	if cfg.Marker.FeedURL != "" {
		wsCfg := marker.DefaultWSConfig()
		wsCfg.Metrics = metrics
		wsSource, err = marker.NewWSSource(ctx, cfg.Marker.FeedURL, &wsCfg, log.New(os.Stdout, "[marker] ", log.LstdFlags))
		if err != nil {
			logger.Fatalf("Failed to start marker feed: %v", err)
		}
		markers = wsSource
	} else {
		markers = marker.NewCounter(0)
	}

	// The token ledger backs the asset mover; the vault account holds
	// locked principal. Configured mints seed depositor balances and
	// approve the vault, so locks can be opened right after boot.
	tokens := token.NewLedger()
	for _, m := range cfg.Token.Mints {
		if err := tokens.Mint(m.Account, m.Amount); err != nil {
			logger.Fatalf("Failed to seed token balance for %s: %v", m.Account, err)
		}
		tokens.Approve(m.Account, cfg.Escrow.Vault, m.Amount)
	}
	mover := token.NewEscrowMover(tokens, cfg.Escrow.Vault)

	wl := whitelist.New(cfg.Escrow.Whitelist...)

	recorder := archive.NewRecorder(archive.RecorderOptions{
		Stores:  stores,
		Logger:  log.New(os.Stdout, "[archive] ", log.LstdFlags),
		Metrics: metrics,
	})
	defer recorder.Close()

	ledger, err := bootLedger(ctx, cfg, tokens, escrow.Config{
		Markers:   markers,
		Mover:     mover,
		Whitelist: wl,
		Sink:      recorder,
	}, stores, logger)
	if err != nil {
		logger.Fatalf("Failed to boot ledger: %v", err)
	}
	metrics.UpdateLedgerState(ledger.Epoch(), ledger.Supply())

	sched := scheduler.NewScheduler(ledger, recorder, metrics, log.New(os.Stdout, "[scheduler] ", log.LstdFlags))
	if err := sched.RegisterAll(cfg.Schedule.CheckpointCron, cfg.Schedule.FlushCron); err != nil {
		logger.Fatalf("Failed to register scheduled tasks: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Metrics endpoint.
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsHandler()}
	go func() {
		logger.Printf("Metrics listening on %s", cfg.Server.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("Metrics server error: %v", err)
		}
	}()

	// API endpoint.
	apiSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.New(ledger, tokens, cfg.Escrow.Vault, wl, metrics, logger),
	}
	go func() {
		logger.Printf("API listening on %s", cfg.Server.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("API server error: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("API shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Metrics shutdown: %v", err)
	}
	if wsSource != nil {
		wsSource.Close()
	}
	if err := recorder.Flush(shutdownCtx); err != nil {
		logger.Printf("Archive flush: %v", err)
	}

	logger.Println("Shutdown complete")
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// createStores builds the archive backends: in-memory for the default
// backend, PostgreSQL for state and events plus ClickHouse for point
// history when the db backend is configured.
func createStores(ctx context.Context, cfg *config.Config) (archive.Stores, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return archive.Stores{
			Locks:         memory.NewLockStore(),
			SlopeChanges:  memory.NewSlopeChangeStore(),
			GlobalPoints:  memory.NewGlobalPointStore(),
			AccountPoints: memory.NewAccountPointStore(),
			Events:        memory.NewLockEventStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return archive.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return archive.Stores{}, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return archive.Stores{}, nil, fmt.Errorf("run clickhouse migrations: %w", err)
	}

	stores := archive.Stores{
		Locks:         pgstore.NewLockStore(pool),
		SlopeChanges:  pgstore.NewSlopeChangeStore(pool),
		GlobalPoints:  chstore.NewGlobalPointStore(chConn),
		AccountPoints: chstore.NewAccountPointStore(chConn),
		Events:        pgstore.NewLockEventStore(pool),
	}
	cleanup := func() {
		pool.Close()
		chConn.Close()
	}
	return stores, cleanup, nil
}

// bootLedger restores the ledger from archived history when the db backend
// holds any, otherwise starts fresh. On restore the vault is minted the
// restored locked supply so archived locks stay withdrawable.
func bootLedger(ctx context.Context, cfg *config.Config, tokens *token.Ledger, escrowCfg escrow.Config, stores archive.Stores, logger *log.Logger) (*escrow.Ledger, error) {
	if cfg.Storage.Backend == "memory" {
		return escrow.New(escrowCfg), nil
	}

	snap, err := archive.LoadSnapshot(ctx, stores)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if len(snap.Global) == 0 {
		logger.Println("No archived history, starting fresh")
		return escrow.New(escrowCfg), nil
	}

	logger.Printf("Restoring ledger: %d locks, %d global points, supply %d",
		len(snap.Locks), len(snap.Global), snap.Supply)
	if snap.Supply > 0 {
		if err := tokens.Mint(cfg.Escrow.Vault, snap.Supply); err != nil {
			return nil, fmt.Errorf("restore vault balance: %w", err)
		}
	}
	return escrow.NewFromSnapshot(escrowCfg, *snap)
}
