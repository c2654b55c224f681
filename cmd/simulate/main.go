// Package main runs a deterministic escrow scenario on a simulated clock:
// a set of accounts lock tokens, time advances week by week with periodic
// checkpoints, and the decaying power curve is printed per step.
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sync/atomic"

	"vote-escrow-ledger/internal/addr"
	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/marker"
	"vote-escrow-ledger/internal/token"
	"vote-escrow-ledger/internal/whitelist"
)

// markersPerWeek approximates a 400ms block interval.
const markersPerWeek = uint64(curve.Week) * 5 / 2

type stepResult struct {
	Week       int      `json:"week"`
	Ts         int64    `json:"ts"`
	Marker     uint64   `json:"marker"`
	Epoch      uint64   `json:"epoch"`
	Supply     uint64   `json:"supply"`
	TotalPower uint64   `json:"total_power"`
	Powers     []uint64 `json:"powers"`
}

func main() {
	numAccounts := flag.Int("accounts", 3, "Number of simulated accounts")
	amount := flag.Uint64("amount", 1000, "Tokens locked per account")
	lockWeeks := flag.Int64("lock-weeks", 52, "Lock duration in weeks")
	runWeeks := flag.Int("weeks", 8, "Weeks of simulated time to run")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)

	if *numAccounts < 1 {
		logger.Fatal("--accounts must be at least 1")
	}
	if *amount == 0 || *amount > curve.MaxLockAmount {
		logger.Fatalf("--amount must be in (0, %d]", curve.MaxLockAmount)
	}
	if *lockWeeks < 1 || *lockWeeks*curve.Week > curve.MaxLockDuration {
		logger.Fatalf("--lock-weeks must be in [1, %d]", curve.MaxLockDuration/curve.Week)
	}

	ctx := context.Background()

	// Simulated time starts on a week boundary so the first unlock rounds
	// exactly to lockWeeks out.
	start := curve.FloorWeek(1_700_000_000)
	var now atomic.Int64
	now.Store(start)
	clock := escrow.ClockFunc(func() int64 { return now.Load() })

	markers := marker.NewCounter(1)

	vault := deriveAddress(0)
	tokens := token.NewLedger()
	mover := token.NewEscrowMover(tokens, vault)

	ledger := escrow.New(escrow.Config{
		Clock:     clock,
		Markers:   markers,
		Mover:     mover,
		Whitelist: whitelist.New(),
	})

	// Fund and lock.
	accounts := make([]string, *numAccounts)
	for i := range accounts {
		accounts[i] = deriveAddress(byte(i + 1))
		if err := tokens.Mint(accounts[i], *amount); err != nil {
			logger.Fatalf("mint: %v", err)
		}
		tokens.Approve(accounts[i], vault, *amount)

		// Stagger unlock times so the decay curves diverge.
		unlock := start + (*lockWeeks+int64(i))*curve.Week
		caller := escrow.Caller{Addr: accounts[i]}
		if err := ledger.CreateLock(ctx, caller, *amount, unlock); err != nil {
			logger.Fatalf("create lock for %s: %v", accounts[i], err)
		}
	}

	logger.Printf("Locked %d tokens for each of %d accounts, running %d weeks",
		*amount, *numAccounts, *runWeeks)

	results := make([]stepResult, 0, *runWeeks+1)
	for week := 0; week <= *runWeeks; week++ {
		if week > 0 {
			now.Add(curve.Week)
			markers.Advance(markersPerWeek)
			if err := ledger.Checkpoint(); err != nil {
				logger.Fatalf("checkpoint at week %d: %v", week, err)
			}
		}

		total, err := ledger.TotalPower()
		if err != nil {
			logger.Fatalf("total power at week %d: %v", week, err)
		}
		step := stepResult{
			Week:       week,
			Ts:         now.Load(),
			Marker:     markers.Current(),
			Epoch:      ledger.Epoch(),
			Supply:     ledger.Supply(),
			TotalPower: total,
			Powers:     make([]uint64, len(accounts)),
		}
		for i, acct := range accounts {
			step.Powers[i] = ledger.PowerOf(acct)
		}
		results = append(results, step)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return
	}
	printResults(results)
}

// deriveAddress builds a deterministic on-curve address from a seed byte.
func deriveAddress(seed byte) string {
	var s [ed25519.SeedSize]byte
	s[0] = seed
	pub := ed25519.NewKeyFromSeed(s[:]).Public().(ed25519.PublicKey)
	return addr.MustEncode(pub)
}

func printResults(results []stepResult) {
	fmt.Printf("%-6s %-12s %-12s %-7s %-10s %-12s %s\n",
		"WEEK", "TS", "MARKER", "EPOCH", "SUPPLY", "TOTAL", "PER-ACCOUNT")
	for _, r := range results {
		fmt.Printf("%-6d %-12d %-12d %-7d %-10d %-12d %v\n",
			r.Week, r.Ts, r.Marker, r.Epoch, r.Supply, r.TotalPower, r.Powers)
	}
}
