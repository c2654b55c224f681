// Package api exposes the ledger over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vote-escrow-ledger/internal/addr"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/observability"
	"vote-escrow-ledger/internal/token"
	"vote-escrow-ledger/internal/whitelist"
)

// Server is the ledger HTTP API server.
type Server struct {
	ledger    *escrow.Ledger
	tokens    *token.Ledger
	vault     string
	whitelist *whitelist.List
	metrics   *observability.Metrics
	logger    *log.Logger
	router    chi.Router
	started   time.Time
}

// New creates a new Server. tokens and vault back the token admin routes;
// a nil tokens ledger disables them. The whitelist may be nil when contract
// callers are not served; metrics may be nil.
func New(ledger *escrow.Ledger, tokens *token.Ledger, vault string, wl *whitelist.List, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		ledger:    ledger,
		tokens:    tokens,
		vault:     vault,
		whitelist: wl,
		metrics:   metrics,
		logger:    logger,
		started:   time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/accounts/{account}", func(r chi.Router) {
			r.Get("/lock", s.handleGetLock)
			r.Get("/power", s.handleGetPower)
		})

		r.Get("/supply", s.handleGetSupply)

		r.Post("/locks", s.handleCreateLock)
		r.Post("/locks/amount", s.handleIncreaseAmount)
		r.Post("/locks/unlock-time", s.handleIncreaseUnlockTime)
		r.Post("/locks/deposit-for", s.handleDepositFor)
		r.Post("/withdrawals", s.handleWithdraw)
		r.Post("/checkpoint", s.handleCheckpoint)

		r.Get("/whitelist", s.handleWhitelistList)
		r.Put("/whitelist/{account}", s.handleWhitelistAdd)
		r.Delete("/whitelist/{account}", s.handleWhitelistRemove)

		if s.tokens != nil {
			r.Route("/token", func(r chi.Router) {
				r.Post("/mint", s.handleTokenMint)
				r.Post("/approve", s.handleTokenApprove)
				r.Get("/balances/{account}", s.handleTokenBalance)
			})
		}
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Seconds(),
		"epoch":  s.ledger.Epoch(),
	})
}

// writeJSON writes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, escrow.ErrNoLock):
		status = http.StatusNotFound
	case errors.Is(err, escrow.ErrLockExists):
		status = http.StatusConflict
	case errors.Is(err, escrow.ErrContractNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrZeroAmount),
		errors.Is(err, escrow.ErrAmountTooLarge),
		errors.Is(err, escrow.ErrUnlockInPast),
		errors.Is(err, escrow.ErrUnlockTooFar),
		errors.Is(err, escrow.ErrUnlockNotExtended),
		errors.Is(err, escrow.ErrLockExpired),
		errors.Is(err, escrow.ErrLockNotExpired),
		errors.Is(err, escrow.ErrMarkerInFuture),
		errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance),
		errors.Is(err, token.ErrOverflow),
		errors.Is(err, addr.ErrEmpty),
		errors.Is(err, addr.ErrBadLength),
		errors.Is(err, addr.ErrNotOnCurve):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Printf("[api] internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
