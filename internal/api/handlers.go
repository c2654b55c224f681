package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"vote-escrow-ledger/internal/addr"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/token"
)

type lockRequest struct {
	Account    string `json:"account"`
	Contract   bool   `json:"contract"`
	Amount     uint64 `json:"amount"`
	UnlockTime int64  `json:"unlock_time"`
}

type depositForRequest struct {
	Payer    string `json:"payer"`
	Contract bool   `json:"contract"`
	Account  string `json:"account"`
	Amount   uint64 `json:"amount"`
}

type mintRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type approveRequest struct {
	Owner  string `json:"owner"`
	Amount uint64 `json:"amount"`
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}

// validAddr rejects the request when the address fails validation.
func (s *Server) validAddr(w http.ResponseWriter, account string) bool {
	if err := addr.Validate(account); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (s *Server) observe(endpoint string, start time.Time) {
	if s.metrics != nil {
		s.metrics.QueryLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}

// recordOutcome feeds the lifecycle metrics. A token move error means the
// ledger already rolled the operation back.
func (s *Server) recordOutcome(op string, start time.Time, err error) {
	if err == nil {
		s.metrics.RecordOperation(op, time.Since(start).Seconds())
		return
	}
	if isTokenMoveError(err) {
		s.metrics.RecordRollback()
		s.metrics.RecordOperationError(op, "token_move")
		return
	}
	s.metrics.RecordOperationError(op, "rejected")
}

func isTokenMoveError(err error) bool {
	return errors.Is(err, token.ErrInsufficientBalance) ||
		errors.Is(err, token.ErrInsufficientAllowance) ||
		errors.Is(err, token.ErrOverflow)
}

func (s *Server) handleCreateLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Account) {
		return
	}

	start := time.Now()
	caller := escrow.Caller{Addr: req.Account, Contract: req.Contract}
	err := s.ledger.CreateLock(r.Context(), caller, req.Amount, req.UnlockTime)
	s.recordOutcome("create_lock", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lock := s.ledger.LockOf(req.Account)
	writeJSON(w, http.StatusCreated, map[string]any{
		"account": req.Account,
		"amount":  lock.Amount,
		"end":     lock.End,
	})
}

func (s *Server) handleIncreaseAmount(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Account) {
		return
	}

	start := time.Now()
	caller := escrow.Caller{Addr: req.Account, Contract: req.Contract}
	err := s.ledger.IncreaseAmount(r.Context(), caller, req.Amount)
	s.recordOutcome("increase_amount", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lock := s.ledger.LockOf(req.Account)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"amount":  lock.Amount,
		"end":     lock.End,
	})
}

func (s *Server) handleIncreaseUnlockTime(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Account) {
		return
	}

	start := time.Now()
	caller := escrow.Caller{Addr: req.Account, Contract: req.Contract}
	err := s.ledger.IncreaseUnlockTime(r.Context(), caller, req.UnlockTime)
	s.recordOutcome("increase_unlock_time", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lock := s.ledger.LockOf(req.Account)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"amount":  lock.Amount,
		"end":     lock.End,
	})
}

func (s *Server) handleDepositFor(w http.ResponseWriter, r *http.Request) {
	var req depositForRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Payer) || !s.validAddr(w, req.Account) {
		return
	}

	start := time.Now()
	caller := escrow.Caller{Addr: req.Payer, Contract: req.Contract}
	err := s.ledger.DepositFor(r.Context(), caller, req.Account, req.Amount)
	s.recordOutcome("deposit_for", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lock := s.ledger.LockOf(req.Account)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"amount":  lock.Amount,
		"end":     lock.End,
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Account) {
		return
	}

	start := time.Now()
	caller := escrow.Caller{Addr: req.Account, Contract: req.Contract}
	amount, err := s.ledger.Withdraw(r.Context(), caller)
	s.recordOutcome("withdraw", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"amount":  amount,
	})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := s.ledger.Checkpoint()
	s.recordOutcome("checkpoint", start, err)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"epoch": s.ledger.Epoch()})
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !s.validAddr(w, account) {
		return
	}

	lock := s.ledger.LockOf(account)
	writeJSON(w, http.StatusOK, map[string]any{
		"account": account,
		"amount":  lock.Amount,
		"end":     lock.End,
		"power":   s.ledger.PowerOf(account),
	})
}

// handleGetPower reads the voting power of an account: current by default,
// historical with ?at=<unix seconds> or ?marker=<sequence marker>.
func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	defer s.observe("account_power", time.Now())

	account := chi.URLParam(r, "account")
	if !s.validAddr(w, account) {
		return
	}

	q := r.URL.Query()
	switch {
	case q.Get("marker") != "":
		marker, err := strconv.ParseUint(q.Get("marker"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid marker"})
			return
		}
		power, err := s.ledger.PowerOfAtMarker(account, marker)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"account": account, "marker": marker, "power": power})

	case q.Get("at") != "":
		at, err := strconv.ParseInt(q.Get("at"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timestamp"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"account": account, "at": at, "power": s.ledger.PowerOfAt(account, at)})

	default:
		writeJSON(w, http.StatusOK, map[string]any{"account": account, "power": s.ledger.PowerOf(account)})
	}
}

// handleGetSupply reads the aggregate voting power, current or historical.
func (s *Server) handleGetSupply(w http.ResponseWriter, r *http.Request) {
	defer s.observe("supply", time.Now())

	q := r.URL.Query()
	var (
		power uint64
		err   error
		resp  = map[string]any{}
	)

	switch {
	case q.Get("marker") != "":
		var marker uint64
		marker, err = strconv.ParseUint(q.Get("marker"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid marker"})
			return
		}
		resp["marker"] = marker
		power, err = s.ledger.TotalPowerAtMarker(marker)

	case q.Get("at") != "":
		var at int64
		at, err = strconv.ParseInt(q.Get("at"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid timestamp"})
			return
		}
		resp["at"] = at
		power, err = s.ledger.TotalPowerAt(at)

	default:
		power, err = s.ledger.TotalPower()
	}

	if err != nil {
		s.writeError(w, err)
		return
	}

	resp["power"] = power
	resp["locked"] = s.ledger.Supply()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Account) {
		return
	}
	if req.Amount == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "amount must be positive"})
		return
	}
	if err := s.tokens.Mint(req.Account, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account": req.Account,
		"balance": s.tokens.BalanceOf(req.Account),
	})
}

// handleTokenApprove sets the vault's allowance over the owner's balance.
// Deposits pull locked principal through that allowance.
func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decodeBody(w, r, &req) || !s.validAddr(w, req.Owner) {
		return
	}
	s.tokens.Approve(req.Owner, s.vault, req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":     req.Owner,
		"spender":   s.vault,
		"allowance": s.tokens.Allowance(req.Owner, s.vault),
	})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !s.validAddr(w, account) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account":   account,
		"balance":   s.tokens.BalanceOf(account),
		"allowance": s.tokens.Allowance(account, s.vault),
	})
}

func (s *Server) handleWhitelistList(w http.ResponseWriter, _ *http.Request) {
	if s.whitelist == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []string{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.whitelist.Entries()})
}

func (s *Server) handleWhitelistAdd(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !s.validAddr(w, account) {
		return
	}
	if s.whitelist == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "whitelist disabled"})
		return
	}
	s.whitelist.Add(account)
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.whitelist.Entries()})
}

func (s *Server) handleWhitelistRemove(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if !s.validAddr(w, account) {
		return
	}
	if s.whitelist == nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "whitelist disabled"})
		return
	}
	s.whitelist.Remove(account)
	writeJSON(w, http.StatusOK, map[string]any{"entries": s.whitelist.Entries()})
}
