package api

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"vote-escrow-ledger/internal/curve"
	"vote-escrow-ledger/internal/escrow"
	"vote-escrow-ledger/internal/observability"
	"vote-escrow-ledger/internal/token"
	"vote-escrow-ledger/internal/whitelist"
)

var testBase = curve.FloorWeek(1_700_000_000)

type fixedClock struct{ t int64 }

func (c *fixedClock) Now() int64 { return c.t }

func testAddress(seed byte) string {
	s := make([]byte, ed25519.SeedSize)
	s[0] = seed
	pub := ed25519.NewKeyFromSeed(s).Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

func testServer(t *testing.T) (*Server, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: testBase}
	wl := whitelist.New()
	ledger := escrow.New(escrow.Config{Clock: clock, Whitelist: wl})
	return New(ledger, nil, "", wl, nil, nil), clock
}

// fundedServer wires a real token mover behind the escrow, as cmd/server
// does, so deposits must pass balance and allowance checks.
func fundedServer(t *testing.T, metrics *observability.Metrics) (*Server, *token.Ledger, *fixedClock) {
	t.Helper()
	clock := &fixedClock{t: testBase}
	wl := whitelist.New()
	vault := testAddress(250)
	tokens := token.NewLedger()
	ledger := escrow.New(escrow.Config{
		Clock:     clock,
		Whitelist: wl,
		Mover:     token.NewEscrowMover(tokens, vault),
	})
	return New(ledger, tokens, vault, wl, metrics, nil), tokens, clock
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestCreateLockAndQueryPower(t *testing.T) {
	s, _ := testServer(t)
	alice := testAddress(1)

	rec := doJSON(t, s, http.MethodPost, "/api/locks", map[string]any{
		"account":     alice,
		"amount":      1000,
		"unlock_time": testBase + 52*curve.Week,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create lock: status %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+alice+"/power", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get power: status %d", rec.Code)
	}
	var resp struct {
		Power uint64 `json:"power"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Power == 0 || resp.Power > 1000 {
		t.Errorf("power = %d, want within (0, 1000]", resp.Power)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/supply", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get supply: status %d", rec.Code)
	}
	var supply struct {
		Power  uint64 `json:"power"`
		Locked uint64 `json:"locked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &supply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if supply.Locked != 1000 {
		t.Errorf("locked = %d, want 1000", supply.Locked)
	}
	if supply.Power != resp.Power {
		t.Errorf("total power %d != account power %d for a single lock", supply.Power, resp.Power)
	}
}

func TestCreateLock_ErrorMapping(t *testing.T) {
	s, _ := testServer(t)
	alice := testAddress(1)

	cases := []struct {
		name string
		body map[string]any
		want int
	}{
		{"bad address", map[string]any{"account": "not-an-address", "amount": 10, "unlock_time": testBase + curve.Week}, http.StatusUnprocessableEntity},
		{"zero amount", map[string]any{"account": alice, "amount": 0, "unlock_time": testBase + curve.Week}, http.StatusUnprocessableEntity},
		{"unlock in past", map[string]any{"account": alice, "amount": 10, "unlock_time": testBase - curve.Week}, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		rec := doJSON(t, s, http.MethodPost, "/api/locks", c.body)
		if rec.Code != c.want {
			t.Errorf("%s: status %d, want %d", c.name, rec.Code, c.want)
		}
	}

	// Duplicate lock conflicts.
	body := map[string]any{"account": alice, "amount": 10, "unlock_time": testBase + 4*curve.Week}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusCreated {
		t.Fatalf("first create: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate create: status %d, want 409", rec.Code)
	}

	// Withdraw before expiry is rejected, unknown account is 404.
	if rec := doJSON(t, s, http.MethodPost, "/api/withdrawals", map[string]any{"account": alice}); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("early withdraw: status %d, want 422", rec.Code)
	}
	bob := testAddress(2)
	if rec := doJSON(t, s, http.MethodPost, "/api/withdrawals", map[string]any{"account": bob}); rec.Code != http.StatusNotFound {
		t.Errorf("withdraw without lock: status %d, want 404", rec.Code)
	}
}

func TestContractCaller_ForbiddenUntilWhitelisted(t *testing.T) {
	s, _ := testServer(t)
	contract := testAddress(3)

	body := map[string]any{
		"account":     contract,
		"contract":    true,
		"amount":      100,
		"unlock_time": testBase + 8*curve.Week,
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusForbidden {
		t.Fatalf("unwhitelisted contract: status %d, want 403", rec.Code)
	}

	if rec := doJSON(t, s, http.MethodPut, "/api/whitelist/"+contract, nil); rec.Code != http.StatusOK {
		t.Fatalf("whitelist add: status %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusCreated {
		t.Errorf("whitelisted contract: status %d, want 201", rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/whitelist", nil)
	var wl struct {
		Entries []string `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &wl); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(wl.Entries) != 1 || wl.Entries[0] != contract {
		t.Errorf("whitelist entries: %+v", wl.Entries)
	}

	if rec := doJSON(t, s, http.MethodDelete, "/api/whitelist/"+contract, nil); rec.Code != http.StatusOK {
		t.Errorf("whitelist remove: status %d", rec.Code)
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	s, clock := testServer(t)
	alice := testAddress(1)
	end := testBase + 8*curve.Week

	if rec := doJSON(t, s, http.MethodPost, "/api/locks", map[string]any{"account": alice, "amount": 500, "unlock_time": end}); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks/amount", map[string]any{"account": alice, "amount": 250}); rec.Code != http.StatusOK {
		t.Fatalf("increase amount: %d %s", rec.Code, rec.Body)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks/unlock-time", map[string]any{"account": alice, "unlock_time": end + 8*curve.Week}); rec.Code != http.StatusOK {
		t.Fatalf("increase unlock time: %d %s", rec.Code, rec.Body)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/accounts/"+alice+"/lock", nil)
	var lock struct {
		Amount uint64 `json:"amount"`
		End    int64  `json:"end"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &lock); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lock.Amount != 750 || lock.End != end+8*curve.Week {
		t.Errorf("lock = %+v", lock)
	}

	// Historical query at a past timestamp.
	clock.t = end + 9*curve.Week
	if rec := doJSON(t, s, http.MethodPost, "/api/checkpoint", nil); rec.Code != http.StatusOK {
		t.Fatalf("checkpoint: %d", rec.Code)
	}
	path := fmt.Sprintf("/api/accounts/%s/power?at=%d", alice, testBase)
	if rec := doJSON(t, s, http.MethodGet, path, nil); rec.Code != http.StatusOK {
		t.Errorf("historical power: %d", rec.Code)
	}

	// Expired lock withdraws cleanly.
	if rec := doJSON(t, s, http.MethodPost, "/api/withdrawals", map[string]any{"account": alice}); rec.Code != http.StatusOK {
		t.Fatalf("withdraw: %d %s", rec.Code, rec.Body)
	}
	var after struct {
		Power uint64 `json:"power"`
	}
	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+alice+"/power", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &after); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if after.Power != 0 {
		t.Errorf("power after withdraw = %d, want 0", after.Power)
	}
}

func TestDepositRequiresFundedAllowance(t *testing.T) {
	s, tokens, clock := fundedServer(t, nil)
	alice := testAddress(1)
	end := testBase + 8*curve.Week

	// Without a balance and vault allowance the deposit fails and the
	// token error maps to 422, not 500.
	body := map[string]any{"account": alice, "amount": 100, "unlock_time": end}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unfunded create: status %d, want 422 (body %s)", rec.Code, rec.Body)
	}
	if lock := doJSON(t, s, http.MethodGet, "/api/accounts/"+alice+"/lock", nil); lock.Code != http.StatusOK {
		t.Fatalf("get lock: %d", lock.Code)
	}

	// Fund and approve over the token routes, then the deposit commits.
	if rec := doJSON(t, s, http.MethodPost, "/api/token/mint", map[string]any{"account": alice, "amount": 100}); rec.Code != http.StatusOK {
		t.Fatalf("mint: status %d, body %s", rec.Code, rec.Body)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/token/approve", map[string]any{"owner": alice, "amount": 100}); rec.Code != http.StatusOK {
		t.Fatalf("approve: status %d, body %s", rec.Code, rec.Body)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusCreated {
		t.Fatalf("funded create: status %d, body %s", rec.Code, rec.Body)
	}
	if got := tokens.BalanceOf(alice); got != 0 {
		t.Errorf("alice balance after lock = %d, want 0", got)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/token/balances/"+alice, nil)
	var bal struct {
		Balance   uint64 `json:"balance"`
		Allowance uint64 `json:"allowance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bal.Balance != 0 || bal.Allowance != 0 {
		t.Errorf("balance view = %+v, want spent", bal)
	}

	// Expiry pays the principal back out of the vault.
	clock.t = end + curve.Week
	if rec := doJSON(t, s, http.MethodPost, "/api/withdrawals", map[string]any{"account": alice}); rec.Code != http.StatusOK {
		t.Fatalf("withdraw: status %d, body %s", rec.Code, rec.Body)
	}
	if got := tokens.BalanceOf(alice); got != 100 {
		t.Errorf("alice balance after withdraw = %d, want 100", got)
	}
}

func TestLifecycleMetricsRecorded(t *testing.T) {
	metrics := observability.NewMetrics("test_api_lifecycle")
	s, tokens, _ := fundedServer(t, metrics)
	alice := testAddress(1)

	// A rejected deposit counts an error and a rollback (the token move
	// failed after internal state was staged).
	body := map[string]any{"account": alice, "amount": 50, "unlock_time": testBase + 8*curve.Week}
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unfunded create: %d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics.RollbacksTotal); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.OperationErrors.WithLabelValues("create_lock", "token_move")); got != 1 {
		t.Errorf("operation errors = %v, want 1", got)
	}

	if err := tokens.Mint(alice, 50); err != nil {
		t.Fatalf("mint: %v", err)
	}
	tokens.Approve(alice, s.vault, 50)
	if rec := doJSON(t, s, http.MethodPost, "/api/locks", body); rec.Code != http.StatusCreated {
		t.Fatalf("funded create: %d", rec.Code)
	}
	if got := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues("create_lock")); got != 1 {
		t.Errorf("operations = %v, want 1", got)
	}
}

func TestMarkerQueryValidation(t *testing.T) {
	s, _ := testServer(t)
	alice := testAddress(1)

	if rec := doJSON(t, s, http.MethodGet, "/api/accounts/"+alice+"/power?marker=zzz", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad marker: status %d, want 400", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodGet, "/api/supply?marker=999", nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("future marker: status %d, want 422", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := testServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}
}
