package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/docstore/memory"
	"moneybook/internal/ledger"
	"moneybook/internal/log"
	"moneybook/internal/middleware/ratelimit"
	"moneybook/internal/services"
	"moneybook/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	srv      *Server
	verifier *session.Verifier
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	return newTestEnvOn(t, store, mutate)
}

func newTestEnvOn(t *testing.T, store docstore.Store, mutate func(*Config)) *testEnv {
	t.Helper()
	verifier := session.NewVerifier(testSecret, "moneybook")
	svc := services.NewFinanceService(store, ledger.NewRelaxed(store), nil, time.UTC)
	cfg := DefaultConfig(":0")
	cfg.Logger = log.Discard()
	if mutate != nil {
		mutate(&cfg)
	}
	srv := NewServer(cfg, svc, session.NewManager(store, verifier))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.verifier.Issue(session.Identity{UserID: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	}

	require.NoError(t, env.srv.Shutdown(context.Background()))
	rr := env.do(t, http.MethodGet, "/readyz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	// second shutdown is a no-op
	assert.NoError(t, env.srv.Shutdown(context.Background()))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/wallets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			env.srv.Handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestSessionSeedsNewUser(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/session", "", `{"token":"`+tok+`"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id := decode[session.Identity](t, rr)
	assert.Equal(t, "alice", id.UserID)

	rr = env.do(t, http.MethodGet, "/api/categories", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Category](t, rr), 13)

	rr = env.do(t, http.MethodGet, "/api/wallets", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	wallets := decode[[]core.Wallet](t, rr)
	require.Len(t, wallets, 1)
	assert.Equal(t, "Cash", wallets[0].Name)
	assert.Equal(t, int64(0), wallets[0].Balance)

	rr = env.do(t, http.MethodPost, "/api/session", "", `{"token":"bogus"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Failed to sign in. Please try again.", decode[errorResponse](t, rr).Error)
}

func TestValidateRegistration(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		body string
		code int
		msg  string
	}{
		{`{"password":"secret1","confirmPassword":"secret1"}`, http.StatusNoContent, ""},
		{`{"password":"secret1","confirmPassword":"secret2"}`, http.StatusBadRequest, "Passwords do not match"},
		{`{"password":"abc","confirmPassword":"abc"}`, http.StatusBadRequest, "Password must be at least 6 characters"},
		{`{"password":1}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		rr := env.do(t, http.MethodPost, "/api/account/validate", "", tt.body)
		assert.Equal(t, tt.code, rr.Code, tt.body)
		if tt.msg != "" {
			assert.Equal(t, tt.msg, decode[errorResponse](t, rr).Error)
		}
	}
}

func TestTransactionLifecycleMovesBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "bob")

	rr := env.do(t, http.MethodPost, "/api/wallets", tok, `{"name":"Bank","type":"bank","icon":"🏦","balance":10000}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	walletID := decode[createdResponse](t, rr).ID

	rr = env.do(t, http.MethodPost, "/api/categories", tok, `{"name":"Rent","type":"expense","icon":"🏠"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	catID := decode[createdResponse](t, rr).ID

	body := `{"type":"expense","amount":2500,"categoryId":"` + catID + `","walletId":"` + walletID + `","date":"2024-03-10T12:00:00Z","note":"march"}`
	rr = env.do(t, http.MethodPost, "/api/transactions", tok, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	txID := decode[createdResponse](t, rr).ID

	balance := func() int64 {
		t.Helper()
		rr := env.do(t, http.MethodGet, "/api/wallets", tok, "")
		require.Equal(t, http.StatusOK, rr.Code)
		for _, w := range decode[[]core.Wallet](t, rr) {
			if w.ID == walletID {
				return w.Balance
			}
		}
		t.Fatalf("wallet %s missing", walletID)
		return 0
	}
	assert.Equal(t, int64(7500), balance())

	rr = env.do(t, http.MethodPatch, "/api/transactions/"+txID, tok, `{"amount":"1.000"}`)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())
	assert.Equal(t, int64(9000), balance())

	rr = env.do(t, http.MethodGet, "/api/transactions/"+txID, tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	tx := decode[core.Transaction](t, rr)
	assert.Equal(t, int64(1000), tx.Amount)
	assert.NotNil(t, tx.UpdatedAt)

	rr = env.do(t, http.MethodGet, "/api/transactions?year=2024&month=3", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Transaction](t, rr), 1)

	rr = env.do(t, http.MethodGet, "/api/transactions?year=2024&month=4", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]core.Transaction](t, rr))

	rr = env.do(t, http.MethodDelete, "/api/transactions/"+txID, tok, "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, int64(10000), balance())

	rr = env.do(t, http.MethodDelete, "/api/transactions/"+txID, tok, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/audit", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[[]json.RawMessage](t, rr))
}

func TestValidationErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "carol")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"zero amount", http.MethodPost, "/api/transactions", `{"type":"expense","amount":0,"categoryId":"c","walletId":"w","date":"2024-03-10T12:00:00Z"}`, http.StatusBadRequest},
		{"unreadable amount", http.MethodPost, "/api/transactions", `{"type":"expense","amount":"ten","categoryId":"c","walletId":"w","date":"2024-03-10T12:00:00Z"}`, http.StatusBadRequest},
		{"missing wallet", http.MethodPost, "/api/transactions", `{"type":"expense","amount":5,"categoryId":"c","date":"2024-03-10T12:00:00Z"}`, http.StatusBadRequest},
		{"bad wallet type", http.MethodPost, "/api/wallets", `{"name":"X","type":"gold","icon":"x"}`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/wallets", `{"name":"X","type":"cash","icon":"x","extra":1}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/categories", ``, http.StatusBadRequest},
		{"bad month query", http.MethodGet, "/api/transactions?month=abc", ``, http.StatusBadRequest},
		{"month out of range", http.MethodGet, "/api/reports/2024/13", ``, http.StatusBadRequest},
		{"bad report type", http.MethodGet, "/api/reports/2024/3?type=transfer", ``, http.StatusBadRequest},
		{"unknown stream", http.MethodGet, "/api/stream/budgets", ``, http.StatusBadRequest},
		{"missing transaction", http.MethodGet, "/api/transactions/nope", ``, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, tt.path, tok, tt.body)
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.NotEmpty(t, decode[errorResponse](t, rr).Error)
		})
	}
}

func TestMonthReportCachingAndInvalidation(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "dave")

	rr := env.do(t, http.MethodGet, "/api/categories", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var food core.Category
	for _, c := range decode[[]core.Category](t, rr) {
		if c.Type == core.Expense {
			food = c
			break
		}
	}
	rr = env.do(t, http.MethodGet, "/api/wallets", tok, "")
	walletID := decode[[]core.Wallet](t, rr)[0].ID

	rr = env.do(t, http.MethodGet, "/api/reports/2024/5", tok, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, int64(0), decode[core.MonthReport](t, rr).Expense)

	rr = env.do(t, http.MethodGet, "/api/reports/2024/5", tok, "")
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))

	body := `{"type":"expense","amount":1200,"categoryId":"` + food.ID + `","walletId":"` + walletID + `","date":"2024-05-02T09:00:00Z"}`
	rr = env.do(t, http.MethodPost, "/api/transactions", tok, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/reports/2024/5?type=expense", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	report := decode[core.MonthReport](t, rr)
	assert.Equal(t, int64(1200), report.Expense)
	require.Len(t, report.Categories, 1)
	assert.Equal(t, food.Name, report.Categories[0].Name)
	assert.InDelta(t, 100.0, report.Categories[0].Percentage, 0.001)

	rr = env.do(t, http.MethodGet, "/api/summary?year=2024&month=5", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[services.Summary](t, rr)
	assert.Equal(t, int64(1200), summary.Expense)
	assert.Equal(t, int64(-1200), summary.TotalBalance)
	assert.Len(t, summary.Recent, 1)
}

func TestUsersAreIsolated(t *testing.T) {
	env := newTestEnv(t, nil)
	erin, frank := env.token(t, "erin"), env.token(t, "frank")

	rr := env.do(t, http.MethodPost, "/api/wallets", erin, `{"name":"Savings","type":"bank","icon":"🏦"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[createdResponse](t, rr).ID

	rr = env.do(t, http.MethodGet, "/api/wallets", frank, "")
	require.Equal(t, http.StatusOK, rr.Code)
	for _, w := range decode[[]core.Wallet](t, rr) {
		assert.NotEqual(t, id, w.ID)
	}
	rr = env.do(t, http.MethodPatch, "/api/wallets/"+id, frank, `{"name":"Mine"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.RateLimit = ratelimit.Config{RequestsPerMinute: 2, CleanupInterval: time.Minute}
	})
	tok := env.token(t, "gina")

	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/api/categories", tok, `{"name":"C","type":"income","icon":"x"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := env.do(t, http.MethodPost, "/api/categories", tok, `{"name":"C","type":"income","icon":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = env.do(t, http.MethodGet, "/api/categories", tok, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStreamDeliversSnapshots(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "hank")
	ts := httptest.NewServer(env.srv.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream/wallets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	nextData := func() []core.Wallet {
		t.Helper()
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				var wallets []core.Wallet
				require.NoError(t, json.Unmarshal([]byte(data), &wallets))
				return wallets
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return nil
	}

	first := nextData()
	require.Len(t, first, 1)
	assert.Equal(t, "Cash", first[0].Name)

	rr := env.do(t, http.MethodPost, "/api/wallets", tok, `{"name":"Card","type":"credit","icon":"💳"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	second := nextData()
	require.Len(t, second, 2)
	assert.Equal(t, "Card", second[1].Name)
}

// pausingStore holds the next transactions List after it has read, so a
// write can land between the read and the caller using the result.
type pausingStore struct {
	docstore.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (p *pausingStore) List(ctx context.Context, collection string, order docstore.Order) ([]docstore.Document, error) {
	docs, err := p.Store.List(ctx, collection, order)
	if strings.HasSuffix(collection, "/"+docstore.Transactions) && p.armed.CompareAndSwap(true, false) {
		p.entered <- struct{}{}
		<-p.release
	}
	return docs, err
}

func TestMonthReportComputedBeforeWriteIsNotCached(t *testing.T) {
	inner := memory.New()
	t.Cleanup(func() { inner.Close() })
	store := &pausingStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	env := newTestEnvOn(t, store, nil)
	tok := env.token(t, "ivy")

	rr := env.do(t, http.MethodGet, "/api/categories", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var food core.Category
	for _, c := range decode[[]core.Category](t, rr) {
		if c.Type == core.Expense {
			food = c
			break
		}
	}
	rr = env.do(t, http.MethodGet, "/api/wallets", tok, "")
	walletID := decode[[]core.Wallet](t, rr)[0].ID

	store.armed.Store(true)
	done := make(chan *httptest.ResponseRecorder, 1)
	go func() { done <- env.do(t, http.MethodGet, "/api/reports/2024/6", tok, "") }()
	<-store.entered

	body := `{"type":"expense","amount":700,"categoryId":"` + food.ID + `","walletId":"` + walletID + `","date":"2024-06-03T09:00:00Z"}`
	rr = env.do(t, http.MethodPost, "/api/transactions", tok, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	close(store.release)
	require.Equal(t, http.StatusOK, (<-done).Code)

	rr = env.do(t, http.MethodGet, "/api/reports/2024/6", tok, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "MISS", rr.Header().Get("X-Cache"))
	assert.Equal(t, int64(700), decode[core.MonthReport](t, rr).Expense)

	rr = env.do(t, http.MethodGet, "/api/reports/2024/6", tok, "")
	assert.Equal(t, "HIT", rr.Header().Get("X-Cache"))
	assert.Equal(t, int64(700), decode[core.MonthReport](t, rr).Expense)
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	env := newTestEnv(t, nil)
	tok := env.token(t, "jack")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- env.srv.Serve(ln) }()

	req, err := http.NewRequest(http.MethodGet, "http://"+ln.Addr().String()+"/api/stream/wallets", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: ") {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, env.srv.Shutdown(ctx))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(<-served, http.ErrServerClosed))

	_, err = io.Copy(io.Discard, resp.Body)
	assert.NoError(t, err, "stream should end cleanly")
}
