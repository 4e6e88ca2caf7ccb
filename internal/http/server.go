// Package http exposes the finance service as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"moneybook/internal/cache"
	"moneybook/internal/core"
	"moneybook/internal/log"
	"moneybook/internal/middleware/ratelimit"
	"moneybook/internal/middleware/security"
	"moneybook/internal/middleware/trace"
	"moneybook/internal/services"
	"moneybook/internal/session"

	"golang.org/x/sync/singleflight"
)

type Config struct {
	Addr            string
	ReportCacheSize int
	ReportCacheTTL  time.Duration
	RateLimit       ratelimit.Config
	Headers         security.HeadersConfig
	// SweepInterval is how often expired reports are dropped.
	SweepInterval time.Duration
	// StreamKeepAlive is the comment interval on idle event streams.
	StreamKeepAlive time.Duration
	Logger          *log.Logger
}

func DefaultConfig(addr string) Config {
	return Config{
		Addr:            addr,
		ReportCacheSize: 256,
		ReportCacheTTL:  5 * time.Minute,
		RateLimit:       ratelimit.DefaultConfig(),
		Headers:         security.DefaultHeadersConfig(),
		SweepInterval:   10 * time.Minute,
		StreamKeepAlive: 25 * time.Second,
	}
}

type Server struct {
	http.Server
	svc      *services.FinanceService
	sessions *session.Manager

	// month reports keyed by user, period and type
	reports   *cache.LRUCache[core.MonthReport]
	reportsSF singleflight.Group
	janitor   *cache.Janitor
	limiter   *ratelimit.Limiter

	// bumped on every write of a user; reports computed under an older
	// generation are never cached
	genMu      sync.Mutex
	reportGens map[string]uint64

	keepAlive    time.Duration
	closing      chan struct{}
	draining     atomic.Bool
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Background cache sweeping starts immediately and stops on Shutdown.
func NewServer(cfg Config, svc *services.FinanceService, sessions *session.Manager) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentHTTP})
	}
	if cfg.StreamKeepAlive <= 0 {
		cfg.StreamKeepAlive = 25 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Minute
	}

	s := &Server{
		svc:        svc,
		sessions:   sessions,
		reports:    cache.NewLRUCache[core.MonthReport](cfg.ReportCacheSize, cfg.ReportCacheTTL),
		limiter:    ratelimit.NewLimiter(cfg.RateLimit),
		reportGens: make(map[string]uint64),
		keepAlive:  cfg.StreamKeepAlive,
		closing:    make(chan struct{}),
	}
	s.janitor = cache.NewJanitor(s.reports)
	s.janitor.Start(context.Background(), cfg.SweepInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/session", s.handleSession)
	mux.HandleFunc("POST /api/account/validate", handleValidateRegistration)

	mux.HandleFunc("GET /api/wallets", s.requireUser(s.handleListWallets))
	mux.HandleFunc("POST /api/wallets", s.requireUser(s.handleCreateWallet))
	mux.HandleFunc("PATCH /api/wallets/{id}", s.requireUser(s.handleUpdateWallet))
	mux.HandleFunc("DELETE /api/wallets/{id}", s.requireUser(s.handleDeleteWallet))

	mux.HandleFunc("GET /api/categories", s.requireUser(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.requireUser(s.handleCreateCategory))
	mux.HandleFunc("PATCH /api/categories/{id}", s.requireUser(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.requireUser(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/transactions", s.requireUser(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.requireUser(s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions/{id}", s.requireUser(s.handleGetTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.requireUser(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.requireUser(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/reports/{year}/{month}", s.requireUser(s.handleMonthReport))
	mux.HandleFunc("GET /api/summary", s.requireUser(s.handleSummary))
	mux.HandleFunc("GET /api/audit", s.requireUser(s.handleAudit))
	mux.HandleFunc("GET /api/stream/{collection}", s.requireUser(s.handleStream))

	limited := s.limiter.Middleware(security.ClientIP, isMutation, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldClientIP, security.ClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})

	var handler http.Handler = mux
	handler = limited(handler)
	handler = security.Headers(cfg.Headers)(handler)
	handler = trace.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	// No WriteTimeout: event streams stay open for as long as the client listens.
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Shutdown stops accepting requests, ends open event streams, drains
// in-flight requests and stops the background cleanup. Safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.draining.Store(true)
		close(s.closing)
		s.janitor.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
