// Package ratelimit throttles requests per key with a fixed one-minute window.
package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientInfo
	now     func() time.Time
	hits    atomic.Int64

	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	requestsPerMinute int
	cleanupInterval   time.Duration
}

type clientInfo struct {
	windowStart time.Time
	lastRequest time.Time
	requests    int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
	}
}

// NewLimiter starts a limiter with its cleanup goroutine; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig().CleanupInterval
	}

	rl := &Limiter{
		clients:           make(map[string]*clientInfo),
		now:               time.Now,
		stopCleanup:       make(chan struct{}),
		requestsPerMinute: config.RequestsPerMinute,
		cleanupInterval:   config.CleanupInterval,
	}
	go rl.startCleanup()
	return rl
}

// Allow records one request for key and reports whether it is within the limit.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	client, ok := rl.clients[key]
	if !ok || now.Sub(client.windowStart) >= time.Minute {
		rl.clients[key] = &clientInfo{windowStart: now, lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	if client.requests > rl.requestsPerMinute {
		rl.hits.Add(1)
		return false
	}
	return true
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops keys idle for more than 10 minutes.
func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * time.Minute)
	removed := 0
	for key, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Hits is the number of rejected requests so far.
func (rl *Limiter) Hits() int64 {
	return rl.hits.Load()
}

func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware limits requests selected by applies, keyed by key(r). A nil
// applies limits every request.
func (rl *Limiter) Middleware(key func(*http.Request) string, applies func(*http.Request) bool, onLimit http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (applies == nil || applies(r)) && !rl.Allow(key(r)) {
				w.Header().Set("Retry-After", "60")
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
