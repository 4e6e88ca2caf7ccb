// Package cache holds derived views (month reports, dashboards) keyed per
// user so repeated reads skip the store.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"moneybook/internal/log"
)

type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// DeletePrefix drops every key starting with prefix and returns how many went.
	DeletePrefix(prefix string) int
	Size() int
}

// Cleaner is implemented by caches whose entries expire.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically purges expired entries from registered caches.
type Janitor struct {
	mu      sync.Mutex
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{caches: caches}
}

func (j *Janitor) Register(c Cleaner) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.caches = append(j.caches, c)
}

// Sweep cleans every registered cache once and returns the number of
// entries removed.
func (j *Janitor) Sweep() int {
	j.mu.Lock()
	caches := append([]Cleaner(nil), j.caches...)
	j.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// Start sweeps every interval until Stop or ctx is done. Calling Start on a
// running janitor does nothing.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stop = make(chan struct{})
	j.done = make(chan struct{})
	stop, done := j.stop, j.done
	j.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := j.Sweep(); n > 0 {
					slog.DebugContext(ctx, "Expired cache entries removed",
						log.FieldComponent, log.ComponentCache,
						"removed", n)
				}
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the sweep loop and waits for it to exit.
func (j *Janitor) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	stop, done := j.stop, j.done
	j.mu.Unlock()

	close(stop)
	<-done
}
