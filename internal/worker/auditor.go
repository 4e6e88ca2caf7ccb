package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/ledger"
	"moneybook/internal/log"

	"github.com/robfig/cron/v3"
)

// Auditor periodically recomputes wallet balances for every known user and
// logs the wallets whose stored balance has drifted. It never corrects them.
type Auditor struct {
	store    ledger.Reader
	users    *UserSet
	schedule string
	loc      *time.Location

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

func NewAuditor(store ledger.Reader, users *UserSet, schedule string, loc *time.Location) *Auditor {
	if loc == nil {
		loc = time.UTC
	}
	return &Auditor{store: store, users: users, schedule: schedule, loc: loc}
}

// Start schedules the audit. It returns an error if already running or if
// the schedule does not parse.
func (a *Auditor) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("auditor is already running")
	}

	c := cron.New(cron.WithLocation(a.loc))
	if _, err := c.AddFunc(a.schedule, func() { a.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule audit %q: %w", a.schedule, err)
	}
	c.Start()
	a.cron = c
	a.running = true

	slog.InfoContext(ctx, "Auditor started",
		log.FieldComponent, log.ComponentAudit,
		"schedule", a.schedule)
	return nil
}

// Stop waits for a running audit to finish or ctx to expire.
func (a *Auditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	c := a.cron
	a.running = false
	a.cron = nil
	a.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Auditor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Auditor stop timed out")
		return ctx.Err()
	}
}

func (a *Auditor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// RunOnce audits every known user now and returns the drift found per user.
// A failing user is logged and skipped.
func (a *Auditor) RunOnce(ctx context.Context) map[string][]ledger.Drift {
	found := make(map[string][]ledger.Drift)
	for _, userID := range a.users.List() {
		if ctx.Err() != nil {
			break
		}
		drifts, err := ledger.Audit(ctx, a.store, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Audit failed",
				log.FieldComponent, log.ComponentAudit,
				log.FieldUserID, userID,
				log.FieldError, err)
			continue
		}
		for _, d := range drifts {
			slog.WarnContext(ctx, "Wallet balance drift",
				log.FieldComponent, log.ComponentAudit,
				log.FieldUserID, userID,
				log.FieldWalletID, d.WalletID,
				"stored", d.Stored,
				"expected", d.Expected,
				"delta", d.Delta(),
				"difference", core.FormatAmount(d.Delta()))
		}
		if len(drifts) > 0 {
			found[userID] = drifts
		}
	}
	return found
}
