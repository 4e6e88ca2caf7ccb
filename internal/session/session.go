// Package session resolves who is signed in and prepares a first-time
// user's default data.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"

	"golang.org/x/sync/singleflight"
)

// Identity is the opaque user identity handed out by the auth provider.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Context is the session state exposed to the rest of the app. Loading
// stays true until the first identity resolution finishes.
type Context struct {
	Identity *Identity
	Loading  bool
}

func (c Context) Authenticated() bool {
	return c.Identity != nil
}

// Manager serves two kinds of caller. A multi-user server calls
// Authenticate once per request and never touches the current session.
// A single-user client embedding the package signs in with SignIn, reads
// Current and follows changes through OnIdentityChange.
type Manager struct {
	store    docstore.Store
	verifier *Verifier

	seeds  singleflight.Group
	seedMu sync.Mutex
	seeded map[string]bool

	mu        sync.Mutex
	current   Context
	listeners map[uint64]func(*Identity)
	next      uint64
}

func NewManager(store docstore.Store, verifier *Verifier) *Manager {
	return &Manager{
		store:     store,
		verifier:  verifier,
		seeded:    make(map[string]bool),
		current:   Context{Loading: true},
		listeners: make(map[uint64]func(*Identity)),
	}
}

func (m *Manager) Current() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// OnIdentityChange registers fn for every sign-in and sign-out. Once the
// session has resolved, fn is also called right away with the current
// identity (nil when signed out).
func (m *Manager) OnIdentityChange(fn func(*Identity)) docstore.Unsubscribe {
	m.mu.Lock()
	m.next++
	id := m.next
	m.listeners[id] = fn
	cur := m.current
	m.mu.Unlock()

	if !cur.Loading {
		fn(cur.Identity)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// Authenticate verifies token and makes sure the user has default data.
// It does not change the current session.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Identity, error) {
	id, err := m.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	m.EnsureSeeded(ctx, id.UserID)
	return id, nil
}

// SignIn authenticates token and makes it the current identity.
func (m *Manager) SignIn(ctx context.Context, token string) (*Identity, error) {
	id, err := m.Authenticate(ctx, token)
	if err != nil {
		m.mu.Lock()
		loading := m.current.Loading
		m.mu.Unlock()
		if loading {
			m.setIdentity(nil)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "User signed in", log.FieldUserID, id.UserID)
	m.setIdentity(id)
	return id, nil
}

func (m *Manager) SignOut(ctx context.Context) {
	if cur := m.Current(); cur.Identity != nil {
		slog.InfoContext(ctx, "User signed out", log.FieldUserID, cur.Identity.UserID)
	}
	m.setIdentity(nil)
}

func (m *Manager) setIdentity(id *Identity) {
	m.mu.Lock()
	m.current = Context{Identity: id}
	keys := make([]uint64, 0, len(m.listeners))
	for k := range m.listeners {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	fns := make([]func(*Identity), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, m.listeners[k])
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

// EnsureSeeded seeds userID's default data the first time this manager
// sees the user. Failures are logged and never block the caller; the
// check runs again on the next sign-in.
func (m *Manager) EnsureSeeded(ctx context.Context, userID string) {
	m.seedMu.Lock()
	done := m.seeded[userID]
	m.seedMu.Unlock()
	if done {
		return
	}

	_, err, _ := m.seeds.Do(userID, func() (any, error) {
		created, err := Seed(ctx, m.store, userID)
		if err != nil {
			return nil, err
		}
		if created {
			slog.InfoContext(ctx, "Seeded default data",
				log.FieldUserID, userID,
				"categories", len(core.DefaultCategories()))
		}
		m.seedMu.Lock()
		m.seeded[userID] = true
		m.seedMu.Unlock()
		return nil, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "Error initializing user data",
			log.FieldUserID, userID,
			log.FieldOperation, log.OpSeed,
			log.FieldError, err)
	}
}

// Seed creates the default categories and the Cash wallet when the user
// has no categories yet. It reports whether anything was written.
func Seed(ctx context.Context, store docstore.Store, userID string) (bool, error) {
	categories := docstore.UserCollection(userID, docstore.Categories)
	existing, err := store.List(ctx, categories, docstore.ByCreatedAt)
	if err != nil {
		return false, fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	for _, in := range core.DefaultCategories() {
		if _, err := store.Create(ctx, categories, in.Category()); err != nil {
			return false, fmt.Errorf("create category %q: %w", in.Name, err)
		}
	}
	wallets := docstore.UserCollection(userID, docstore.Wallets)
	if _, err := store.Create(ctx, wallets, core.DefaultWallet().Wallet()); err != nil {
		return false, fmt.Errorf("create default wallet: %w", err)
	}
	return true, nil
}
