package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/docstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// countingStore counts List calls and can fail them.
type countingStore struct {
	docstore.Store
	lists   atomic.Int32
	listErr error
}

func (s *countingStore) List(ctx context.Context, collection string, order docstore.Order) ([]docstore.Document, error) {
	s.lists.Add(1)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.List(ctx, collection, order)
}

func newManager(t *testing.T) (*Manager, *countingStore, *Verifier) {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	v := NewVerifier(testSecret, "moneybook")
	return NewManager(store, v), store, v
}

func token(t *testing.T, v *Verifier, userID string) string {
	t.Helper()
	tok, err := v.Issue(Identity{UserID: userID, Email: userID + "@example.com"}, time.Hour)
	require.NoError(t, err)
	return tok
}

func count(t *testing.T, s docstore.Store, userID, collection string) int {
	t.Helper()
	docs, err := s.List(context.Background(), docstore.UserCollection(userID, collection), docstore.ByCreatedAt)
	require.NoError(t, err)
	return len(docs)
}

func TestSeedCreatesDefaults(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	created, err := Seed(ctx, s, "u1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 13, count(t, s, "u1", docstore.Categories))
	assert.Equal(t, 1, count(t, s, "u1", docstore.Wallets))

	wallets, err := s.List(ctx, docstore.UserCollection("u1", docstore.Wallets), docstore.ByCreatedAt)
	require.NoError(t, err)
	w, err := docstore.Decode[core.Wallet](wallets)
	require.NoError(t, err)
	assert.Equal(t, "Cash", w[0].Name)
	assert.Equal(t, core.Cash, w[0].Type)
	assert.Zero(t, w[0].Balance)

	created, err = Seed(ctx, s, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 13, count(t, s, "u1", docstore.Categories))
}

func TestSeedSkipsUserWithCategories(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Create(ctx, docstore.UserCollection("u1", docstore.Categories),
		core.CategoryInput{Name: "Rent", Type: core.Expense}.Category())
	require.NoError(t, err)

	created, err := Seed(ctx, s, "u1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, count(t, s, "u1", docstore.Categories))
	assert.Equal(t, 0, count(t, s, "u1", docstore.Wallets))
}

func TestManagerSignInAndOut(t *testing.T) {
	ctx := context.Background()
	m, store, v := newManager(t)

	assert.True(t, m.Current().Loading)

	var seen []*Identity
	unsubscribe := m.OnIdentityChange(func(id *Identity) { seen = append(seen, id) })
	assert.Empty(t, seen, "no callback while loading")

	id, err := m.SignIn(ctx, token(t, v, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "u1@example.com", id.Email)

	cur := m.Current()
	assert.False(t, cur.Loading)
	assert.True(t, cur.Authenticated())
	assert.Equal(t, 13, count(t, store, "u1", docstore.Categories))

	m.SignOut(ctx)
	assert.False(t, m.Current().Authenticated())

	require.Len(t, seen, 2)
	assert.Equal(t, "u1", seen[0].UserID)
	assert.Nil(t, seen[1])

	unsubscribe()
	unsubscribe()
	_, err = m.SignIn(ctx, token(t, v, "u1"))
	require.NoError(t, err)
	assert.Len(t, seen, 2)
}

func TestOnIdentityChangeAfterResolution(t *testing.T) {
	ctx := context.Background()
	m, _, v := newManager(t)
	_, err := m.SignIn(ctx, token(t, v, "u1"))
	require.NoError(t, err)

	var got *Identity
	calls := 0
	m.OnIdentityChange(func(id *Identity) { got = id; calls++ })
	assert.Equal(t, 1, calls)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
}

func TestSignInRejectedTokenResolvesLoading(t *testing.T) {
	m, _, _ := newManager(t)

	calls := 0
	m.OnIdentityChange(func(id *Identity) {
		calls++
		assert.Nil(t, id)
	})

	_, err := m.SignIn(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, m.Current().Loading)
	assert.Equal(t, 1, calls)
}

func TestSeedOncePerUser(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newManager(t)

	m.EnsureSeeded(ctx, "u1")
	m.EnsureSeeded(ctx, "u1")
	m.EnsureSeeded(ctx, "u1")

	assert.Equal(t, int32(1), store.lists.Load())
	assert.Equal(t, 13, count(t, store.Store, "u1", docstore.Categories))
}

func TestSeedFailureDoesNotBlockSignIn(t *testing.T) {
	ctx := context.Background()
	m, store, v := newManager(t)
	store.listErr = errors.New("store unavailable")

	id, err := m.SignIn(ctx, token(t, v, "u1"))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, m.Current().Authenticated())

	// the next sign-in checks again
	store.listErr = nil
	_, err = m.SignIn(ctx, token(t, v, "u1"))
	require.NoError(t, err)
	assert.Equal(t, 13, count(t, store.Store, "u1", docstore.Categories))
}
