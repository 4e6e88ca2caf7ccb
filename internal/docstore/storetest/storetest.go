// Package storetest holds the behaviour every docstore.Store implementation
// is expected to share. Implementations call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"moneybook/internal/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory builds an empty store using the given options.
type Factory func(t *testing.T, opts ...docstore.Option) docstore.Store

type item struct {
	ID     string    `json:"id,omitempty"`
	Name   string    `json:"name"`
	Amount int64     `json:"amount"`
	Date   time.Time `json:"date"`
}

// Clock hands out strictly increasing timestamps.
func Clock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

// Sequence hands out ids doc-1, doc-2, ...
func Sequence() func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("doc-%d", n)
	}
}

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore) })
	t.Run("UpdateMerges", func(t *testing.T) { testUpdateMerges(t, newStore) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore) })
	t.Run("DeleteIdempotent", func(t *testing.T) { testDeleteIdempotent(t, newStore) })
	t.Run("ListOrders", func(t *testing.T) { testListOrders(t, newStore) })
	t.Run("UsersIsolated", func(t *testing.T) { testUsersIsolated(t, newStore) })
	t.Run("Subscribe", func(t *testing.T) { testSubscribe(t, newStore) })
	t.Run("SubscribeConcurrentWriters", func(t *testing.T) { testSubscribeConcurrentWriters(t, newStore) })
	t.Run("InvalidPaths", func(t *testing.T) { testInvalidPaths(t, newStore) })

	t.Run("TransactionCommit", func(t *testing.T) { testTransactionCommit(t, newStore) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, newStore) })
}

func newStore(t *testing.T, f Factory) docstore.Store {
	t.Helper()
	s := f(t, docstore.WithClock(Clock()), docstore.WithIDGenerator(Sequence()))
	t.Cleanup(func() { s.Close() })
	return s
}

func testCreateGet(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Transactions)

	id, err := s.Create(ctx, col, item{ID: "client-id", Name: "coffee", Amount: 25000})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	doc, err := s.Get(ctx, docstore.DocPath(col, id))
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, docstore.DocPath(col, id), doc.Path)
	assert.False(t, doc.CreatedAt.IsZero())

	var got item
	require.NoError(t, doc.DataTo(&got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "coffee", got.Name)
	assert.Equal(t, int64(25000), got.Amount)
}

func testUpdateMerges(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Wallets)

	id, err := s.Create(ctx, col, item{Name: "Cash", Amount: 100})
	require.NoError(t, err)
	path := docstore.DocPath(col, id)
	before, err := s.Get(ctx, path)
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, path, map[string]any{"amount": 300}))

	after, err := s.Get(ctx, path)
	require.NoError(t, err)
	var got item
	require.NoError(t, after.DataTo(&got))
	assert.Equal(t, "Cash", got.Name)
	assert.Equal(t, int64(300), got.Amount)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
}

func testUpdateMissing(t *testing.T, f Factory) {
	s := newStore(t, f)
	err := s.Update(context.Background(), docstore.UserDoc("u1", docstore.Wallets, "nope"), map[string]any{"amount": 1})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func testDeleteIdempotent(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Categories)

	id, err := s.Create(ctx, col, item{Name: "Food"})
	require.NoError(t, err)
	path := docstore.DocPath(col, id)

	require.NoError(t, s.Delete(ctx, path))
	require.NoError(t, s.Delete(ctx, path))

	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testListOrders(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Transactions)

	day := func(d int) time.Time { return time.Date(2024, 2, d, 12, 0, 0, 0, time.UTC) }
	for _, it := range []item{
		{Name: "first", Date: day(3)},
		{Name: "second", Date: day(10)},
		{Name: "third", Date: day(1)},
	} {
		_, err := s.Create(ctx, col, it)
		require.NoError(t, err)
	}

	byCreated, err := s.List(ctx, col, docstore.ByCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, names(t, byCreated))

	byDate, err := s.List(ctx, col, docstore.ByDateDesc)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first", "third"}, names(t, byDate))

	empty, err := s.List(ctx, docstore.UserCollection("u1", docstore.Wallets), docstore.ByCreatedAt)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUsersIsolated(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)

	_, err := s.Create(ctx, docstore.UserCollection("alice", docstore.Wallets), item{Name: "A"})
	require.NoError(t, err)
	_, err = s.Create(ctx, docstore.UserCollection("bob", docstore.Wallets), item{Name: "B"})
	require.NoError(t, err)

	docs, err := s.List(ctx, docstore.UserCollection("alice", docstore.Wallets), docstore.ByCreatedAt)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(t, docs))
}

func testSubscribeConcurrentWriters(t *testing.T, f Factory) {
	const writers = 64
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Wallets)

	var (
		mu     sync.Mutex
		latest int
		shrunk bool
	)
	unsub, err := s.Subscribe(ctx, col, docstore.ByCreatedAt, func(docs []docstore.Document) {
		mu.Lock()
		defer mu.Unlock()
		if len(docs) < latest {
			shrunk = true
		}
		latest = len(docs)
	})
	require.NoError(t, err)
	defer unsub()

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(ctx, col, item{Name: fmt.Sprintf("w%d", i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, writers, latest, "last delivered list is missing writes")
	assert.False(t, shrunk, "a delivered list was older than the one before it")
}

func testSubscribe(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	col := docstore.UserCollection("u1", docstore.Wallets)

	_, err := s.Create(ctx, col, item{Name: "Cash"})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		snaps [][]string
	)
	unsub, err := s.Subscribe(ctx, col, docstore.ByCreatedAt, func(docs []docstore.Document) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, names(t, docs))
	})
	require.NoError(t, err)

	id, err := s.Create(ctx, col, item{Name: "Bank"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, docstore.DocPath(col, id), map[string]any{"name": "BCA"}))
	_, err = s.Create(ctx, docstore.UserCollection("u2", docstore.Wallets), item{Name: "other user"})
	require.NoError(t, err)

	unsub()
	_, err = s.Create(ctx, col, item{Name: "after"})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{
		{"Cash"},
		{"Cash", "Bank"},
		{"Cash", "BCA"},
	}, snaps)
}

func testInvalidPaths(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)

	_, err := s.Create(ctx, "users/u1", item{})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
	_, err = s.Get(ctx, "users/u1")
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
	_, err = s.List(ctx, "users/u1", docstore.ByCreatedAt)
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
}

func testTransactionCommit(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	txs, ok := s.(docstore.Transactional)
	if !ok {
		t.Skip("store is not transactional")
	}
	col := docstore.UserCollection("u1", docstore.Wallets)
	id, err := s.Create(ctx, col, item{Name: "Cash", Amount: 100})
	require.NoError(t, err)
	path := docstore.DocPath(col, id)

	var calls int
	unsub, err := s.Subscribe(ctx, col, docstore.ByCreatedAt, func([]docstore.Document) { calls++ })
	require.NoError(t, err)
	defer unsub()

	err = txs.RunInTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		doc, err := tx.Get(ctx, path)
		if err != nil {
			return err
		}
		var w item
		if err := doc.DataTo(&w); err != nil {
			return err
		}
		if err := tx.Update(ctx, path, map[string]any{"amount": w.Amount + 50}); err != nil {
			return err
		}
		// reads inside the transaction observe its own writes
		doc, err = tx.Get(ctx, path)
		if err != nil {
			return err
		}
		if err := doc.DataTo(&w); err != nil {
			return err
		}
		_, err = tx.Create(ctx, col, item{Name: "Bank", Amount: w.Amount})
		return err
	})
	require.NoError(t, err)

	docs, err := s.List(ctx, col, docstore.ByCreatedAt)
	require.NoError(t, err)
	items, err := docstore.Decode[item](docs)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(150), items[0].Amount)
	assert.Equal(t, int64(150), items[1].Amount)
	// one initial delivery plus one per committed transaction
	assert.Equal(t, 2, calls)
}

func testTransactionRollback(t *testing.T, f Factory) {
	ctx := context.Background()
	s := newStore(t, f)
	txs, ok := s.(docstore.Transactional)
	if !ok {
		t.Skip("store is not transactional")
	}
	col := docstore.UserCollection("u1", docstore.Wallets)
	id, err := s.Create(ctx, col, item{Name: "Cash", Amount: 100})
	require.NoError(t, err)
	path := docstore.DocPath(col, id)

	boom := errors.New("boom")
	err = txs.RunInTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if err := tx.Update(ctx, path, map[string]any{"amount": 999}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, path); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	var w item
	require.NoError(t, doc.DataTo(&w))
	assert.Equal(t, int64(100), w.Amount)
}

func names(t *testing.T, docs []docstore.Document) []string {
	t.Helper()
	items, err := docstore.Decode[item](docs)
	require.NoError(t, err)
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}
