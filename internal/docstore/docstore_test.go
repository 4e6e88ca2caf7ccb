package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDocPath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		collection string
		id         string
		wantErr    bool
	}{
		{"user wallet", "users/u1/wallets/w1", "users/u1/wallets", "w1", false},
		{"top level", "wallets/w1", "wallets", "w1", false},
		{"collection only", "users/u1/wallets", "", "", true},
		{"trailing slash", "wallets/", "", "", true},
		{"empty", "", "", "", true},
		{"no slash", "wallets", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collection, id, err := SplitDocPath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPath))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.collection, collection)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestValidateCollection(t *testing.T) {
	assert.NoError(t, ValidateCollection("users/u1/transactions"))
	assert.NoError(t, ValidateCollection("wallets"))
	assert.ErrorIs(t, ValidateCollection("users/u1"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateCollection("/wallets"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateCollection("users//x"), ErrInvalidPath)
	assert.ErrorIs(t, ValidateCollection(""), ErrInvalidPath)
}

func TestUserPaths(t *testing.T) {
	assert.Equal(t, "users/abc/wallets", UserCollection("abc", Wallets))
	assert.Equal(t, "users/abc/transactions/t9", UserDoc("abc", Transactions, "t9"))
}

func TestEncodeNew(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw, err := EncodeNew(map[string]any{"id": "ignored", "name": "Cash", "balance": 10}, created)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "id")
	assert.Equal(t, "Cash", fields["name"])
	assert.Equal(t, "2024-03-01T10:00:00Z", fields[FieldCreatedAt])

	_, err = EncodeNew([]int{1, 2}, created)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	data := json.RawMessage(`{"name":"Cash","balance":100,"createdAt":"2024-01-01T00:00:00Z"}`)
	merged, err := Merge(data, map[string]any{
		"balance":   250,
		"createdAt": "2030-01-01T00:00:00Z",
		"id":        "nope",
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(merged, &fields))
	assert.Equal(t, float64(250), fields["balance"])
	assert.Equal(t, "Cash", fields["name"])
	assert.Equal(t, "2024-01-01T00:00:00Z", fields["createdAt"])
	assert.NotContains(t, fields, "id")
}

func TestSortDocuments(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{ID: "a", Data: json.RawMessage(`{"date":"2024-01-05T00:00:00Z"}`), CreatedAt: base},
		{ID: "b", Data: json.RawMessage(`{"date":"2024-01-10T00:00:00Z"}`), CreatedAt: base.Add(time.Second)},
		{ID: "c", Data: json.RawMessage(`{"date":"2024-01-05T00:00:00Z"}`), CreatedAt: base.Add(2 * time.Second)},
		{ID: "d", Data: json.RawMessage(`{}`), CreatedAt: base.Add(3 * time.Second)},
	}

	SortDocuments(docs, ByDateDesc)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(docs))

	SortDocuments(docs, ByCreatedAt)
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(docs))

	SortDocuments(docs, Order{Field: "date"})
	assert.Equal(t, []string{"d", "a", "c", "b"}, ids(docs))
}

func TestSortDocumentsNumbers(t *testing.T) {
	docs := []Document{
		{ID: "x", Data: json.RawMessage(`{"amount":20}`)},
		{ID: "y", Data: json.RawMessage(`{"amount":3}`)},
		{ID: "z", Data: json.RawMessage(`{"amount":100}`)},
	}
	SortDocuments(docs, Order{Field: "amount"})
	assert.Equal(t, []string{"y", "x", "z"}, ids(docs))
}

func TestDataToInjectsID(t *testing.T) {
	type wallet struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Balance int64  `json:"balance"`
	}
	doc := Document{ID: "w1", Path: "users/u/wallets/w1", Data: json.RawMessage(`{"name":"Cash","balance":42}`)}

	var w wallet
	require.NoError(t, doc.DataTo(&w))
	assert.Equal(t, wallet{ID: "w1", Name: "Cash", Balance: 42}, w)

	list, err := Decode[wallet]([]Document{doc})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "w1", list[0].ID)
}

func TestHubDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	current := []Document{{ID: "1"}}
	list := func(context.Context, string, Order) ([]Document, error) {
		return append([]Document(nil), current...), nil
	}

	h := NewHub()
	var got [][]string
	unsub, err := h.Subscribe(ctx, "users/u/wallets", ByCreatedAt, func(docs []Document) {
		got = append(got, ids(docs))
	}, list)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Subscribers("users/u/wallets"))

	current = append(current, Document{ID: "2"})
	h.Publish(ctx, "users/u/wallets", list)
	h.Publish(ctx, "users/u/categories", list)

	unsub()
	unsub()
	h.Publish(ctx, "users/u/wallets", list)

	assert.Equal(t, [][]string{{"1"}, {"1", "2"}}, got)
	assert.Equal(t, 0, h.Subscribers("users/u/wallets"))
}

func TestHubWriteDuringSubscribeIsDelivered(t *testing.T) {
	ctx := context.Background()
	const col = "users/u/wallets"
	h := NewHub()

	var (
		version   atomic.Int64
		published sync.WaitGroup
		once      sync.Once
	)
	list := func(context.Context, string, Order) ([]Document, error) {
		v := version.Load()
		// A writer commits right after the subscriber's initial read.
		once.Do(func() {
			version.Add(1)
			published.Add(1)
			go func() {
				defer published.Done()
				h.Publish(ctx, col, func(context.Context, string, Order) ([]Document, error) {
					return []Document{{ID: "v1"}}, nil
				})
			}()
		})
		return []Document{{ID: fmt.Sprintf("v%d", v)}}, nil
	}

	var (
		mu   sync.Mutex
		last string
	)
	unsub, err := h.Subscribe(ctx, col, ByCreatedAt, func(docs []Document) {
		mu.Lock()
		defer mu.Unlock()
		last = docs[0].ID
	}, list)
	require.NoError(t, err)
	defer unsub()

	published.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "v1", last)
}

func TestHubSubscribeListError(t *testing.T) {
	boom := errors.New("boom")
	h := NewHub()
	_, err := h.Subscribe(context.Background(), "wallets", ByCreatedAt, func([]Document) {},
		func(context.Context, string, Order) ([]Document, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, h.Subscribers("wallets"))
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
