package memory

import (
	"context"
	"testing"

	"moneybook/internal/docstore"
	"moneybook/internal/docstore/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T, opts ...docstore.Option) docstore.Store {
		return New(opts...)
	})
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Close())

	_, err := s.Create(ctx, "wallets", map[string]any{"name": "Cash"})
	assert.ErrorIs(t, err, docstore.ErrStoreClosed)
	_, err = s.List(ctx, "wallets", docstore.ByCreatedAt)
	assert.ErrorIs(t, err, docstore.ErrStoreClosed)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.Create(ctx, "wallets", map[string]any{"name": "Cash"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, docstore.DocPath("wallets", id))
	require.NoError(t, err)
	doc.Data[0] = 'X'

	again, err := s.Get(ctx, docstore.DocPath("wallets", id))
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.Data[0])
}

func TestUnsubscribeReleasesHub(t *testing.T) {
	s := New()
	unsub, err := s.Subscribe(context.Background(), "wallets", docstore.ByCreatedAt, func([]docstore.Document) {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Hub().Subscribers("wallets"))
	unsub()
	assert.Equal(t, 0, s.Hub().Subscribers("wallets"))
}
