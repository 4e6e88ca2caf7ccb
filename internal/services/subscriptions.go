package services

import (
	"context"
	"fmt"
	"log/slog"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
)

func subscribe[T any](ctx context.Context, store docstore.Store, userID, collection string, order docstore.Order, fn func([]T)) (docstore.Unsubscribe, error) {
	return store.Subscribe(ctx, docstore.UserCollection(userID, collection), order, func(docs []docstore.Document) {
		items, err := docstore.Decode[T](docs)
		if err != nil {
			slog.ErrorContext(ctx, "Dropping undecodable snapshot",
				log.FieldComponent, log.ComponentFinance,
				log.FieldUserID, userID,
				log.FieldCollection, collection,
				log.FieldError, err)
			return
		}
		fn(items)
	})
}

// SubscribeWallets delivers the user's wallets now and after every change.
func (s *FinanceService) SubscribeWallets(ctx context.Context, userID string, fn func([]core.Wallet)) (docstore.Unsubscribe, error) {
	return subscribe(ctx, s.store, userID, docstore.Wallets, docstore.ByCreatedAt, fn)
}

func (s *FinanceService) SubscribeCategories(ctx context.Context, userID string, fn func([]core.Category)) (docstore.Unsubscribe, error) {
	return subscribe(ctx, s.store, userID, docstore.Categories, docstore.ByCreatedAt, fn)
}

// SubscribeTransactions orders transactions newest date first.
func (s *FinanceService) SubscribeTransactions(ctx context.Context, userID string, fn func([]core.Transaction)) (docstore.Unsubscribe, error) {
	return subscribe(ctx, s.store, userID, docstore.Transactions, docstore.ByDateDesc, fn)
}

// Subscribe streams one collection by name, handing fn the typed list as
// an opaque value. It is meant for transports that only re-encode it.
func (s *FinanceService) Subscribe(ctx context.Context, userID, collection string, fn func(any)) (docstore.Unsubscribe, error) {
	switch collection {
	case docstore.Wallets:
		return s.SubscribeWallets(ctx, userID, func(v []core.Wallet) { fn(v) })
	case docstore.Categories:
		return s.SubscribeCategories(ctx, userID, func(v []core.Category) { fn(v) })
	case docstore.Transactions:
		return s.SubscribeTransactions(ctx, userID, func(v []core.Transaction) { fn(v) })
	default:
		return nil, fmt.Errorf("%w: unknown collection %q", docstore.ErrInvalidPath, collection)
	}
}
