package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"moneybook/internal/docstore"
)

type txn struct {
	s       *Store
	tx      *sql.Tx
	touched map[string]struct{}
}

func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t := &txn{s: s, tx: tx, touched: make(map[string]struct{})}

	if err := fn(ctx, t); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	for collection := range t.touched {
		s.hub.Publish(ctx, collection, s.List)
	}
	return nil
}

func (t *txn) touch(path string) {
	if collection, _, err := docstore.SplitDocPath(path); err == nil {
		t.touched[collection] = struct{}{}
	}
}

func (t *txn) Get(ctx context.Context, docPath string) (docstore.Document, error) {
	return t.s.get(ctx, t.tx, docPath)
}

func (t *txn) Create(ctx context.Context, collection string, data any) (string, error) {
	id, err := t.s.create(ctx, t.tx, collection, data)
	if err != nil {
		return "", err
	}
	t.touched[collection] = struct{}{}
	return id, nil
}

func (t *txn) Update(ctx context.Context, docPath string, patch map[string]any) error {
	if err := t.s.update(ctx, t.tx, docPath, patch); err != nil {
		return err
	}
	t.touch(docPath)
	return nil
}

func (t *txn) Delete(ctx context.Context, docPath string) error {
	if err := t.s.delete(ctx, t.tx, docPath); err != nil {
		return err
	}
	t.touch(docPath)
	return nil
}
