package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneybook/internal/amqp"
	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
	"moneybook/internal/sheets"

	"golang.org/x/sync/errgroup"
)

// ExportWorker mirrors transaction changes announced on the change queue
// into the export sheet.
type ExportWorker struct {
	store    docstore.Store
	exporter sheets.TransactionExporter
	users    *UserSet
}

func NewExportWorker(store docstore.Store, exporter sheets.TransactionExporter, users *UserSet) *ExportWorker {
	if users == nil {
		users = NewUserSet()
	}
	return &ExportWorker{store: store, exporter: exporter, users: users}
}

// HandleChange is the consumer callback. Only transaction changes are
// exported; every change marks its user for the next audit.
func (w *ExportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.users.Add(msg.UserID)

	if msg.Collection != docstore.Transactions {
		slog.DebugContext(ctx, "Ignoring non-transaction change",
			log.FieldCollection, msg.Collection,
			log.FieldDocumentID, msg.DocumentID)
		return nil
	}
	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, skipping change",
			log.FieldDocumentID, msg.DocumentID)
		return nil
	}

	switch msg.Operation {
	case amqp.OpDeleted:
		return w.remove(ctx, msg)
	default:
		return w.export(ctx, msg)
	}
}

func (w *ExportWorker) export(ctx context.Context, msg *amqp.ChangeMessage) error {
	doc, err := w.store.Get(ctx, docstore.UserDoc(msg.UserID, docstore.Transactions, msg.DocumentID))
	if errors.Is(err, docstore.ErrNotFound) {
		// deleted since the message was sent; its own delete message follows
		return fmt.Errorf("transaction %s: %w", msg.DocumentID, amqp.ErrDiscard)
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	var tx core.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return fmt.Errorf("transaction %s: %w", msg.DocumentID, errors.Join(err, amqp.ErrDiscard))
	}

	var (
		cats    []core.Category
		wallets []core.Wallet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := w.store.List(gctx, docstore.UserCollection(msg.UserID, docstore.Categories), docstore.ByCreatedAt)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		cats, err = docstore.Decode[core.Category](docs)
		return err
	})
	g.Go(func() error {
		docs, err := w.store.List(gctx, docstore.UserCollection(msg.UserID, docstore.Wallets), docstore.ByCreatedAt)
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		wallets, err = docstore.Decode[core.Wallet](docs)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	row := sheets.NewRow(msg.UserID, tx, cats, wallets)
	ref, err := w.exporter.Upsert(ctx, row)
	if errors.Is(err, sheets.ErrInvalidRow) {
		return fmt.Errorf("export %s: %w", tx.ID, errors.Join(err, amqp.ErrDiscard))
	}
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}

	slog.InfoContext(ctx, "Exported transaction",
		log.FieldComponent, log.ComponentWorker,
		log.FieldUserID, msg.UserID,
		log.FieldDocumentID, tx.ID,
		log.FieldOperation, log.OpExport,
		log.FieldSheetsRange, ref)
	return nil
}

func (w *ExportWorker) remove(ctx context.Context, msg *amqp.ChangeMessage) error {
	if err := w.exporter.Remove(ctx, msg.UserID, msg.DocumentID); err != nil {
		return fmt.Errorf("remove exported transaction: %w", err)
	}
	slog.InfoContext(ctx, "Removed exported transaction",
		log.FieldComponent, log.ComponentWorker,
		log.FieldUserID, msg.UserID,
		log.FieldDocumentID, msg.DocumentID)
	return nil
}
