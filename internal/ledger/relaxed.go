package ledger

import (
	"context"
	"log/slog"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
)

// Relaxed performs each step as its own store call: write the transaction,
// then read and write each affected wallet. A failure part-way leaves the
// earlier steps in place, and two concurrent changes to one wallet can lose
// an update. Audit reports the resulting drift.
type Relaxed struct {
	store docstore.Store
	opts  options
}

var _ BalanceLedger = (*Relaxed)(nil)

func NewRelaxed(store docstore.Store, opts ...Option) *Relaxed {
	return &Relaxed{store: store, opts: buildOptions(opts)}
}

func (l *Relaxed) RecordCreation(ctx context.Context, userID string, in core.TransactionInput) (string, error) {
	id, tx, err := create(ctx, l.store, userID, in)
	if err != nil {
		return "", err
	}
	if err := adjust(ctx, l.store, userID, tx.WalletID, tx.Effect()); err != nil {
		return id, err
	}

	slog.InfoContext(ctx, "Transaction recorded",
		log.NewFields().
			WithComponent(log.ComponentLedger).
			WithOperation(log.OpCreate).
			WithUser(userID).
			WithTransaction(id, string(tx.Type), tx.Amount, tx.WalletID).
			ToSlice()...)
	return id, nil
}

func (l *Relaxed) RecordAmendment(ctx context.Context, userID, txID string, patch core.TransactionPatch, previous core.Transaction) error {
	if err := amend(ctx, l.store, userID, txID, patch, l.opts.now()); err != nil {
		return err
	}
	return rebalance(ctx, l.store, userID, patch, previous)
}

func (l *Relaxed) RecordDeletion(ctx context.Context, userID, txID string, snapshot core.Transaction) error {
	if err := remove(ctx, l.store, userID, txID); err != nil {
		return err
	}
	return adjust(ctx, l.store, userID, snapshot.WalletID, -snapshot.Effect())
}
