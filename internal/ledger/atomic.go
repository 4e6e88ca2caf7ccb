package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
)

// Atomic runs the same steps as Relaxed inside one store transaction, so a
// transaction write and its balance corrections land together or not at all.
// Amendments and deletions re-read the transaction inside that store
// transaction, so racing edits never reverse an outdated amount.
type Atomic struct {
	store docstore.Transactional
	opts  options
}

var _ BalanceLedger = (*Atomic)(nil)

// NewAtomic fails with docstore.ErrNotSupported when store cannot run transactions.
func NewAtomic(store docstore.Store, opts ...Option) (*Atomic, error) {
	txs, ok := store.(docstore.Transactional)
	if !ok {
		return nil, fmt.Errorf("atomic ledger: %w", docstore.ErrNotSupported)
	}
	return &Atomic{store: txs, opts: buildOptions(opts)}, nil
}

func (l *Atomic) RecordCreation(ctx context.Context, userID string, in core.TransactionInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	var (
		id string
		tx core.Transaction
	)
	err := l.store.RunInTransaction(ctx, func(ctx context.Context, w docstore.Tx) error {
		var err error
		id, tx, err = create(ctx, w, userID, in)
		if err != nil {
			return err
		}
		return adjust(ctx, w, userID, tx.WalletID, tx.Effect())
	})
	if err != nil {
		return "", err
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

// RecordAmendment reverses the transaction as stored when the store
// transaction runs; the caller's snapshot is not used.
func (l *Atomic) RecordAmendment(ctx context.Context, userID, txID string, patch core.TransactionPatch, _ core.Transaction) error {
	now := l.opts.now()
	return l.store.RunInTransaction(ctx, func(ctx context.Context, w docstore.Tx) error {
		previous, err := stored(ctx, w, userID, txID)
		if err != nil {
			return err
		}
		if err := amend(ctx, w, userID, txID, patch, now); err != nil {
			return err
		}
		return rebalance(ctx, w, userID, patch, previous)
	})
}

// RecordDeletion, like RecordAmendment, works from the stored transaction.
// Deleting one that is already gone fails with docstore.ErrNotFound.
func (l *Atomic) RecordDeletion(ctx context.Context, userID, txID string, _ core.Transaction) error {
	return l.store.RunInTransaction(ctx, func(ctx context.Context, w docstore.Tx) error {
		snapshot, err := stored(ctx, w, userID, txID)
		if err != nil {
			return err
		}
		if err := remove(ctx, w, userID, txID); err != nil {
			return err
		}
		return adjust(ctx, w, userID, snapshot.WalletID, -snapshot.Effect())
	})
}
