// Package ledger keeps wallet balances in step with the transactions that
// reference them. Every create, amend and delete of a transaction goes
// through a BalanceLedger; nothing else writes a wallet's balance.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
	"moneybook/internal/log"
)

type BalanceLedger interface {
	// RecordCreation stores a new transaction and applies its effect to the
	// wallet it names. It returns the new transaction id.
	RecordCreation(ctx context.Context, userID string, in core.TransactionInput) (string, error)
	// RecordAmendment patches a transaction. When the patch changes amount,
	// type or wallet, previous's effect is reversed on its wallet and the
	// amended effect applied to the destination wallet.
	RecordAmendment(ctx context.Context, userID, txID string, patch core.TransactionPatch, previous core.Transaction) error
	// RecordDeletion removes a transaction and reverses snapshot's effect.
	RecordDeletion(ctx context.Context, userID, txID string, snapshot core.Transaction) error
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock sets the source of updatedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// writer is what the ledger steps need from a store. Both docstore.Store
// and the docstore.Tx handed out by RunInTransaction satisfy it.
type writer = docstore.Tx

func create(ctx context.Context, w writer, userID string, in core.TransactionInput) (string, core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return "", core.Transaction{}, err
	}
	tx := in.Transaction()
	id, err := w.Create(ctx, docstore.UserCollection(userID, docstore.Transactions), tx)
	if err != nil {
		return "", core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	return id, tx, nil
}

func amend(ctx context.Context, w writer, userID, txID string, patch core.TransactionPatch, now time.Time) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	fields := patch.Fields()
	fields["updatedAt"] = now
	if err := w.Update(ctx, docstore.UserDoc(userID, docstore.Transactions, txID), fields); err != nil {
		return fmt.Errorf("update transaction %s: %w", txID, err)
	}
	return nil
}

// stored reads transaction txID as it currently is through w.
func stored(ctx context.Context, w writer, userID, txID string) (core.Transaction, error) {
	doc, err := w.Get(ctx, docstore.UserDoc(userID, docstore.Transactions, txID))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read transaction %s: %w", txID, err)
	}
	var tx core.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction %s: %w", txID, err)
	}
	return tx, nil
}

func remove(ctx context.Context, w writer, userID, txID string) error {
	if err := w.Delete(ctx, docstore.UserDoc(userID, docstore.Transactions, txID)); err != nil {
		return fmt.Errorf("delete transaction %s: %w", txID, err)
	}
	return nil
}

// adjust reads a wallet and writes back balance+delta. A wallet that no
// longer exists is skipped, not treated as an error.
func adjust(ctx context.Context, w writer, userID, walletID string, delta int64) error {
	path := docstore.UserDoc(userID, docstore.Wallets, walletID)
	doc, err := w.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		slog.WarnContext(ctx, "Wallet not found, skipping balance update",
			log.FieldComponent, log.ComponentLedger,
			log.FieldUserID, userID,
			log.FieldWalletID, walletID,
			log.FieldAmount, delta)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read wallet %s: %w", walletID, err)
	}

	var wallet core.Wallet
	if err := doc.DataTo(&wallet); err != nil {
		return err
	}
	if err := w.Update(ctx, path, map[string]any{"balance": wallet.Balance + delta}); err != nil {
		return fmt.Errorf("write wallet %s balance: %w", walletID, err)
	}

	slog.DebugContext(ctx, "Wallet balance adjusted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldWalletID, walletID,
		"from", wallet.Balance,
		"to", wallet.Balance+delta)
	return nil
}

// rebalance reverses previous on its wallet, then applies the amended
// transaction on its destination wallet. The two steps are independent.
func rebalance(ctx context.Context, w writer, userID string, patch core.TransactionPatch, previous core.Transaction) error {
	if !patch.TouchesBalance() {
		return nil
	}
	if err := adjust(ctx, w, userID, previous.WalletID, -previous.Effect()); err != nil {
		return fmt.Errorf("revert previous effect: %w", err)
	}
	next := previous.Apply(patch)
	if err := adjust(ctx, w, userID, next.WalletID, next.Effect()); err != nil {
		return fmt.Errorf("apply amended effect: %w", err)
	}
	return nil
}
