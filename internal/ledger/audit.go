package ledger

import (
	"context"
	"fmt"
	"sort"

	"moneybook/internal/core"
	"moneybook/internal/docstore"
)

// Drift describes a wallet whose stored balance disagrees with its history.
type Drift struct {
	WalletID string `json:"walletId"`
	Name     string `json:"name"`
	Stored   int64  `json:"stored"`
	Expected int64  `json:"expected"`
}

// Delta is the amount the stored balance is off by.
func (d Drift) Delta() int64 {
	return d.Stored - d.Expected
}

// Reader is the read side of a document store.
type Reader interface {
	List(ctx context.Context, collection string, order docstore.Order) ([]docstore.Document, error)
}

// Audit recomputes every wallet's balance as its initial balance plus the
// effects of the live transactions routed to it, and returns the wallets
// whose stored balance differs. It never writes.
func Audit(ctx context.Context, store Reader, userID string) ([]Drift, error) {
	walletDocs, err := store.List(ctx, docstore.UserCollection(userID, docstore.Wallets), docstore.ByCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	wallets, err := docstore.Decode[core.Wallet](walletDocs)
	if err != nil {
		return nil, err
	}
	txDocs, err := store.List(ctx, docstore.UserCollection(userID, docstore.Transactions), docstore.ByCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txs, err := docstore.Decode[core.Transaction](txDocs)
	if err != nil {
		return nil, err
	}

	return Reconcile(wallets, txs), nil
}

// Reconcile is the pure part of Audit.
func Reconcile(wallets []core.Wallet, txs []core.Transaction) []Drift {
	expected := make(map[string]int64, len(wallets))
	for _, w := range wallets {
		expected[w.ID] = w.InitialBalance
	}
	for _, tx := range txs {
		if _, ok := expected[tx.WalletID]; ok {
			expected[tx.WalletID] += tx.Effect()
		}
	}

	var drifts []Drift
	for _, w := range wallets {
		if want := expected[w.ID]; want != w.Balance {
			drifts = append(drifts, Drift{
				WalletID: w.ID,
				Name:     w.Name,
				Stored:   w.Balance,
				Expected: want,
			})
		}
	}
	sort.SliceStable(drifts, func(i, j int) bool { return drifts[i].WalletID < drifts[j].WalletID })
	return drifts
}
