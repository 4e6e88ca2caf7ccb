package sheets

import (
	"context"
	"errors"
	"time"

	"moneybook/internal/core"
)

// Header is the first row of the export sheet; Row.Values follows its order.
var Header = []any{"Date", "Type", "Amount", "Category", "Wallet", "Note", "ID", "User"}

var ErrInvalidRow = errors.New("invalid export row")

// Row is one transaction as it appears in the export sheet, with its
// category and wallet already resolved to display names.
type Row struct {
	ID       string
	UserID   string
	Date     time.Time
	Type     core.TransactionType
	Amount   int64
	Category string
	Wallet   string
	Note     string
}

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors transactions into an external sheet,
	// keyed by transaction id.
	TransactionExporter interface {
		// Upsert writes row, replacing an existing row with the same id.
		Upsert(ctx context.Context, row Row) (ref string, err error)
		// Remove clears the row for id. A missing row is not an error.
		Remove(ctx context.Context, userID, id string) error
	}
)

// NewRow resolves a transaction's references for export. Dangling
// category or wallet ids export as "Unknown".
func NewRow(userID string, tx core.Transaction, cats []core.Category, wallets []core.Wallet) Row {
	return Row{
		ID:       tx.ID,
		UserID:   userID,
		Date:     tx.Date,
		Type:     tx.Type,
		Amount:   tx.Amount,
		Category: core.CategoryLabel(cats, tx.CategoryID),
		Wallet:   core.WalletLabel(wallets, tx.WalletID),
		Note:     tx.Note,
	}
}

func (r Row) Validate() error {
	if r.ID == "" || r.UserID == "" || r.Amount <= 0 {
		return ErrInvalidRow
	}
	return r.Type.Validate()
}

// Values renders the row in Header order. Amounts are signed so a plain
// SUM over the column gives the net.
func (r Row) Values(loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	return []any{
		r.Date.In(loc).Format("2006-01-02"),
		string(r.Type),
		r.Type.Effect(r.Amount),
		r.Category,
		r.Wallet,
		r.Note,
		r.ID,
		r.UserID,
	}
}
