package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Cash    WalletType = "cash"
	Bank    WalletType = "bank"
	EWallet WalletType = "e-wallet"
	Credit  WalletType = "credit"
)

type (
	TransactionType string
	WalletType      string

	// Wallet is a money-holding account. Balance is in the smallest currency unit.
	Wallet struct {
		ID             string     `json:"id,omitempty"`
		Name           string     `json:"name"`
		Type           WalletType `json:"type"`
		Icon           string     `json:"icon"`
		Balance        int64      `json:"balance"`
		Color          string     `json:"color,omitempty"`
		InitialBalance int64      `json:"initialBalance"`
		CreatedAt      time.Time  `json:"createdAt"`
	}

	Category struct {
		ID        string          `json:"id,omitempty"`
		Name      string          `json:"name"`
		Icon      string          `json:"icon"`
		Type      TransactionType `json:"type"`
		Color     string          `json:"color,omitempty"`
		CreatedAt time.Time       `json:"createdAt"`
	}

	Transaction struct {
		ID         string          `json:"id,omitempty"`
		Type       TransactionType `json:"type"`
		Amount     int64           `json:"amount"`
		CategoryID string          `json:"categoryId"`
		WalletID   string          `json:"walletId"`
		Date       time.Time       `json:"date"`
		Note       string          `json:"note,omitempty"`
		CreatedAt  time.Time       `json:"createdAt"`
		UpdatedAt  *time.Time      `json:"updatedAt,omitempty"`
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrInvalidWalletType = errors.New("invalid wallet type")
	ErrEmptyCategory     = errors.New("no category selected")
	ErrEmptyWallet       = errors.New("no wallet selected")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidDate       = errors.New("invalid date")
	ErrPasswordMismatch  = errors.New("passwords do not match")
	ErrWeakPassword      = errors.New("password must be at least 6 characters")
)

func (t TransactionType) Validate() error {
	switch t {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Effect returns the signed change a transaction of this type and amount
// makes to its wallet: income adds, expense subtracts.
func (t TransactionType) Effect(amount int64) int64 {
	if t == Income {
		return amount
	}
	return -amount
}

func (w WalletType) Validate() error {
	switch w {
	case Cash, Bank, EWallet, Credit:
		return nil
	default:
		return ErrInvalidWalletType
	}
}

// DefaultIcon is the icon shown for a wallet of this type when none is chosen.
func (w WalletType) DefaultIcon() string {
	switch w {
	case Cash:
		return "💵"
	case Bank:
		return "🏦"
	case EWallet:
		return "📱"
	default:
		return "💳"
	}
}

// Effect is the signed change this transaction makes to its wallet balance.
func (t Transaction) Effect() int64 {
	return t.Type.Effect(t.Amount)
}

// Apply returns the transaction as it looks after the patch.
func (t Transaction) Apply(p TransactionPatch) Transaction {
	out := t
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Amount != nil {
		out.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		out.CategoryID = *p.CategoryID
	}
	if p.WalletID != nil && *p.WalletID != "" {
		out.WalletID = *p.WalletID
	}
	if p.Date != nil {
		out.Date = *p.Date
	}
	if p.Note != nil {
		out.Note = *p.Note
	}
	return out
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}
