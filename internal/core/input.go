package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type (
	// TransactionInput is the user-supplied part of a new transaction.
	TransactionInput struct {
		Type       TransactionType `json:"type"`
		Amount     int64           `json:"amount"`
		CategoryID string          `json:"categoryId"`
		WalletID   string          `json:"walletId"`
		Date       time.Time       `json:"date"`
		Note       string          `json:"note,omitempty"`
	}

	// TransactionPatch carries only the fields being changed. Nil means untouched.
	TransactionPatch struct {
		Type       *TransactionType `json:"type,omitempty"`
		Amount     *int64           `json:"amount,omitempty"`
		CategoryID *string          `json:"categoryId,omitempty"`
		WalletID   *string          `json:"walletId,omitempty"`
		Date       *time.Time       `json:"date,omitempty"`
		Note       *string          `json:"note,omitempty"`
	}

	WalletInput struct {
		Name    string     `json:"name"`
		Type    WalletType `json:"type"`
		Icon    string     `json:"icon"`
		Balance int64      `json:"balance"`
		Color   string     `json:"color,omitempty"`
	}

	// WalletPatch has no balance field: balances only move through the ledger.
	WalletPatch struct {
		Name  *string     `json:"name,omitempty"`
		Type  *WalletType `json:"type,omitempty"`
		Icon  *string     `json:"icon,omitempty"`
		Color *string     `json:"color,omitempty"`
	}

	CategoryInput struct {
		Name  string          `json:"name"`
		Type  TransactionType `json:"type"`
		Icon  string          `json:"icon"`
		Color string          `json:"color,omitempty"`
	}

	CategoryPatch struct {
		Name  *string          `json:"name,omitempty"`
		Type  *TransactionType `json:"type,omitempty"`
		Icon  *string          `json:"icon,omitempty"`
		Color *string          `json:"color,omitempty"`
	}
)

func (in TransactionInput) Validate() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if err := in.Type.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(in.WalletID) == "" {
		return ErrEmptyWallet
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(in.Note) > 200 {
		return errors.New("note too long (max 200 characters)")
	}
	return nil
}

// UnmarshalJSON accepts the amount as a number or as text the way users
// type it. Unknown fields are rejected.
func (in *TransactionInput) UnmarshalJSON(b []byte) error {
	type wire TransactionInput
	aux := struct {
		*wire
		Amount json.RawMessage `json:"amount"`
	}{wire: (*wire)(in)}
	if err := decodeStrict(b, &aux); err != nil {
		return err
	}
	if len(aux.Amount) == 0 {
		return nil
	}
	amount, err := decodeAmount(aux.Amount)
	if err != nil {
		return err
	}
	in.Amount = amount
	return nil
}

// UnmarshalJSON reads the patch like TransactionInput does. A missing or
// null amount leaves Amount nil.
func (p *TransactionPatch) UnmarshalJSON(b []byte) error {
	type wire TransactionPatch
	aux := struct {
		*wire
		Amount json.RawMessage `json:"amount,omitempty"`
	}{wire: (*wire)(p)}
	if err := decodeStrict(b, &aux); err != nil {
		return err
	}
	if len(aux.Amount) == 0 || string(aux.Amount) == "null" {
		return nil
	}
	amount, err := decodeAmount(aux.Amount)
	if err != nil {
		return err
	}
	p.Amount = &amount
	return nil
}

// Transaction builds the record that will be persisted for this input.
func (in TransactionInput) Transaction() Transaction {
	return Transaction{
		Type:       in.Type,
		Amount:     in.Amount,
		CategoryID: in.CategoryID,
		WalletID:   in.WalletID,
		Date:       in.Date,
		Note:       strings.TrimSpace(in.Note),
	}
}

func (p TransactionPatch) Validate() error {
	if p.Amount != nil && *p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Type != nil {
		if err := p.Type.Validate(); err != nil {
			return err
		}
	}
	if p.CategoryID != nil && strings.TrimSpace(*p.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if p.WalletID != nil && strings.TrimSpace(*p.WalletID) == "" {
		return ErrEmptyWallet
	}
	if p.Date != nil && p.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// TouchesBalance reports whether applying the patch requires a balance correction.
func (p TransactionPatch) TouchesBalance() bool {
	return p.Amount != nil || p.Type != nil || p.WalletID != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p TransactionPatch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.CategoryID == nil &&
		p.WalletID == nil && p.Date == nil && p.Note == nil
}

// Fields returns the document fields written by this patch.
func (p TransactionPatch) Fields() map[string]any {
	f := make(map[string]any)
	if p.Type != nil {
		f["type"] = *p.Type
	}
	if p.Amount != nil {
		f["amount"] = *p.Amount
	}
	if p.CategoryID != nil {
		f["categoryId"] = *p.CategoryID
	}
	if p.WalletID != nil {
		f["walletId"] = *p.WalletID
	}
	if p.Date != nil {
		f["date"] = *p.Date
	}
	if p.Note != nil {
		f["note"] = strings.TrimSpace(*p.Note)
	}
	return f
}

func (in WalletInput) Validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	return in.Type.Validate()
}

// Wallet builds the record persisted for a new wallet. The opening balance
// is remembered as InitialBalance.
func (in WalletInput) Wallet() Wallet {
	icon := in.Icon
	if icon == "" {
		icon = in.Type.DefaultIcon()
	}
	return Wallet{
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Icon:           icon,
		Balance:        in.Balance,
		Color:          in.Color,
		InitialBalance: in.Balance,
	}
}

func (p WalletPatch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Type != nil {
		return p.Type.Validate()
	}
	return nil
}

func (p WalletPatch) Fields() map[string]any {
	f := make(map[string]any)
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		f["type"] = *p.Type
	}
	if p.Icon != nil {
		f["icon"] = *p.Icon
	}
	if p.Color != nil {
		f["color"] = *p.Color
	}
	return f
}

func (in CategoryInput) Validate() error {
	if err := validateName(in.Name); err != nil {
		return err
	}
	return in.Type.Validate()
}

func (in CategoryInput) Category() Category {
	return Category{
		Name:  strings.TrimSpace(in.Name),
		Type:  in.Type,
		Icon:  in.Icon,
		Color: in.Color,
	}
}

func (p CategoryPatch) Validate() error {
	if p.Name != nil {
		if err := validateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Type != nil {
		return p.Type.Validate()
	}
	return nil
}

func (p CategoryPatch) Fields() map[string]any {
	f := make(map[string]any)
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Type != nil {
		f["type"] = *p.Type
	}
	if p.Icon != nil {
		f["icon"] = *p.Icon
	}
	if p.Color != nil {
		f["color"] = *p.Color
	}
	return f
}
