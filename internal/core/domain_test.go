package core

import (
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Type:       Expense,
		Amount:     100,
		CategoryID: "c1",
		WalletID:   "w1",
		Date:       time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		mutate func(*TransactionInput)
		want   error
	}{
		{func(in *TransactionInput) { in.Amount = 0 }, ErrInvalidAmount},
		{func(in *TransactionInput) { in.Amount = -5 }, ErrInvalidAmount},
		{func(in *TransactionInput) { in.Type = "transfer" }, ErrInvalidType},
		{func(in *TransactionInput) { in.CategoryID = " " }, ErrEmptyCategory},
		{func(in *TransactionInput) { in.WalletID = "" }, ErrEmptyWallet},
		{func(in *TransactionInput) { in.Date = time.Time{} }, ErrInvalidDate},
	}
	for i, tc := range bads {
		in := good
		tc.mutate(&in)
		if err := in.Validate(); err != tc.want {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestEffect(t *testing.T) {
	if got := Income.Effect(5000); got != 5000 {
		t.Fatalf("income effect = %d", got)
	}
	if got := Expense.Effect(200); got != -200 {
		t.Fatalf("expense effect = %d", got)
	}
	tx := Transaction{Type: Expense, Amount: 42}
	if tx.Effect() != -42 {
		t.Fatalf("transaction effect = %d", tx.Effect())
	}
}

func TestTransactionPatch(t *testing.T) {
	var empty TransactionPatch
	if !empty.IsEmpty() || empty.TouchesBalance() {
		t.Fatalf("empty patch should touch nothing")
	}

	notePatch := TransactionPatch{Note: ptr("lunch")}
	if notePatch.TouchesBalance() {
		t.Fatalf("note patch should not touch balance")
	}

	for i, p := range []TransactionPatch{
		{Amount: ptr(int64(3000))},
		{Type: ptr(Income)},
		{WalletID: ptr("w2")},
	} {
		if !p.TouchesBalance() {
			t.Fatalf("case %d should touch balance", i)
		}
	}

	if err := (TransactionPatch{Amount: ptr(int64(0))}).Validate(); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := (TransactionPatch{WalletID: ptr("")}).Validate(); err != ErrEmptyWallet {
		t.Fatalf("expected ErrEmptyWallet, got %v", err)
	}

	fields := TransactionPatch{Amount: ptr(int64(3000)), Note: ptr("  x ")}.Fields()
	if len(fields) != 2 || fields["amount"] != int64(3000) || fields["note"] != "x" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestTransactionApply(t *testing.T) {
	prev := Transaction{ID: "t1", Type: Expense, Amount: 200, WalletID: "A", CategoryID: "c"}
	next := prev.Apply(TransactionPatch{WalletID: ptr("B")})
	if next.WalletID != "B" || next.Amount != 200 || next.Type != Expense {
		t.Fatalf("unexpected apply result: %+v", next)
	}
	if prev.WalletID != "A" {
		t.Fatalf("apply must not mutate receiver")
	}
}

func TestWalletInput(t *testing.T) {
	in := WalletInput{Name: "  BCA ", Type: Bank, Balance: 1000}
	if err := in.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	w := in.Wallet()
	if w.Name != "BCA" || w.Icon != "🏦" || w.InitialBalance != 1000 || w.Balance != 1000 {
		t.Fatalf("unexpected wallet: %+v", w)
	}

	if err := (WalletInput{Name: "", Type: Cash}).Validate(); err != ErrEmptyName {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if err := (WalletInput{Name: "x", Type: "stocks"}).Validate(); err != ErrInvalidWalletType {
		t.Fatalf("expected ErrInvalidWalletType, got %v", err)
	}
	if fields := (WalletPatch{Name: ptr("n")}).Fields(); len(fields) != 1 {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestDefaults(t *testing.T) {
	cats := DefaultCategories()
	if len(cats) != 13 {
		t.Fatalf("expected 13 default categories, got %d", len(cats))
	}
	var income int
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			t.Fatalf("default category %q invalid: %v", c.Name, err)
		}
		if c.Type == Income {
			income++
		}
	}
	if income != 4 {
		t.Fatalf("expected 4 income categories, got %d", income)
	}
	w := DefaultWallet()
	if w.Name != "Cash" || w.Type != Cash || w.Balance != 0 {
		t.Fatalf("unexpected default wallet: %+v", w)
	}
}
