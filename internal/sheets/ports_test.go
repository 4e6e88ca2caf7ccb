package sheets

import (
	"reflect"
	"testing"
	"time"

	"moneybook/internal/core"
)

func TestNewRowResolvesLabels(t *testing.T) {
	cats := []core.Category{{ID: "c1", Name: "Salary"}}
	wallets := []core.Wallet{{ID: "w1", Name: "BCA"}}
	tx := core.Transaction{
		ID: "t1", Type: core.Income, Amount: 5000, CategoryID: "c1", WalletID: "w1",
		Date: time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), Note: "feb",
	}

	r := NewRow("u1", tx, cats, wallets)
	if r.Category != "Salary" || r.Wallet != "BCA" {
		t.Errorf("labels = %q/%q", r.Category, r.Wallet)
	}

	dangling := NewRow("u1", core.Transaction{ID: "t2", CategoryID: "gone", WalletID: "gone"}, cats, wallets)
	if dangling.Category != core.UnknownCategoryName || dangling.Wallet != core.UnknownCategoryName {
		t.Errorf("dangling labels = %q/%q", dangling.Category, dangling.Wallet)
	}
}

func TestRowValues(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	r := Row{
		ID: "t1", UserID: "u1", Type: core.Expense, Amount: 2500,
		Date:     time.Date(2024, 2, 29, 20, 0, 0, 0, time.UTC),
		Category: "Food & Drinks", Wallet: "Cash", Note: "dinner",
	}

	got := r.Values(jakarta)
	want := []any{"2024-03-01", "expense", int64(-2500), "Food & Drinks", "Cash", "dinner", "t1", "u1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}
	if len(got) != len(Header) {
		t.Errorf("Values() has %d columns, header has %d", len(got), len(Header))
	}
}

func TestRowValidate(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		ok   bool
	}{
		{"valid", Row{ID: "t", UserID: "u", Type: core.Income, Amount: 1}, true},
		{"missing id", Row{UserID: "u", Type: core.Income, Amount: 1}, false},
		{"zero amount", Row{ID: "t", UserID: "u", Type: core.Income}, false},
		{"bad type", Row{ID: "t", UserID: "u", Type: "transfer", Amount: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.row.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
