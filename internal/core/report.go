package core

import (
	"sort"
	"time"
)

// Fallbacks used when a transaction references a category or wallet that no
// longer exists.
const (
	UnknownCategoryName  = "Unknown"
	UnknownCategoryIcon  = "📦"
	UnknownCategoryColor = "#888"
	UnknownWalletName    = "Unknown"
)

type (
	Totals struct {
		Income  int64 `json:"income"`
		Expense int64 `json:"expense"`
	}

	// DateGroup holds the transactions that fall on one calendar day.
	DateGroup struct {
		Date         time.Time     `json:"date"`
		Transactions []Transaction `json:"transactions"`
	}

	CategoryGroup struct {
		CategoryID string `json:"categoryId"`
		Name       string `json:"name"`
		Icon       string `json:"icon"`
		Color      string `json:"color"`
		Total      int64  `json:"total"`
	}

	CategoryReport struct {
		CategoryGroup
		Percentage float64 `json:"percentage"`
	}

	// MonthReport is the summary shown for one month.
	MonthReport struct {
		Year       int              `json:"year"`
		Month      int              `json:"month"` // 1-12
		Income     int64            `json:"income"`
		Expense    int64            `json:"expense"`
		Balance    int64            `json:"balance"`
		Type       TransactionType  `json:"type"`
		Categories []CategoryReport `json:"categories"`
	}
)

// Net is income minus expense.
func (t Totals) Net() int64 {
	return t.Income - t.Expense
}

// CalculateTotals sums amounts per type. Amounts are summed as raw integers.
func CalculateTotals(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Type == Income {
			t.Income += tx.Amount
		} else {
			t.Expense += tx.Amount
		}
	}
	return t
}

// GroupByDate buckets transactions by calendar day in loc, newest day first.
// Within a group the input order is kept.
func GroupByDate(txs []Transaction, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.Local
	}
	index := make(map[time.Time]int)
	var groups []DateGroup
	for _, tx := range txs {
		d := tx.Date.In(loc)
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DateGroup{Date: day})
		}
		groups[i].Transactions = append(groups[i].Transactions, tx)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date.After(groups[j].Date)
	})
	return groups
}

// GroupByCategory totals the transactions of typ per category, largest first.
// Only categories that actually occur are returned.
func GroupByCategory(txs []Transaction, cats []Category, typ TransactionType) []CategoryGroup {
	index := make(map[string]int)
	var groups []CategoryGroup
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		i, ok := index[tx.CategoryID]
		if !ok {
			g := CategoryGroup{CategoryID: tx.CategoryID}
			if c, found := FindCategory(cats, tx.CategoryID); found {
				g.Name, g.Icon, g.Color = c.Name, c.Icon, c.Color
			}
			if g.Name == "" {
				g.Name = UnknownCategoryName
			}
			if g.Icon == "" {
				g.Icon = UnknownCategoryIcon
			}
			if g.Color == "" {
				g.Color = UnknownCategoryColor
			}
			i = len(groups)
			index[tx.CategoryID] = i
			groups = append(groups, g)
		}
		groups[i].Total += tx.Amount
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Total > groups[j].Total
	})
	return groups
}

// MonthRange returns the first instant of t's month and 23:59:59 on its last
// day, both in t's location.
func MonthRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	end := time.Date(t.Year(), t.Month()+1, 0, 23, 59, 59, 0, t.Location())
	return start, end
}

// InRange keeps the transactions dated within [start, end].
func InRange(txs []Transaction, start, end time.Time) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// BuildMonthReport summarises a month of transactions. txs must already be
// scoped to the month; year and month only label the result.
func BuildMonthReport(year, month int, txs []Transaction, cats []Category, typ TransactionType) MonthReport {
	totals := CalculateTotals(txs)
	groups := GroupByCategory(txs, cats, typ)

	typeTotal := totals.Expense
	if typ == Income {
		typeTotal = totals.Income
	}

	report := MonthReport{
		Year:       year,
		Month:      month,
		Income:     totals.Income,
		Expense:    totals.Expense,
		Balance:    totals.Net(),
		Type:       typ,
		Categories: make([]CategoryReport, 0, len(groups)),
	}
	for _, g := range groups {
		var pct float64
		if typeTotal > 0 {
			pct = float64(g.Total) * 100 / float64(typeTotal)
		}
		report.Categories = append(report.Categories, CategoryReport{CategoryGroup: g, Percentage: pct})
	}
	return report
}

// FindCategory looks a category up by id.
func FindCategory(cats []Category, id string) (Category, bool) {
	for _, c := range cats {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FindWallet looks a wallet up by id.
func FindWallet(wallets []Wallet, id string) (Wallet, bool) {
	for _, w := range wallets {
		if w.ID == id {
			return w, true
		}
	}
	return Wallet{}, false
}

// CategoryLabel is the display name for id, "Unknown" when it is gone.
func CategoryLabel(cats []Category, id string) string {
	if c, ok := FindCategory(cats, id); ok && c.Name != "" {
		return c.Name
	}
	return UnknownCategoryName
}

// WalletLabel is the display name for id, "Unknown" when it is gone.
func WalletLabel(wallets []Wallet, id string) string {
	if w, ok := FindWallet(wallets, id); ok && w.Name != "" {
		return w.Name
	}
	return UnknownWalletName
}

// TotalBalance sums the stored balances of all wallets.
func TotalBalance(wallets []Wallet) int64 {
	var sum int64
	for _, w := range wallets {
		sum += w.Balance
	}
	return sum
}
