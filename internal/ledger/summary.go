package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// MonthlyTotals summarizes a period. FinalBalance subtracts every expense
// of the period; AvailableNow only the paid ones.
func (l *Ledger) MonthlyTotals(period core.Period) core.MonthSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := core.MonthSummary{
		Period:           period,
		TotalIncome:      decimal.Zero,
		TotalExpense:     decimal.Zero,
		TotalExpensePaid: decimal.Zero,
		AccountsTotal:    l.totalBalance(),
	}
	for _, inc := range l.incomes[period] {
		s.TotalIncome = s.TotalIncome.Add(inc.Amount)
	}
	for _, e := range l.expenses[period] {
		s.TotalExpense = s.TotalExpense.Add(e.Amount)
		if e.Paid {
			s.TotalExpensePaid = s.TotalExpensePaid.Add(e.Amount)
		}
	}
	s.FinalBalance = s.AccountsTotal.Add(s.TotalIncome).Sub(s.TotalExpense)
	s.AvailableNow = s.AccountsTotal.Add(s.TotalIncome).Sub(s.TotalExpensePaid)
	return s
}

// SpendByCategory sums the paid expenses of a period per category, largest
// first. The first spelling seen names the category.
func (l *Ledger) SpendByCategory(period core.Period) []core.CategoryAmount {
	l.mu.Lock()
	defer l.mu.Unlock()

	index := make(map[string]int)
	var out []core.CategoryAmount
	for _, e := range sortedExpenses(l.expenses[period]) {
		if !e.Paid {
			continue
		}
		key := core.CategoryKey(e.Category)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, core.CategoryAmount{Name: e.Category, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(e.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Amount.Equal(out[j].Amount) {
			return out[i].Amount.GreaterThan(out[j].Amount)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Snapshot returns a deep copy of the whole ledger state.
func (l *Ledger) Snapshot() core.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Ledger) snapshot() core.Snapshot {
	snap := core.Snapshot{
		Expenses:       l.expenses,
		Incomes:        l.incomes,
		Budgets:        l.budgets,
		DefaultAccount: l.defaultAccount,
	}
	for _, name := range l.sortedAccountNames() {
		snap.Accounts = append(snap.Accounts, *l.accounts[name])
	}
	return snap.Clone()
}
