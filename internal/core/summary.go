package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// MonthSummary is the derived money picture of one period.
//
// FinalBalance subtracts every expense of the period, paid or not (worst
// case); AvailableNow subtracts only the paid ones.
type MonthSummary struct {
	Period           Period
	TotalIncome      decimal.Decimal
	TotalExpense     decimal.Decimal
	TotalExpensePaid decimal.Decimal
	AccountsTotal    decimal.Decimal
	FinalBalance     decimal.Decimal
	AvailableNow     decimal.Decimal
}

// Snapshot is the complete persisted state of a ledger.
type Snapshot struct {
	Accounts       []Account
	Expenses       map[Period][]Expense
	Incomes        map[Period][]Income
	Budgets        map[Period][]Budget
	DefaultAccount string
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() Snapshot {
	return Snapshot{
		Expenses: make(map[Period][]Expense),
		Incomes:  make(map[Period][]Income),
		Budgets:  make(map[Period][]Budget),
	}
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := NewSnapshot()
	c.DefaultAccount = s.DefaultAccount
	for _, a := range s.Accounts {
		c.Accounts = append(c.Accounts, a.Clone())
	}
	for p, list := range s.Expenses {
		c.Expenses[p] = append([]Expense(nil), list...)
	}
	for p, list := range s.Incomes {
		c.Incomes[p] = append([]Income(nil), list...)
	}
	for p, list := range s.Budgets {
		c.Budgets[p] = append([]Budget(nil), list...)
	}
	return c
}

// PaidByCategory sums the paid expenses of a list grouped by category.
// Keys are lower-cased so budgets match categories case-insensitively.
func PaidByCategory(expenses []Expense) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, e := range expenses {
		if !e.Paid {
			continue
		}
		key := CategoryKey(e.Category)
		out[key] = out[key].Add(e.Amount)
	}
	return out
}

// CategoryKey is the normalized form categories are compared by.
func CategoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
