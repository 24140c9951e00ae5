package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// ExpenseFilter selects expenses. Zero fields do not filter; Max nil means
// no upper bound. Date bounds are inclusive and apply to the due date, so
// an expense without one never matches a date filter.
type ExpenseFilter struct {
	Term     string
	Category string
	Min      decimal.Decimal
	Max      *decimal.Decimal
	Paid     *bool
	From     core.Date
	To       core.Date
}

// IncomeFilter is ExpenseFilter over incomes and their received date.
type IncomeFilter struct {
	Term     string
	Category string
	Min      decimal.Decimal
	Max      *decimal.Decimal
	From     core.Date
	To       core.Date
}

type ExpenseMatch struct {
	Expense core.Expense
	Period  core.Period
}

type IncomeMatch struct {
	Income core.Income
	Period core.Period
}

type textFilter struct {
	term     string
	category string
	min      decimal.Decimal
	max      *decimal.Decimal
	from, to core.Date
}

func (f textFilter) match(description, category string, amount decimal.Decimal, date core.Date) bool {
	if f.term != "" && !strings.Contains(strings.ToLower(description), f.term) {
		return false
	}
	if f.category != "" && core.CategoryKey(category) != f.category {
		return false
	}
	if amount.LessThan(f.min) {
		return false
	}
	if f.max != nil && amount.GreaterThan(*f.max) {
		return false
	}
	if !f.from.IsZero() || !f.to.IsZero() {
		if date.IsZero() {
			return false
		}
		if !f.from.IsZero() && date.Before(f.from) {
			return false
		}
		if !f.to.IsZero() && date.After(f.to) {
			return false
		}
	}
	return true
}

func newTextFilter(term, category string, min decimal.Decimal, max *decimal.Decimal, from, to core.Date) textFilter {
	return textFilter{
		term:     strings.ToLower(strings.TrimSpace(term)),
		category: core.CategoryKey(category),
		min:      min,
		max:      max,
		from:     from,
		to:       to,
	}
}

// FindExpenses returns the matching expenses ordered by period then ID.
// No match is an empty result.
func (l *Ledger) FindExpenses(f ExpenseFilter) []ExpenseMatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	tf := newTextFilter(f.Term, f.Category, f.Min, f.Max, f.From, f.To)
	var out []ExpenseMatch
	for _, p := range l.sortedPeriods() {
		for _, e := range sortedExpenses(l.expenses[p]) {
			if f.Paid != nil && e.Paid != *f.Paid {
				continue
			}
			if tf.match(e.Description, e.Category, e.Amount, e.DueDate) {
				out = append(out, ExpenseMatch{Expense: e, Period: p})
			}
		}
	}
	return out
}

// FindIncomes returns the matching incomes ordered by period then ID.
func (l *Ledger) FindIncomes(f IncomeFilter) []IncomeMatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	tf := newTextFilter(f.Term, f.Category, f.Min, f.Max, f.From, f.To)
	var out []IncomeMatch
	for _, p := range l.sortedPeriods() {
		list := append([]core.Income(nil), l.incomes[p]...)
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		for _, inc := range list {
			if tf.match(inc.Description, inc.Category, inc.Amount, inc.ReceivedDate) {
				out = append(out, IncomeMatch{Income: inc, Period: p})
			}
		}
	}
	return out
}

// UpcomingDue lists unpaid expenses due between today and today+days,
// both inclusive, soonest first.
func (l *Ledger) UpcomingDue(days int) []ExpenseMatch {
	l.mu.Lock()
	defer l.mu.Unlock()

	if days < 0 {
		days = 0
	}
	from := l.today()
	to := from.AddDays(days)

	var out []ExpenseMatch
	for p, list := range l.expenses {
		for _, e := range list {
			if e.Paid || e.DueDate.IsZero() {
				continue
			}
			if e.DueDate.Before(from) || e.DueDate.After(to) {
				continue
			}
			out = append(out, ExpenseMatch{Expense: e, Period: p})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Expense, out[j].Expense
		if !a.DueDate.Equal(b.DueDate.Time) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.ID < b.ID
	})
	return out
}

func sortedExpenses(list []core.Expense) []core.Expense {
	out := append([]core.Expense(nil), list...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
