package cli

import (
	"context"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

func (m *Menu) searchActions() []action {
	return []action{
		{"1", "Search expenses", m.searchExpenses},
		{"2", "Search incomes", m.searchIncomes},
	}
}

func (m *Menu) reportActions() []action {
	return []action{
		{"1", "Monthly summary", m.monthlySummary},
		{"2", "Upcoming due expenses", m.upcomingDue},
		{"3", "Budget alerts", m.budgetAlerts},
		{"4", "Spending by category", m.spendByCategory},
	}
}

// searchTerms collects the filters both searches share.
func (m *Menu) searchTerms() (term, category string, min decimal.Decimal, max *decimal.Decimal, from, to core.Date, err error) {
	if term, err = m.p.text("Text contains", ""); err != nil {
		return
	}
	if category, err = m.p.text("Category", ""); err != nil {
		return
	}
	var lo *decimal.Decimal
	if lo, err = m.p.optionalAmount("Minimum amount (blank for none)"); err != nil {
		return
	}
	if lo != nil {
		min = *lo
	}
	if max, err = m.p.optionalAmount("Maximum amount (blank for none)"); err != nil {
		return
	}
	if from, err = m.p.date("From", core.Date{}); err != nil {
		return
	}
	to, err = m.p.date("To", core.Date{})
	return
}

func (m *Menu) searchExpenses(context.Context) error {
	term, category, min, max, from, to, err := m.searchTerms()
	if err != nil {
		return err
	}
	paid, err := m.p.tristate("Paid")
	if err != nil {
		return err
	}
	matches := m.ledger.FindExpenses(ledger.ExpenseFilter{
		Term: term, Category: category, Min: min, Max: max, Paid: paid, From: from, To: to,
	})
	if len(matches) == 0 {
		m.printf("No matching expenses.\n")
		return nil
	}
	total := decimal.Zero
	for _, match := range matches {
		m.printf("%s ", match.Period)
		m.printExpense(match.Expense)
		total = total.Add(match.Expense.Amount)
	}
	m.printf("%d expenses, %s in total.\n", len(matches), core.FormatMoney(total))
	return nil
}

func (m *Menu) searchIncomes(context.Context) error {
	term, category, min, max, from, to, err := m.searchTerms()
	if err != nil {
		return err
	}
	matches := m.ledger.FindIncomes(ledger.IncomeFilter{
		Term: term, Category: category, Min: min, Max: max, From: from, To: to,
	})
	if len(matches) == 0 {
		m.printf("No matching incomes.\n")
		return nil
	}
	total := decimal.Zero
	for _, match := range matches {
		m.printf("%s ", match.Period)
		m.printIncome(match.Income)
		total = total.Add(match.Income.Amount)
	}
	m.printf("%d incomes, %s in total.\n", len(matches), core.FormatMoney(total))
	return nil
}

func (m *Menu) monthlySummary(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	s := m.ledger.MonthlyTotals(period)
	m.printf("\nSummary of %s %d\n", period.MonthName(), period.Year)
	m.printf("  %-24s %14s\n", "Accounts total", core.FormatMoney(s.AccountsTotal))
	m.printf("  %-24s %14s\n", "Income", core.FormatMoney(s.TotalIncome))
	m.printf("  %-24s %14s\n", "Expenses", core.FormatMoney(s.TotalExpense))
	m.printf("  %-24s %14s\n", "Expenses paid", core.FormatMoney(s.TotalExpensePaid))
	m.printf("  %-24s %14s\n", "Available now", core.FormatMoney(s.AvailableNow))
	m.printf("  %-24s %14s\n", "Final balance", core.FormatMoney(s.FinalBalance))
	return nil
}

func (m *Menu) upcomingDue(context.Context) error {
	days, err := m.p.number("Days ahead", 7)
	if err != nil {
		return err
	}
	matches := m.ledger.UpcomingDue(days)
	if len(matches) == 0 {
		m.printf("Nothing due in the next %d days.\n", days)
		return nil
	}
	for _, match := range matches {
		m.printExpense(match.Expense)
	}
	return nil
}

func (m *Menu) budgetAlerts(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	alerts := m.ledger.Alerts(period)
	if len(alerts) == 0 {
		m.printf("All budgets for %s are below %d%%.\n", period, ledger.NearLimitPercent)
		return nil
	}
	for _, a := range alerts {
		m.printf("! %s\n", a.Message())
	}
	return nil
}

func (m *Menu) spendByCategory(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	rows := m.ledger.SpendByCategory(period)
	if len(rows) == 0 {
		m.printf("No spending in %s.\n", period)
		return nil
	}
	for _, row := range rows {
		m.printf("  %-20s %14s\n", row.Name, core.FormatMoney(row.Amount))
	}
	return nil
}
