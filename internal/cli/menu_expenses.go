package cli

import (
	"context"
	"errors"
	"fmt"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

func (m *Menu) expenseActions() []action {
	return []action{
		{"1", "List expenses", m.listExpenses},
		{"2", "Add expense", m.addExpense},
		{"3", "Pay expense from an account", m.payExpense},
		{"4", "Mark as paid (no account)", m.markPaid},
		{"5", "Mark as unpaid", m.markUnpaid},
		{"6", "Edit expense", m.editExpense},
		{"7", "Remove expense", m.removeExpense},
	}
}

func (m *Menu) listExpenses(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	expenses := m.ledger.Expenses(period)
	if len(expenses) == 0 {
		m.printf("No expenses in %s.\n", period)
		return nil
	}
	m.printf("\nExpenses of %s %d\n", period.MonthName(), period.Year)
	for _, e := range expenses {
		m.printExpense(e)
	}
	return nil
}

func (m *Menu) printExpense(e core.Expense) {
	status := "open"
	if e.Paid {
		status = "paid " + e.PaidDate.String()
	}
	due := e.DueDate.String()
	if due == "" {
		due = "-"
	}
	m.printf("#%-5d %-28s %12s  due %-10s  %-14s %-16s %s\n",
		e.ID, e.Description, core.FormatMoney(e.Amount), due, e.Category, e.Kind.Label(), status)
}

func (m *Menu) addExpense(ctx context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	description, err := m.p.required("Description")
	if err != nil {
		return err
	}
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	kindChoice, err := m.p.text("Kind: 1 normal, 2 fixed, 3 paid immediately", "1")
	if err != nil {
		return err
	}
	e := core.Expense{Description: description, Amount: amount}
	switch kindChoice {
	case "1":
		e.Kind = core.KindNormal
	case "2":
		e.Kind = core.KindFixed
	case "3":
		e.Kind = core.KindInstant
	default:
		return badInput("unknown kind %q", kindChoice)
	}
	if e.Kind != core.KindInstant {
		if e.DueDate, err = m.p.date("Due date", m.today()); err != nil {
			return err
		}
	}
	if e.Category, err = m.p.text("Category", "General"); err != nil {
		return err
	}

	saved, err := m.ledger.AddExpense(ctx, e, period)
	if err != nil {
		return err
	}
	m.printf("Expense #%d added to %s.\n", saved.ID, period)

	if saved.Paid {
		return nil
	}
	payNow, err := m.p.confirm("Pay it now from an account?")
	if err != nil || !payNow {
		return err
	}
	account, err := m.p.text("Account", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	return m.pay(ctx, saved.ID, account)
}

func (m *Menu) payExpense(ctx context.Context) error {
	id, err := m.p.id("Expense id")
	if err != nil {
		return err
	}
	account, err := m.p.text("Account", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	return m.pay(ctx, id, account)
}

// pay offers an overdraft retry when the account cannot cover the expense.
func (m *Menu) pay(ctx context.Context, id int64, account string) error {
	opts := ledger.PayOptions{Account: account, PaidDate: m.today()}
	mv, err := m.ledger.PayFromAccount(ctx, id, opts)

	var short *ledger.InsufficientFundsError
	if errors.As(err, &short) {
		m.printf("%q has %s, %s short of %s.\n", short.Account,
			core.FormatMoney(short.Balance), core.FormatMoney(short.Shortfall()), core.FormatMoney(short.Amount))
		anyway, cerr := m.p.confirm("Pay anyway and overdraw?")
		if cerr != nil {
			return cerr
		}
		if !anyway {
			m.printf("Payment cancelled.\n")
			return nil
		}
		opts.ForceOverdraft = true
		mv, err = m.ledger.PayFromAccount(ctx, id, opts)
	}
	if err != nil {
		return err
	}
	m.printf("Paid. %q balance: %s -> %s.\n", account, core.FormatMoney(mv.PriorBalance), core.FormatMoney(mv.NewBalance))
	return nil
}

func (m *Menu) markPaid(ctx context.Context) error {
	id, err := m.p.id("Expense id")
	if err != nil {
		return err
	}
	paidDate, err := m.p.date("Paid on", m.today())
	if err != nil {
		return err
	}
	changed, err := m.ledger.MarkPaid(ctx, id, paidDate)
	if err != nil {
		return err
	}
	if !changed {
		m.printf("Expense #%d was already paid.\n", id)
		return nil
	}
	m.printf("Expense #%d marked as paid.\n", id)
	return nil
}

func (m *Menu) markUnpaid(ctx context.Context) error {
	id, err := m.p.id("Expense id")
	if err != nil {
		return err
	}
	changed, err := m.ledger.MarkUnpaid(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		m.printf("Expense #%d is not paid or was paid immediately; nothing changed.\n", id)
		return nil
	}
	m.printf("Expense #%d marked as unpaid.\n", id)
	return nil
}

func (m *Menu) editExpense(ctx context.Context) error {
	id, err := m.p.id("Expense id")
	if err != nil {
		return err
	}
	current, _, ok := m.ledger.Expense(id)
	if !ok {
		return fmt.Errorf("%w: expense #%d", ledger.ErrNotFound, id)
	}
	m.printExpense(current)

	var edit ledger.ExpenseEdit
	if edit.Description, err = m.p.optionalText("Description"); err != nil {
		return err
	}
	if edit.Amount, err = m.p.optionalAmount("Amount (blank keeps)"); err != nil {
		return err
	}
	if current.Kind != core.KindInstant {
		if edit.DueDate, err = m.p.optionalDate("Due date, blank keeps"); err != nil {
			return err
		}
	}
	if edit.Category, err = m.p.optionalText("Category"); err != nil {
		return err
	}

	updated, err := m.ledger.EditExpense(ctx, id, edit)
	if err != nil {
		return err
	}
	m.printExpense(updated)
	return nil
}

func (m *Menu) removeExpense(ctx context.Context) error {
	id, err := m.p.id("Expense id")
	if err != nil {
		return err
	}
	ok, err := m.p.confirm(fmt.Sprintf("Remove expense #%d?", id))
	if err != nil {
		return err
	}
	if !ok {
		m.printf("Cancelled.\n")
		return nil
	}
	if err := m.ledger.RemoveExpense(ctx, id); err != nil {
		return err
	}
	m.printf("Expense #%d removed.\n", id)
	return nil
}
