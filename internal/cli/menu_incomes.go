package cli

import (
	"context"
	"fmt"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

func (m *Menu) incomeActions() []action {
	return []action{
		{"1", "List incomes", m.listIncomes},
		{"2", "Add income", m.addIncome},
		{"3", "Deposit a recorded income", m.processIncome},
		{"4", "Edit income", m.editIncome},
		{"5", "Remove income", m.removeIncome},
	}
}

func (m *Menu) listIncomes(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	incomes := m.ledger.Incomes(period)
	if len(incomes) == 0 {
		m.printf("No incomes in %s.\n", period)
		return nil
	}
	m.printf("\nIncomes of %s %d\n", period.MonthName(), period.Year)
	for _, inc := range incomes {
		m.printIncome(inc)
	}
	return nil
}

func (m *Menu) printIncome(inc core.Income) {
	status := "not deposited"
	if inc.DepositedTo != 0 {
		status = "deposited"
	}
	m.printf("#%-5d %-28s %12s  on %-10s  %-14s %s\n",
		inc.ID, inc.Description, core.FormatMoney(inc.Amount), inc.ReceivedDate, inc.Category, status)
}

func (m *Menu) addIncome(ctx context.Context) error {
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
	received, err := m.p.date("Received on", m.today())
	if err != nil {
		return err
	}
	category, err := m.p.text("Category", "General")
	if err != nil {
		return err
	}

	saved, err := m.ledger.AddIncome(ctx, core.Income{
		Description:  description,
		Amount:       amount,
		ReceivedDate: received,
		Category:     category,
	}, period)
	if err != nil {
		return err
	}
	m.printf("Income #%d added to %s.\n", saved.ID, period)

	deposit, err := m.p.confirm("Deposit it into an account now?")
	if err != nil || !deposit {
		return err
	}
	return m.deposit(ctx, saved)
}

func (m *Menu) processIncome(ctx context.Context) error {
	id, err := m.p.id("Income id")
	if err != nil {
		return err
	}
	inc, _, ok := m.ledger.Income(id)
	if !ok {
		return fmt.Errorf("%w: income #%d", ledger.ErrNotFound, id)
	}
	return m.deposit(ctx, inc)
}

func (m *Menu) deposit(ctx context.Context, inc core.Income) error {
	account, err := m.p.text("Account", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	mv, err := m.ledger.ProcessIncome(ctx, inc, account)
	if err != nil {
		return err
	}
	m.printf("Deposited. %q balance: %s -> %s.\n", account, core.FormatMoney(mv.PriorBalance), core.FormatMoney(mv.NewBalance))
	return nil
}

func (m *Menu) editIncome(ctx context.Context) error {
	id, err := m.p.id("Income id")
	if err != nil {
		return err
	}
	current, _, ok := m.ledger.Income(id)
	if !ok {
		return fmt.Errorf("%w: income #%d", ledger.ErrNotFound, id)
	}
	m.printIncome(current)

	var edit ledger.IncomeEdit
	if edit.Description, err = m.p.optionalText("Description"); err != nil {
		return err
	}
	if edit.Amount, err = m.p.optionalAmount("Amount (blank keeps)"); err != nil {
		return err
	}
	if edit.ReceivedDate, err = m.p.optionalDate("Received on, blank keeps"); err != nil {
		return err
	}
	if edit.Category, err = m.p.optionalText("Category"); err != nil {
		return err
	}

	updated, err := m.ledger.EditIncome(ctx, id, edit)
	if err != nil {
		return err
	}
	m.printIncome(updated)
	return nil
}

func (m *Menu) removeIncome(ctx context.Context) error {
	id, err := m.p.id("Income id")
	if err != nil {
		return err
	}
	ok, err := m.p.confirm(fmt.Sprintf("Remove income #%d?", id))
	if err != nil {
		return err
	}
	if !ok {
		m.printf("Cancelled.\n")
		return nil
	}
	if err := m.ledger.RemoveIncome(ctx, id); err != nil {
		return err
	}
	m.printf("Income #%d removed.\n", id)
	return nil
}
