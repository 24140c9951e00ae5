package cli

import (
	"context"
	"fmt"

	"gastos/internal/core"
)

func (m *Menu) budgetActions() []action {
	return []action{
		{"1", "List budgets", m.listBudgets},
		{"2", "Set budget", m.setBudget},
		{"3", "Remove budget", m.removeBudget},
		{"4", "Recompute spend", m.recomputeSpend},
	}
}

func (m *Menu) listBudgets(context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	budgets := m.ledger.Budgets(period)
	if len(budgets) == 0 {
		m.printf("No budgets for %s.\n", period)
		return nil
	}
	m.printf("\n%-20s %12s %12s %9s\n", "Category", "Spent", "Limit", "Used")
	for _, b := range budgets {
		m.printf("%-20s %12s %12s %8s%%\n", b.Category,
			core.FormatMoney(b.CurrentSpend), core.FormatMoney(b.Limit), b.PercentUsed().StringFixed(1))
	}
	for _, a := range m.ledger.Alerts(period) {
		m.printf("! %s\n", a.Message())
	}
	return nil
}

func (m *Menu) setBudget(ctx context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	category, err := m.p.required("Category")
	if err != nil {
		return err
	}
	limit, err := m.p.amount("Monthly limit")
	if err != nil {
		return err
	}
	b, err := m.ledger.SetBudget(ctx, category, limit, period)
	if err != nil {
		return err
	}
	m.printf("Budget %q for %s: %s of %s used.\n", b.Category, period,
		core.FormatMoney(b.CurrentSpend), core.FormatMoney(b.Limit))
	return nil
}

func (m *Menu) removeBudget(ctx context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	category, err := m.p.required("Category")
	if err != nil {
		return err
	}
	ok, err := m.p.confirm(fmt.Sprintf("Remove budget %q for %s?", category, period))
	if err != nil {
		return err
	}
	if !ok {
		m.printf("Cancelled.\n")
		return nil
	}
	if err := m.ledger.RemoveBudget(ctx, category, period); err != nil {
		return err
	}
	m.printf("Budget %q removed.\n", category)
	return nil
}

func (m *Menu) recomputeSpend(ctx context.Context) error {
	period, err := m.p.period(m.currentPeriod())
	if err != nil {
		return err
	}
	if err := m.ledger.RecomputeSpend(ctx, period); err != nil {
		return err
	}
	m.printf("Budget spend for %s recomputed.\n", period)
	return nil
}
