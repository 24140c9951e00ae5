package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

func (m *Menu) accountActions() []action {
	return []action{
		{"1", "List accounts", m.listAccounts},
		{"2", "Create account", m.createAccount},
		{"3", "Rename account", m.renameAccount},
		{"4", "Change institution", m.setInstitution},
		{"5", "Remove account", m.removeAccount},
		{"6", "Set default account", m.setDefaultAccount},
		{"7", "Adjust balance", m.adjustBalance},
		{"8", "Movement history", m.history},
	}
}

func (m *Menu) listAccounts(context.Context) error {
	def := m.ledger.DefaultAccount()
	m.printf("\n  %-20s %-16s %14s\n", "Account", "Institution", "Balance")
	for _, a := range m.ledger.Accounts() {
		mark := " "
		if a.Name == def {
			mark = "*"
		}
		m.printf("%s %-20s %-16s %14s\n", mark, a.Name, a.Institution, core.FormatMoney(a.Balance))
	}
	m.printf("  %-37s %14s\n", "Total", core.FormatMoney(m.ledger.TotalBalance()))
	m.printf("(* default account)\n")
	return nil
}

func (m *Menu) createAccount(ctx context.Context) error {
	name, err := m.p.required("Name")
	if err != nil {
		return err
	}
	institution, err := m.p.text("Institution", "")
	if err != nil {
		return err
	}
	initial, err := m.p.signedAmount("Initial balance", decimal.Zero)
	if err != nil {
		return err
	}
	acc, err := m.ledger.CreateAccount(ctx, name, institution, initial)
	if err != nil {
		return err
	}
	m.printf("Account %q created with balance %s.\n", acc.Name, core.FormatMoney(acc.Balance))
	return nil
}

func (m *Menu) renameAccount(ctx context.Context) error {
	oldName, err := m.p.required("Current name")
	if err != nil {
		return err
	}
	newName, err := m.p.required("New name")
	if err != nil {
		return err
	}
	if err := m.ledger.RenameAccount(ctx, oldName, newName); err != nil {
		return err
	}
	m.printf("Account %q renamed to %q.\n", oldName, newName)
	return nil
}

func (m *Menu) setInstitution(ctx context.Context) error {
	name, err := m.p.required("Account")
	if err != nil {
		return err
	}
	institution, err := m.p.text("Institution", "")
	if err != nil {
		return err
	}
	if err := m.ledger.SetInstitution(ctx, name, institution); err != nil {
		return err
	}
	m.printf("Institution of %q updated.\n", name)
	return nil
}

func (m *Menu) removeAccount(ctx context.Context) error {
	name, err := m.p.required("Account")
	if err != nil {
		return err
	}
	question := fmt.Sprintf("Remove %q?", name)
	if acc, ok := m.ledger.Account(name); ok && !acc.Balance.IsZero() {
		question = fmt.Sprintf("Remove %q? Its balance of %s will be discarded.", name, core.FormatMoney(acc.Balance))
	}
	ok, err := m.p.confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		m.printf("Cancelled.\n")
		return nil
	}
	if err := m.ledger.RemoveAccount(ctx, name); err != nil {
		return err
	}
	m.printf("Account %q removed. Default account: %s.\n", name, m.ledger.DefaultAccount())
	return nil
}

func (m *Menu) setDefaultAccount(ctx context.Context) error {
	name, err := m.p.required("Account")
	if err != nil {
		return err
	}
	if err := m.ledger.SetDefaultAccount(ctx, name); err != nil {
		return err
	}
	m.printf("Default account is now %q.\n", name)
	return nil
}

func (m *Menu) adjustBalance(ctx context.Context) error {
	name, err := m.p.required("Account")
	if err != nil {
		return err
	}
	current := decimal.Zero
	if acc, ok := m.ledger.Account(name); ok {
		current = acc.Balance
	}
	balance, err := m.p.signedAmount("New balance", current)
	if err != nil {
		return err
	}
	label, err := m.p.text("Description", "Balance adjustment")
	if err != nil {
		return err
	}
	mv, err := m.ledger.AdjustBalance(ctx, name, balance, label)
	if err != nil {
		return err
	}
	m.printf("Balance of %q: %s -> %s (%s).\n", name,
		core.FormatMoney(mv.PriorBalance), core.FormatMoney(mv.NewBalance), signed(mv.Delta))
	return nil
}

func (m *Menu) history(context.Context) error {
	name, err := m.p.text("Account", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	limit, err := m.p.number("How many", 10)
	if err != nil {
		return err
	}
	moves, err := m.ledger.History(name, limit)
	if err != nil {
		return err
	}
	if len(moves) == 0 {
		m.printf("No movements for %q.\n", name)
		return nil
	}
	for _, mv := range moves {
		m.printf("%s  %12s  %12s  %s\n",
			mv.Timestamp.Local().Format("02/01/2006 15:04"), signed(mv.Delta),
			core.FormatMoney(mv.NewBalance), mv.Label)
	}
	return nil
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + core.FormatMoney(d)
	}
	return core.FormatMoney(d)
}
