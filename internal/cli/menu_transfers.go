package cli

import (
	"context"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

func (m *Menu) transferActions() []action {
	return []action{
		{"1", "Transfer between accounts", m.transfer},
		{"2", "Deposit cash into the wallet", m.depositCash},
		{"3", "Spend cash from the wallet", m.withdrawCash},
		{"4", "Withdraw from an account to the wallet", m.toWallet},
		{"5", "Deposit wallet cash into an account", m.fromWallet},
	}
}

func (m *Menu) transfer(ctx context.Context) error {
	from, err := m.p.text("From", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	to, err := m.p.required("To")
	if err != nil {
		return err
	}
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	if err := m.ledger.Transfer(ctx, from, to, amount); err != nil {
		return err
	}
	m.printf("Transferred %s from %q to %q.\n", core.FormatMoney(amount), from, to)
	return m.printBalances(from, to)
}

func (m *Menu) depositCash(ctx context.Context) error {
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	label, err := m.p.text("Description", "Cash deposit")
	if err != nil {
		return err
	}
	if _, err := m.ledger.DepositCash(ctx, amount, label); err != nil {
		return err
	}
	return m.printBalances(ledger.WalletName)
}

func (m *Menu) withdrawCash(ctx context.Context) error {
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	label, err := m.p.text("Description", "Cash withdrawal")
	if err != nil {
		return err
	}
	if _, err := m.ledger.WithdrawCash(ctx, amount, label); err != nil {
		return err
	}
	return m.printBalances(ledger.WalletName)
}

func (m *Menu) toWallet(ctx context.Context) error {
	from, err := m.p.text("From", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	if err := m.ledger.TransferToWallet(ctx, from, amount); err != nil {
		return err
	}
	return m.printBalances(from, ledger.WalletName)
}

func (m *Menu) fromWallet(ctx context.Context) error {
	to, err := m.p.text("To", m.ledger.DefaultAccount())
	if err != nil {
		return err
	}
	amount, err := m.p.amount("Amount")
	if err != nil {
		return err
	}
	if err := m.ledger.TransferFromWallet(ctx, to, amount); err != nil {
		return err
	}
	return m.printBalances(ledger.WalletName, to)
}

func (m *Menu) printBalances(names ...string) error {
	for _, name := range names {
		if acc, ok := m.ledger.Account(name); ok {
			m.printf("  %-20s %14s\n", acc.Name, core.FormatMoney(acc.Balance))
		}
	}
	return nil
}
