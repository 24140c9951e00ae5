package ledger

import (
	"context"
	"fmt"
	"strings"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// Restore replaces the whole ledger with snap. The Wallet and the default
// account guarantees are applied to the restored state before it is
// written.
func (l *Ledger) Restore(ctx context.Context, snap core.Snapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restore(ctx, snap)
}

// Reset clears every account, expense, income and budget, leaving an empty
// Wallet as the default account.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restore(ctx, core.NewSnapshot())
}

func (l *Ledger) restore(ctx context.Context, snap core.Snapshot) error {
	working := snap.Clone()
	if err := validateSnapshot(working); err != nil {
		return err
	}

	hasWallet := false
	names := make(map[string]bool, len(working.Accounts))
	for _, a := range working.Accounts {
		names[a.Name] = true
		if a.Name == WalletName {
			hasWallet = true
		}
	}
	if !hasWallet {
		working.Accounts = append(working.Accounts, core.Account{Name: WalletName, Institution: walletInstitution})
	}
	if !names[working.DefaultAccount] {
		working.DefaultAccount = WalletName
	}

	if err := l.persist(ctx, applog.OpRestore, func(tx storage.Tx) error {
		return tx.ReplaceAll(ctx, &working)
	}); err != nil {
		return err
	}

	l.load(working)
	l.logger.InfoContext(ctx, "Ledger restored",
		applog.FieldOperation, applog.OpRestore,
		"accounts", len(working.Accounts),
	)
	return nil
}

func validateSnapshot(snap core.Snapshot) error {
	seen := make(map[string]bool, len(snap.Accounts))
	for _, a := range snap.Accounts {
		name := strings.TrimSpace(a.Name)
		if err := a.Validate(); err != nil {
			return invalid(err)
		}
		if seen[name] {
			return fmt.Errorf("%w: %q", ErrDuplicateAccount, name)
		}
		seen[name] = true
		if !a.Consistent() {
			return invalid(fmt.Errorf("account %q: balance does not match its history", name))
		}
	}
	for p, list := range snap.Expenses {
		if err := p.Validate(); err != nil {
			return invalid(err)
		}
		for _, e := range list {
			if err := e.Validate(); err != nil {
				return invalid(fmt.Errorf("expense %q: %w", e.Description, err))
			}
		}
	}
	for p, list := range snap.Incomes {
		if err := p.Validate(); err != nil {
			return invalid(err)
		}
		for _, inc := range list {
			if err := inc.Validate(); err != nil {
				return invalid(fmt.Errorf("income %q: %w", inc.Description, err))
			}
		}
	}
	for p, list := range snap.Budgets {
		for _, b := range list {
			b.Period = p
			if err := b.Validate(); err != nil {
				return invalid(fmt.Errorf("budget %q: %w", b.Category, err))
			}
		}
	}
	return nil
}
