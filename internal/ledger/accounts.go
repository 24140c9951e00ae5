package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

const initialBalanceLabel = "Initial balance"

// CreateAccount adds an account. A nonzero initial balance is recorded as
// the first movement of its history.
func (l *Ledger) CreateAccount(ctx context.Context, name, institution string, initial decimal.Decimal) (core.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name = strings.TrimSpace(name)
	acc := &core.Account{Name: name, Institution: strings.TrimSpace(institution)}
	if err := acc.Validate(); err != nil {
		return core.Account{}, invalid(err)
	}
	if _, exists := l.accounts[name]; exists {
		return core.Account{}, fmt.Errorf("%w: %q", ErrDuplicateAccount, name)
	}
	if !initial.IsZero() {
		acc.ApplyBalanceChange(initial, initialBalanceLabel, initial, l.now())
	}

	if err := l.persist(ctx, applog.OpCreateAccount, func(tx storage.Tx) error {
		return tx.CreateAccount(ctx, acc)
	}); err != nil {
		return core.Account{}, err
	}

	l.accounts[name] = acc
	if len(acc.History) > 0 {
		l.notify(ctx, balanceChange{acc: acc, m: acc.History[0]})
	}
	l.logger.InfoContext(ctx, "Account created",
		applog.NewFields().
			WithOperation(applog.OpCreateAccount).
			WithAccount(name, core.FormatMoney(acc.Balance)).
			ToSlice()...)
	return acc.Clone(), nil
}

// RenameAccount re-keys an account, following the default pointer.
func (l *Ledger) RenameAccount(ctx context.Context, oldName, newName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	newName = strings.TrimSpace(newName)
	if newName == "" {
		return invalid(core.ErrEmptyName)
	}
	acc, err := l.account(oldName)
	if err != nil {
		return err
	}
	if oldName == WalletName {
		return ErrWalletAccount
	}
	if newName == oldName {
		return nil
	}
	if _, exists := l.accounts[newName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAccount, newName)
	}
	followDefault := l.defaultAccount == oldName

	if err := l.persist(ctx, applog.OpRenameAccount, func(tx storage.Tx) error {
		if err := tx.RenameAccount(ctx, acc.ID, newName); err != nil {
			return err
		}
		if followDefault {
			return tx.SetConfig(ctx, storage.ConfigDefaultAccount, newName)
		}
		return nil
	}); err != nil {
		return err
	}

	delete(l.accounts, oldName)
	acc.Name = newName
	l.accounts[newName] = acc
	if followDefault {
		l.defaultAccount = newName
	}
	l.logger.InfoContext(ctx, "Account renamed",
		applog.FieldOperation, applog.OpRenameAccount,
		applog.FieldAccount, newName,
		"previous_name", oldName,
	)
	return nil
}

// SetInstitution changes the bank label of an account.
func (l *Ledger) SetInstitution(ctx context.Context, name, institution string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(name)
	if err != nil {
		return err
	}
	institution = strings.TrimSpace(institution)
	if err := l.persist(ctx, applog.OpRenameAccount, func(tx storage.Tx) error {
		return tx.SetAccountInstitution(ctx, acc.ID, institution)
	}); err != nil {
		return err
	}
	acc.Institution = institution
	return nil
}

// RemoveAccount deletes an account. Its balance is discarded, not moved.
// The sole remaining account and the Wallet cannot be removed.
func (l *Ledger) RemoveAccount(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(name)
	if err != nil {
		return err
	}
	if len(l.accounts) == 1 {
		return ErrLastAccount
	}
	if name == WalletName {
		return ErrWalletAccount
	}

	newDefault := l.defaultAccount
	if newDefault == name {
		for _, other := range l.sortedAccountNames() {
			if other != name {
				newDefault = other
				break
			}
		}
	}

	if err := l.persist(ctx, applog.OpRemoveAccount, func(tx storage.Tx) error {
		ok, err := tx.DeleteAccount(ctx, acc.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("account %q: %w", name, storage.ErrNotFound)
		}
		if newDefault != l.defaultAccount {
			return tx.SetConfig(ctx, storage.ConfigDefaultAccount, newDefault)
		}
		return nil
	}); err != nil {
		return err
	}

	delete(l.accounts, name)
	l.defaultAccount = newDefault
	l.unlinkAccount(acc.ID)

	l.logger.InfoContext(ctx, "Account removed",
		applog.NewFields().
			WithOperation(applog.OpRemoveAccount).
			WithAccount(name, core.FormatMoney(acc.Balance)).
			ToSlice()...)
	return nil
}

// unlinkAccount clears references to a deleted account, mirroring the
// ON DELETE SET NULL of the relational schema.
func (l *Ledger) unlinkAccount(id int64) {
	for p, list := range l.expenses {
		for i := range list {
			if list[i].PaidFrom == id {
				l.expenses[p][i].PaidFrom = 0
			}
		}
	}
	for p, list := range l.incomes {
		for i := range list {
			if list[i].DepositedTo == id {
				l.incomes[p][i].DepositedTo = 0
			}
		}
	}
}

func (l *Ledger) SetDefaultAccount(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.account(name); err != nil {
		return err
	}
	if name == l.defaultAccount {
		return nil
	}
	if err := l.persist(ctx, applog.OpSetDefault, func(tx storage.Tx) error {
		return tx.SetConfig(ctx, storage.ConfigDefaultAccount, name)
	}); err != nil {
		return err
	}
	l.defaultAccount = name
	return nil
}

// AdjustBalance sets an account balance to an absolute value, recording
// the difference as the movement delta.
func (l *Ledger) AdjustBalance(ctx context.Context, name string, newBalance decimal.Decimal, label string) (core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(name)
	if err != nil {
		return core.Movement{}, err
	}
	change := l.stage(acc, newBalance.Sub(acc.Balance), labelOr(label, "Balance adjustment"))

	if err := l.persist(ctx, applog.OpAdjustBalance, writes(ctx, change)); err != nil {
		return core.Movement{}, err
	}
	l.commit(ctx, change)
	return change.m, nil
}

// Accounts returns copies of all accounts sorted by name.
func (l *Ledger) Accounts() []core.Account {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]core.Account, 0, len(l.accounts))
	for _, name := range l.sortedAccountNames() {
		out = append(out, l.accounts[name].Clone())
	}
	return out
}

func (l *Ledger) Account(name string) (core.Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, ok := l.accounts[name]
	if !ok {
		return core.Account{}, false
	}
	return acc.Clone(), true
}

func (l *Ledger) DefaultAccount() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaultAccount
}

func (l *Ledger) Wallet() core.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[WalletName].Clone()
}

// TotalBalance sums every account balance. It is never cached.
func (l *Ledger) TotalBalance() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalBalance()
}

func (l *Ledger) totalBalance() decimal.Decimal {
	total := decimal.Zero
	for _, a := range l.accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// History returns up to limit movements of an account, newest first. A
// limit <= 0 returns all of them.
func (l *Ledger) History(name string, limit int) ([]core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.account(name)
	if err != nil {
		return nil, err
	}
	n := len(acc.History)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]core.Movement, 0, n)
	for i := len(acc.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, acc.History[i])
	}
	return out, nil
}
