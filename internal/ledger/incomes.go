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

// IncomeEdit lists the fields to change; nil fields are kept.
type IncomeEdit struct {
	Description  *string
	Amount       *decimal.Decimal
	ReceivedDate *core.Date
	Category     *string
}

// AddIncome files an income under period without crediting any account.
func (l *Ledger) AddIncome(ctx context.Context, inc core.Income, period core.Period) (core.Income, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := period.Validate(); err != nil {
		return core.Income{}, invalid(err)
	}
	inc = l.normalizeIncome(inc)
	inc.ID = 0
	inc.DepositedTo = 0
	if err := inc.Validate(); err != nil {
		return core.Income{}, invalid(err)
	}

	if err := l.persist(ctx, applog.OpAddIncome, func(tx storage.Tx) error {
		return tx.AddIncome(ctx, period, &inc)
	}); err != nil {
		return core.Income{}, err
	}

	l.incomes[period] = append(l.incomes[period], inc)
	l.logger.InfoContext(ctx, "Income added",
		applog.NewFields().
			WithOperation(applog.OpAddIncome).
			WithAmount(core.FormatMoney(inc.Amount)).
			WithPeriod(period.String()).
			ToSlice()...)
	return inc, nil
}

// ProcessIncome credits an income to an account, the default one when
// account is empty. An income with a nonzero ID must be a stored one; it
// is marked as deposited and cannot be processed twice. An income without
// ID is credited without being filed.
func (l *Ledger) ProcessIncome(ctx context.Context, inc core.Income, account string) (core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stored *core.Income
	if inc.ID != 0 {
		ref, err := l.incomeRef(inc.ID)
		if err != nil {
			return core.Movement{}, err
		}
		if ref.DepositedTo != 0 {
			return core.Movement{}, fmt.Errorf("%w: %q", ErrAlreadyProcessed, ref.Description)
		}
		stored = ref
		inc = *ref
	} else {
		inc = l.normalizeIncome(inc)
		if err := inc.Validate(); err != nil {
			return core.Movement{}, invalid(err)
		}
	}

	acc, err := l.accountOrDefault(account)
	if err != nil {
		return core.Movement{}, err
	}
	change := l.stage(acc, inc.Amount, "Income: "+inc.Description)

	if err := l.persist(ctx, applog.OpProcessIncome, func(tx storage.Tx) error {
		if err := change.write(ctx, tx); err != nil {
			return err
		}
		if stored == nil {
			return nil
		}
		deposited := *stored
		deposited.DepositedTo = acc.ID
		return tx.UpdateIncome(ctx, deposited)
	}); err != nil {
		return core.Movement{}, err
	}

	if stored != nil {
		stored.DepositedTo = acc.ID
	}
	l.commit(ctx, change)

	l.logger.InfoContext(ctx, "Income processed",
		applog.NewFields().
			WithOperation(applog.OpProcessIncome).
			WithAccount(acc.Name, core.FormatMoney(acc.Balance)).
			WithAmount(core.FormatMoney(inc.Amount)).
			ToSlice()...)
	return change.m, nil
}

// EditIncome changes an income. A deposited income moves the credited
// account by the amount difference.
func (l *Ledger) EditIncome(ctx context.Context, id int64, edit IncomeEdit) (core.Income, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	inc, err := l.incomeRef(id)
	if err != nil {
		return core.Income{}, err
	}
	updated := *inc
	if edit.Description != nil {
		updated.Description = strings.TrimSpace(*edit.Description)
	}
	if edit.Amount != nil {
		updated.Amount = *edit.Amount
	}
	if edit.ReceivedDate != nil {
		updated.ReceivedDate = *edit.ReceivedDate
	}
	if edit.Category != nil {
		updated.Category = strings.TrimSpace(*edit.Category)
	}
	if err := updated.Validate(); err != nil {
		return core.Income{}, invalid(err)
	}

	var changes []balanceChange
	if diff := updated.Amount.Sub(inc.Amount); !diff.IsZero() {
		if acc := l.accountByID(inc.DepositedTo); acc != nil {
			changes = append(changes, l.stage(acc, diff, "Adjustment: "+updated.Description))
		}
	}

	if err := l.persist(ctx, applog.OpEditIncome, func(tx storage.Tx) error {
		if err := tx.UpdateIncome(ctx, updated); err != nil {
			return err
		}
		return writes(ctx, changes...)(tx)
	}); err != nil {
		return core.Income{}, err
	}

	*inc = updated
	l.commit(ctx, changes...)
	return updated, nil
}

// RemoveIncome deletes an income and debits it back from the account it
// was deposited to, if that account still exists.
func (l *Ledger) RemoveIncome(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	period, idx, ok := l.findIncome(id)
	if !ok {
		return fmt.Errorf("income %d: %w", id, ErrNotFound)
	}
	inc := l.incomes[period][idx]

	var changes []balanceChange
	if acc := l.accountByID(inc.DepositedTo); acc != nil {
		changes = append(changes, l.stage(acc, inc.Amount.Neg(), "Income removed: "+inc.Description))
	}

	if err := l.persist(ctx, applog.OpRemoveIncome, func(tx storage.Tx) error {
		deleted, err := tx.DeleteIncome(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("income %d: %w", id, storage.ErrNotFound)
		}
		return writes(ctx, changes...)(tx)
	}); err != nil {
		return err
	}

	list := l.incomes[period]
	l.incomes[period] = append(list[:idx:idx], list[idx+1:]...)
	if len(l.incomes[period]) == 0 {
		delete(l.incomes, period)
	}
	l.commit(ctx, changes...)
	return nil
}

// Incomes returns a copy of the incomes filed under period.
func (l *Ledger) Incomes(period core.Period) []core.Income {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Income(nil), l.incomes[period]...)
}

func (l *Ledger) Income(id int64) (core.Income, core.Period, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	period, idx, ok := l.findIncome(id)
	if !ok {
		return core.Income{}, core.Period{}, false
	}
	return l.incomes[period][idx], period, true
}

func (l *Ledger) normalizeIncome(inc core.Income) core.Income {
	inc.Description = strings.TrimSpace(inc.Description)
	inc.Category = strings.TrimSpace(inc.Category)
	if inc.Category == "" {
		inc.Category = "General"
	}
	if inc.ReceivedDate.IsZero() {
		inc.ReceivedDate = l.today()
	}
	return inc
}

func (l *Ledger) findIncome(id int64) (core.Period, int, bool) {
	for p, list := range l.incomes {
		for i := range list {
			if list[i].ID == id {
				return p, i, true
			}
		}
	}
	return core.Period{}, 0, false
}

func (l *Ledger) incomeRef(id int64) (*core.Income, error) {
	period, idx, ok := l.findIncome(id)
	if !ok {
		return nil, fmt.Errorf("income %d: %w", id, ErrNotFound)
	}
	return &l.incomes[period][idx], nil
}
