package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// PayOptions controls PayFromAccount. An empty Account means the default
// account; a zero PaidDate means today.
type PayOptions struct {
	Account        string
	ForceOverdraft bool
	PaidDate       core.Date
}

// ExpenseEdit lists the fields to change; nil fields are kept.
type ExpenseEdit struct {
	Description *string
	Amount      *decimal.Decimal
	DueDate     *core.Date
	Category    *string
}

// AddExpense files an expense under period. It never touches a balance;
// an instant expense is recorded as paid today.
func (l *Ledger) AddExpense(ctx context.Context, e core.Expense, period core.Period) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := period.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}
	e.ID = 0
	e.PaidFrom = 0
	e.Description = strings.TrimSpace(e.Description)
	e.Category = strings.TrimSpace(e.Category)
	if e.Paid && e.PaidDate.IsZero() {
		e.PaidDate = l.today()
	}
	e.Normalize(l.today())
	if err := e.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	if err := l.persist(ctx, applog.OpAddExpense, func(tx storage.Tx) error {
		return tx.AddExpense(ctx, period, &e)
	}); err != nil {
		return core.Expense{}, err
	}

	l.expenses[period] = append(l.expenses[period], e)
	l.logger.InfoContext(ctx, "Expense added",
		applog.NewFields().
			WithOperation(applog.OpAddExpense).
			WithAmount(core.FormatMoney(e.Amount)).
			WithPeriod(period.String()).
			ToSlice()...)
	return e, nil
}

// MarkPaid records an out-of-band payment. It reports false when the
// expense was already paid and never changes a balance.
func (l *Ledger) MarkPaid(ctx context.Context, id int64, paidDate core.Date) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.expenseRef(id)
	if err != nil {
		return false, err
	}
	if e.Paid {
		return false, nil
	}
	if paidDate.IsZero() {
		paidDate = l.today()
	}

	if err := l.persist(ctx, applog.OpMarkPaid, func(tx storage.Tx) error {
		return tx.MarkExpensePaid(ctx, id, paidDate, 0)
	}); err != nil {
		return false, err
	}

	e.Paid = true
	e.PaidDate = paidDate
	return true, nil
}

// MarkUnpaid clears the payment of an expense. Instant expenses and unpaid
// ones report false. A payment made from an account is credited back.
func (l *Ledger) MarkUnpaid(ctx context.Context, id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.expenseRef(id)
	if err != nil {
		return false, err
	}
	if e.Kind == core.KindInstant || !e.Paid {
		return false, nil
	}

	var changes []balanceChange
	if acc := l.accountByID(e.PaidFrom); acc != nil {
		changes = append(changes, l.stage(acc, e.Amount, "Payment reversed: "+e.Description))
	}

	if err := l.persist(ctx, applog.OpMarkUnpaid, func(tx storage.Tx) error {
		if err := tx.MarkExpenseUnpaid(ctx, id); err != nil {
			return err
		}
		return writes(ctx, changes...)(tx)
	}); err != nil {
		return false, err
	}

	e.Paid = false
	e.PaidDate = core.Date{}
	e.PaidFrom = 0
	l.commit(ctx, changes...)
	return true, nil
}

// PayFromAccount debits the expense amount from an account and marks the
// expense paid. Without ForceOverdraft a balance lower than the amount is
// refused with an *InsufficientFundsError.
func (l *Ledger) PayFromAccount(ctx context.Context, id int64, opts PayOptions) (core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.expenseRef(id)
	if err != nil {
		return core.Movement{}, err
	}
	if e.Paid {
		return core.Movement{}, fmt.Errorf("%w: %q", ErrAlreadyPaid, e.Description)
	}
	acc, err := l.accountOrDefault(opts.Account)
	if err != nil {
		return core.Movement{}, err
	}
	if acc.Balance.LessThan(e.Amount) && !opts.ForceOverdraft {
		return core.Movement{}, insufficient(acc, e.Amount)
	}
	paidDate := opts.PaidDate
	if paidDate.IsZero() {
		paidDate = l.today()
	}
	change := l.stage(acc, e.Amount.Neg(), "Payment: "+e.Description)

	if err := l.persist(ctx, applog.OpPayExpense, func(tx storage.Tx) error {
		if err := change.write(ctx, tx); err != nil {
			return err
		}
		return tx.MarkExpensePaid(ctx, id, paidDate, acc.ID)
	}); err != nil {
		return core.Movement{}, err
	}

	e.Paid = true
	e.PaidDate = paidDate
	e.PaidFrom = acc.ID
	l.commit(ctx, change)

	l.logger.InfoContext(ctx, "Expense paid",
		applog.NewFields().
			WithOperation(applog.OpPayExpense).
			WithAccount(acc.Name, core.FormatMoney(acc.Balance)).
			WithAmount(core.FormatMoney(e.Amount)).
			ToSlice()...)
	return change.m, nil
}

// EditExpense changes the descriptive fields of an expense. When a payment
// from an account changes amount, that account absorbs the difference.
func (l *Ledger) EditExpense(ctx context.Context, id int64, edit ExpenseEdit) (core.Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := l.expenseRef(id)
	if err != nil {
		return core.Expense{}, err
	}
	updated := *e
	if edit.Description != nil {
		updated.Description = strings.TrimSpace(*edit.Description)
	}
	if edit.Amount != nil {
		updated.Amount = *edit.Amount
	}
	if edit.Category != nil {
		updated.Category = strings.TrimSpace(*edit.Category)
	}
	if edit.DueDate != nil {
		if updated.Kind == core.KindInstant {
			return core.Expense{}, invalid(errors.New("instant expenses have no due date"))
		}
		updated.DueDate = *edit.DueDate
	}
	if err := updated.Validate(); err != nil {
		return core.Expense{}, invalid(err)
	}

	var changes []balanceChange
	if diff := e.Amount.Sub(updated.Amount); !diff.IsZero() && updated.Paid {
		if acc := l.accountByID(e.PaidFrom); acc != nil {
			changes = append(changes, l.stage(acc, diff, "Adjustment: "+updated.Description))
		}
	}

	if err := l.persist(ctx, applog.OpEditExpense, func(tx storage.Tx) error {
		if err := tx.UpdateExpense(ctx, updated); err != nil {
			return err
		}
		return writes(ctx, changes...)(tx)
	}); err != nil {
		return core.Expense{}, err
	}

	*e = updated
	l.commit(ctx, changes...)
	return updated, nil
}

// RemoveExpense deletes an expense. If it was paid from an account that
// still exists the amount is refunded to it.
func (l *Ledger) RemoveExpense(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	period, idx, ok := l.findExpense(id)
	if !ok {
		return fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	e := l.expenses[period][idx]

	var changes []balanceChange
	if e.Paid {
		if acc := l.accountByID(e.PaidFrom); acc != nil {
			changes = append(changes, l.stage(acc, e.Amount, "Refund: "+e.Description))
		}
	}

	if err := l.persist(ctx, applog.OpRemoveExpense, func(tx storage.Tx) error {
		deleted, err := tx.DeleteExpense(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
		}
		return writes(ctx, changes...)(tx)
	}); err != nil {
		return err
	}

	list := l.expenses[period]
	l.expenses[period] = append(list[:idx:idx], list[idx+1:]...)
	if len(l.expenses[period]) == 0 {
		delete(l.expenses, period)
	}
	l.commit(ctx, changes...)

	l.logger.InfoContext(ctx, "Expense removed",
		applog.FieldOperation, applog.OpRemoveExpense,
		applog.FieldExpenseID, id,
		"refunded", len(changes) > 0,
	)
	return nil
}

// Expenses returns a copy of the expenses filed under period.
func (l *Ledger) Expenses(period core.Period) []core.Expense {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Expense(nil), l.expenses[period]...)
}

// Expense looks an expense up by ID.
func (l *Ledger) Expense(id int64) (core.Expense, core.Period, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	period, idx, ok := l.findExpense(id)
	if !ok {
		return core.Expense{}, core.Period{}, false
	}
	return l.expenses[period][idx], period, true
}

func (l *Ledger) findExpense(id int64) (core.Period, int, bool) {
	for p, list := range l.expenses {
		for i := range list {
			if list[i].ID == id {
				return p, i, true
			}
		}
	}
	return core.Period{}, 0, false
}

func (l *Ledger) expenseRef(id int64) (*core.Expense, error) {
	period, idx, ok := l.findExpense(id)
	if !ok {
		return nil, fmt.Errorf("expense %d: %w", id, ErrNotFound)
	}
	return &l.expenses[period][idx], nil
}
