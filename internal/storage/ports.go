// Package storage declares the persistence port the ledger writes through.
// Implementations live in the document and relational subpackages.
package storage

import (
	"context"
	"errors"

	"gastos/internal/core"
)

// ConfigDefaultAccount is the config key holding the default account name.
const ConfigDefaultAccount = "default_account"

// ErrNotFound is returned by Tx methods addressing a missing row.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	// Gateway loads and saves ledger state.
	Gateway interface {
		// LoadAll returns the persisted state; a missing store yields an
		// empty snapshot rather than an error.
		LoadAll(ctx context.Context) (core.Snapshot, error)

		// Update runs fn as one atomic unit. If fn or the final write fails
		// nothing fn did is kept.
		Update(ctx context.Context, fn func(Tx) error) error

		GetConfig(ctx context.Context, key string) (value string, ok bool, err error)

		Close() error
	}

	// Tx is the write surface available inside Gateway.Update.
	Tx interface {
		// CreateAccount stores the account with its history and sets a.ID.
		CreateAccount(ctx context.Context, a *core.Account) error
		// UpdateAccountBalance sets the balance to m.NewBalance and appends m
		// to the account history.
		UpdateAccountBalance(ctx context.Context, accountID int64, m core.Movement) error
		RenameAccount(ctx context.Context, accountID int64, newName string) error
		SetAccountInstitution(ctx context.Context, accountID int64, institution string) error
		DeleteAccount(ctx context.Context, accountID int64) (bool, error)

		// AddExpense stores e under period and sets e.ID.
		AddExpense(ctx context.Context, period core.Period, e *core.Expense) error
		UpdateExpense(ctx context.Context, e core.Expense) error
		MarkExpensePaid(ctx context.Context, id int64, paidAt core.Date, accountID int64) error
		MarkExpenseUnpaid(ctx context.Context, id int64) error
		// DeleteExpense reports false when no such expense exists.
		DeleteExpense(ctx context.Context, id int64) (bool, error)

		// AddIncome stores i under period and sets i.ID.
		AddIncome(ctx context.Context, period core.Period, i *core.Income) error
		UpdateIncome(ctx context.Context, i core.Income) error
		DeleteIncome(ctx context.Context, id int64) (bool, error)

		// UpsertBudget inserts or updates by (category, period) and sets b.ID.
		UpsertBudget(ctx context.Context, b *core.Budget) error
		DeleteBudget(ctx context.Context, id int64) (bool, error)
		// RecomputeBudgetSpend refreshes the cached spend of every budget of
		// the period from its paid expenses.
		RecomputeBudgetSpend(ctx context.Context, period core.Period) error

		SetConfig(ctx context.Context, key, value string) error

		// ReplaceAll discards everything and stores snap, assigning fresh
		// IDs in place. Expense PaidFrom and income DepositedTo are remapped
		// to the new account IDs, or cleared when they match no account.
		ReplaceAll(ctx context.Context, snap *core.Snapshot) error
	}
)
