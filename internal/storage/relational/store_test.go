package relational

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/core"
	"gastos/internal/storage"
)

var march = core.NewPeriod(3, 2024)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func openSQLite(t *testing.T) (*Store, Config) {
	t.Helper()
	cfg := Config{
		Driver:       DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "db", "gastos.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
	s, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, cfg
}

func TestOpen_EmptyDatabase(t *testing.T) {
	s, cfg := openSQLite(t)
	ctx := context.Background()

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	assert.Empty(t, snap.DefaultAccount)

	_, ok, err := s.GetConfig(ctx, storage.ConfigDefaultAccount)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Close())
	again, err := Open(ctx, cfg, nil)
	require.NoError(t, err, "migrations are idempotent")
	require.NoError(t, again.Close())
}

func TestUpdate_RoundTrip(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 15, 10, 30, 0, 123, time.UTC)

	var acc core.Account
	var rent core.Expense
	var salary core.Income
	err := s.Update(ctx, func(tx storage.Tx) error {
		acc = core.Account{Name: "Checking", Institution: "Bank"}
		require.NoError(t, tx.CreateAccount(ctx, &acc))
		require.NoError(t, tx.UpdateAccountBalance(ctx, acc.ID, core.Movement{
			Timestamp: at, PriorBalance: decimal.Zero, NewBalance: dec("500.25"), Delta: dec("500.25"), Label: "Initial balance",
		}))

		rent = core.Expense{Description: "Rent", Amount: dec("450.10"), DueDate: core.NewDate(2024, 3, 5), Category: "Housing", Kind: core.KindFixed}
		require.NoError(t, tx.AddExpense(ctx, march, &rent))
		require.NoError(t, tx.MarkExpensePaid(ctx, rent.ID, core.NewDate(2024, 3, 6), acc.ID))

		coffee := core.Expense{Description: "Coffee", Amount: dec("4.5"), Category: "housing", Kind: core.KindInstant, Paid: true, PaidDate: core.NewDate(2024, 3, 2)}
		require.NoError(t, tx.AddExpense(ctx, march, &coffee))

		salary = core.Income{Description: "Salary", Amount: dec("3000"), ReceivedDate: core.NewDate(2024, 3, 1), Category: "Work"}
		require.NoError(t, tx.AddIncome(ctx, march, &salary))
		salary.DepositedTo = acc.ID
		require.NoError(t, tx.UpdateIncome(ctx, salary))

		require.NoError(t, tx.UpsertBudget(ctx, &core.Budget{Category: "Housing", Limit: dec("500"), Period: march}))
		require.NoError(t, tx.RecomputeBudgetSpend(ctx, march))
		return tx.SetConfig(ctx, storage.ConfigDefaultAccount, "Checking")
	})
	require.NoError(t, err)

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Accounts, 1)
	got := snap.Accounts[0]
	assert.Equal(t, acc.ID, got.ID)
	assert.True(t, got.Balance.Equal(dec("500.25")))
	require.Len(t, got.History, 1)
	assert.True(t, got.History[0].Timestamp.Equal(at))
	assert.True(t, got.Consistent())

	require.Len(t, snap.Expenses[march], 2)
	paid := snap.Expenses[march][0]
	assert.Equal(t, rent.ID, paid.ID)
	assert.True(t, paid.Paid)
	assert.Equal(t, acc.ID, paid.PaidFrom)
	assert.Equal(t, core.NewDate(2024, 3, 6), paid.PaidDate)
	assert.Equal(t, core.KindFixed, paid.Kind)
	instant := snap.Expenses[march][1]
	assert.True(t, instant.DueDate.IsZero())
	assert.Equal(t, core.KindInstant, instant.Kind)

	require.Len(t, snap.Incomes[march], 1)
	assert.Equal(t, acc.ID, snap.Incomes[march][0].DepositedTo)

	require.Len(t, snap.Budgets[march], 1)
	assert.True(t, snap.Budgets[march][0].CurrentSpend.Equal(dec("454.60")), "paid expenses of both spellings")
	assert.Equal(t, "Checking", snap.DefaultAccount)
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx storage.Tx) error {
		a := &core.Account{Name: "Checking"}
		require.NoError(t, tx.CreateAccount(ctx, a))
		require.NoError(t, tx.UpdateAccountBalance(ctx, a.ID, core.Movement{NewBalance: dec("10"), Delta: dec("10"), Label: "x"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts, "neither the account nor its movement is visible")
}

func TestTx_DeleteChecksExistence(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	var e core.Expense
	var inc core.Income
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		e = core.Expense{Description: "Gym", Amount: dec("30"), DueDate: core.NewDate(2024, 3, 1), Category: "Health", Kind: core.KindNormal}
		require.NoError(t, tx.AddExpense(ctx, march, &e))
		inc = core.Income{Description: "Gift", Amount: dec("5"), ReceivedDate: core.NewDate(2024, 3, 1), Category: "Other"}
		return tx.AddIncome(ctx, march, &inc)
	}))

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		deleted, err := tx.DeleteExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = tx.DeleteExpense(ctx, e.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = tx.DeleteIncome(ctx, inc.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = tx.DeleteBudget(ctx, 999)
		require.NoError(t, err)
		assert.False(t, deleted)

		assert.ErrorIs(t, tx.MarkExpensePaid(ctx, e.ID, core.NewDate(2024, 3, 2), 0), storage.ErrNotFound)
		assert.ErrorIs(t, tx.RenameAccount(ctx, 999, "x"), storage.ErrNotFound)
		return nil
	}))
}

func TestTx_DeleteAccountSetsReferencesNull(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		a := &core.Account{Name: "Checking", History: []core.Movement{{
			Timestamp: time.Now(), NewBalance: dec("1"), Delta: dec("1"), Label: "Initial balance",
		}}, Balance: dec("1")}
		require.NoError(t, tx.CreateAccount(ctx, a))
		e := &core.Expense{Description: "Gym", Amount: dec("30"), DueDate: core.NewDate(2024, 3, 1), Category: "Health", Kind: core.KindNormal}
		require.NoError(t, tx.AddExpense(ctx, march, e))
		require.NoError(t, tx.MarkExpensePaid(ctx, e.ID, core.NewDate(2024, 3, 2), a.ID))

		deleted, err := tx.DeleteAccount(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		return nil
	}))

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	require.Len(t, snap.Expenses[march], 1)
	assert.Zero(t, snap.Expenses[march][0].PaidFrom)
	assert.True(t, snap.Expenses[march][0].Paid)
}

func TestTx_UpsertBudget(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	var first, second core.Budget
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		first = core.Budget{Category: "Food", Limit: dec("300"), Period: march}
		require.NoError(t, tx.UpsertBudget(ctx, &first))
		second = core.Budget{Category: "FOOD", Limit: dec("320"), Period: march}
		return tx.UpsertBudget(ctx, &second)
	}))

	assert.Equal(t, first.ID, second.ID)
	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Budgets[march], 1)
	assert.Equal(t, "Food", snap.Budgets[march][0].Category)
	assert.True(t, snap.Budgets[march][0].Limit.Equal(dec("320")))
}

func TestTx_ReplaceAll(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.CreateAccount(ctx, &core.Account{Name: "Old"})
	}))

	snap := core.NewSnapshot()
	snap.Accounts = []core.Account{{ID: 40, Name: "Wallet", Balance: dec("5"), History: []core.Movement{{
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), NewBalance: dec("5"), Delta: dec("5"), Label: "Cash deposit",
	}}}}
	snap.Expenses[march] = []core.Expense{{ID: 3, Description: "Snack", Amount: dec("2"), Category: "Food", Kind: core.KindInstant, Paid: true, PaidDate: core.NewDate(2024, 3, 1), PaidFrom: 40}}
	snap.Budgets[march] = []core.Budget{{Category: "Food", Limit: dec("10")}}
	snap.DefaultAccount = "Wallet"

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.ReplaceAll(ctx, &snap)
	}))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Accounts, 1)
	wallet := loaded.Accounts[0]
	assert.Equal(t, "Wallet", wallet.Name)
	assert.Equal(t, snap.Accounts[0].ID, wallet.ID, "new IDs are written back")
	require.Len(t, wallet.History, 1)
	assert.Equal(t, wallet.ID, loaded.Expenses[march][0].PaidFrom)
	assert.True(t, loaded.Budgets[march][0].CurrentSpend.Equal(dec("2")))
	assert.Equal(t, "Wallet", loaded.DefaultAccount)
}

func TestDialect_Rebind(t *testing.T) {
	pg, err := dialectFor(DriverPostgres)
	require.NoError(t, err)
	lite, err := dialectFor(DriverSQLite)
	require.NoError(t, err)

	query := `UPDATE expenses SET paid = ?, paid_date = ? WHERE id = ?`
	assert.Equal(t, `UPDATE expenses SET paid = $1, paid_date = $2 WHERE id = $3`, pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestDialect_DSN(t *testing.T) {
	lite, _ := dialectFor(DriverSQLite)
	pg, _ := dialectFor(DriverPostgres)

	assert.Equal(t, "data/g.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", lite.dsn("data/g.db"))
	assert.Equal(t, "file:g.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", lite.dsn("file:g.db?mode=rwc"))
	assert.Equal(t, "postgres://u@h/db?sslmode=disable", pg.dsn("postgres://u@h/db?sslmode=disable"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{Driver: DriverSQLite, DSN: "x.db"}, false},
		{"postgres", Config{Driver: DriverPostgres, DSN: "postgres://localhost/gastos", MaxOpenConns: 5}, false},
		{"unknown driver", Config{Driver: "mysql", DSN: "x"}, true},
		{"empty dsn", Config{Driver: DriverSQLite}, true},
		{"negative pool", Config{Driver: DriverPostgres, DSN: "x", MaxOpenConns: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
