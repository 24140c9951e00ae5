package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gastos/internal/core"
	"gastos/internal/storage"
)

// sqlTx implements storage.Tx inside one database transaction.
type sqlTx struct {
	tx *sql.Tx
	d  dialect
}

var _ storage.Tx = (*sqlTx)(nil)

func (t *sqlTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.d.rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row.
func (t *sqlTx) execOne(ctx context.Context, what string, id int64, query string, args ...any) error {
	res, err := t.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, storage.ErrNotFound)
	}
	return nil
}

func (t *sqlTx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := t.tx.QueryRowContext(ctx, t.d.rebind(query), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *sqlTx) exists(ctx context.Context, table string, id int64) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, t.d.rebind(`SELECT 1 FROM `+table+` WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return true, nil
}

// deleteRow deletes by ID and reports false when the row was not there.
// Existence is checked before and after the delete instead of trusting
// the affected row count.
func (t *sqlTx) deleteRow(ctx context.Context, table string, id int64) (bool, error) {
	found, err := t.exists(ctx, table, id)
	if err != nil || !found {
		return false, err
	}
	if _, err := t.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete %s %d: %w", table, id, err)
	}
	still, err := t.exists(ctx, table, id)
	if err != nil {
		return false, err
	}
	if still {
		return false, fmt.Errorf("delete %s %d: row still present", table, id)
	}
	return true, nil
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func (t *sqlTx) CreateAccount(ctx context.Context, a *core.Account) error {
	id, err := t.insert(ctx,
		`INSERT INTO accounts (name, institution, balance) VALUES (?, ?, ?) RETURNING id`,
		a.Name, a.Institution, a.Balance)
	if err != nil {
		return fmt.Errorf("create account %q: %w", a.Name, err)
	}
	a.ID = id
	for _, m := range a.History {
		if err := t.insertMovement(ctx, id, m); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTx) insertMovement(ctx context.Context, accountID int64, m core.Movement) error {
	_, err := t.exec(ctx, `
		INSERT INTO account_history (account_id, occurred_at, prior_balance, new_balance, delta, label)
		VALUES (?, ?, ?, ?, ?, ?)`,
		accountID, formatTime(m.Timestamp), m.PriorBalance, m.NewBalance, m.Delta, m.Label)
	if err != nil {
		return fmt.Errorf("insert movement for account %d: %w", accountID, err)
	}
	return nil
}

// UpdateAccountBalance writes the balance and its history row in the same
// transaction so neither is ever visible without the other.
func (t *sqlTx) UpdateAccountBalance(ctx context.Context, accountID int64, m core.Movement) error {
	if err := t.execOne(ctx, "update balance of account", accountID,
		`UPDATE accounts SET balance = ? WHERE id = ?`, m.NewBalance, accountID); err != nil {
		return err
	}
	return t.insertMovement(ctx, accountID, m)
}

func (t *sqlTx) RenameAccount(ctx context.Context, accountID int64, newName string) error {
	return t.execOne(ctx, "rename account", accountID,
		`UPDATE accounts SET name = ? WHERE id = ?`, newName, accountID)
}

func (t *sqlTx) SetAccountInstitution(ctx context.Context, accountID int64, institution string) error {
	return t.execOne(ctx, "set institution of account", accountID,
		`UPDATE accounts SET institution = ? WHERE id = ?`, institution, accountID)
}

func (t *sqlTx) DeleteAccount(ctx context.Context, accountID int64) (bool, error) {
	return t.deleteRow(ctx, "accounts", accountID)
}

func (t *sqlTx) AddExpense(ctx context.Context, period core.Period, e *core.Expense) error {
	id, err := t.insert(ctx, `
		INSERT INTO expenses (month, year, description, amount, due_date, category, paid, paid_date, kind, account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		period.Month, period.Year, e.Description, e.Amount, e.DueDate, e.Category,
		e.Paid, e.PaidDate, string(e.Kind), nullID(e.PaidFrom))
	if err != nil {
		return fmt.Errorf("add expense %q: %w", e.Description, err)
	}
	e.ID = id
	return nil
}

func (t *sqlTx) UpdateExpense(ctx context.Context, e core.Expense) error {
	return t.execOne(ctx, "update expense", e.ID, `
		UPDATE expenses
		SET description = ?, amount = ?, due_date = ?, category = ?, paid = ?, paid_date = ?, kind = ?, account_id = ?
		WHERE id = ?`,
		e.Description, e.Amount, e.DueDate, e.Category, e.Paid, e.PaidDate, string(e.Kind), nullID(e.PaidFrom), e.ID)
}

func (t *sqlTx) MarkExpensePaid(ctx context.Context, id int64, paidAt core.Date, accountID int64) error {
	return t.execOne(ctx, "mark expense paid", id,
		`UPDATE expenses SET paid = ?, paid_date = ?, account_id = ? WHERE id = ?`,
		true, paidAt, nullID(accountID), id)
}

func (t *sqlTx) MarkExpenseUnpaid(ctx context.Context, id int64) error {
	return t.execOne(ctx, "mark expense unpaid", id,
		`UPDATE expenses SET paid = ?, paid_date = NULL, account_id = NULL WHERE id = ?`,
		false, id)
}

func (t *sqlTx) DeleteExpense(ctx context.Context, id int64) (bool, error) {
	return t.deleteRow(ctx, "expenses", id)
}

func (t *sqlTx) AddIncome(ctx context.Context, period core.Period, i *core.Income) error {
	id, err := t.insert(ctx, `
		INSERT INTO incomes (month, year, description, amount, received_date, category, account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		period.Month, period.Year, i.Description, i.Amount, i.ReceivedDate, i.Category, nullID(i.DepositedTo))
	if err != nil {
		return fmt.Errorf("add income %q: %w", i.Description, err)
	}
	i.ID = id
	return nil
}

func (t *sqlTx) UpdateIncome(ctx context.Context, i core.Income) error {
	return t.execOne(ctx, "update income", i.ID, `
		UPDATE incomes
		SET description = ?, amount = ?, received_date = ?, category = ?, account_id = ?
		WHERE id = ?`,
		i.Description, i.Amount, i.ReceivedDate, i.Category, nullID(i.DepositedTo), i.ID)
}

func (t *sqlTx) DeleteIncome(ctx context.Context, id int64) (bool, error) {
	return t.deleteRow(ctx, "incomes", id)
}

func (t *sqlTx) UpsertBudget(ctx context.Context, b *core.Budget) error {
	id, err := t.insert(ctx, `
		INSERT INTO budgets (category, category_key, monthly_limit, month, year, current_spend)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (category_key, month, year) DO UPDATE SET monthly_limit = excluded.monthly_limit
		RETURNING id`,
		b.Category, core.CategoryKey(b.Category), b.Limit, b.Period.Month, b.Period.Year, b.CurrentSpend)
	if err != nil {
		return fmt.Errorf("upsert budget %q: %w", b.Category, err)
	}
	b.ID = id
	return nil
}

func (t *sqlTx) DeleteBudget(ctx context.Context, id int64) (bool, error) {
	return t.deleteRow(ctx, "budgets", id)
}

// RecomputeBudgetSpend sums in Go so the result is exact whatever the
// column type of the dialect.
func (t *sqlTx) RecomputeBudgetSpend(ctx context.Context, period core.Period) error {
	rows, err := t.tx.QueryContext(ctx, t.d.rebind(`
		SELECT category, amount FROM expenses
		WHERE month = ? AND year = ? AND paid = ?`),
		period.Month, period.Year, true)
	if err != nil {
		return fmt.Errorf("list paid expenses: %w", err)
	}
	var paid []core.Expense
	for rows.Next() {
		e := core.Expense{Paid: true}
		if err := rows.Scan(&e.Category, &e.Amount); err != nil {
			rows.Close()
			return fmt.Errorf("scan paid expense: %w", err)
		}
		paid = append(paid, e)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list paid expenses: %w", err)
	}

	spent := core.PaidByCategory(paid)

	budgetRows, err := t.tx.QueryContext(ctx, t.d.rebind(`
		SELECT id, category_key FROM budgets WHERE month = ? AND year = ?`),
		period.Month, period.Year)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	type budgetKey struct {
		id  int64
		key string
	}
	var budgets []budgetKey
	for budgetRows.Next() {
		var b budgetKey
		if err := budgetRows.Scan(&b.id, &b.key); err != nil {
			budgetRows.Close()
			return fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := budgetRows.Close(); err != nil {
		return err
	}
	if err := budgetRows.Err(); err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}

	for _, b := range budgets {
		if _, err := t.exec(ctx, `UPDATE budgets SET current_spend = ? WHERE id = ?`,
			spent[b.key].StringFixed(2), b.id); err != nil {
			return fmt.Errorf("update spend of budget %d: %w", b.id, err)
		}
	}
	return nil
}

func (t *sqlTx) SetConfig(ctx context.Context, key, value string) error {
	_, err := t.exec(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func (t *sqlTx) ReplaceAll(ctx context.Context, snap *core.Snapshot) error {
	for _, table := range []string{"account_history", "expenses", "incomes", "budgets", "accounts"} {
		if _, err := t.exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := t.exec(ctx, `DELETE FROM config WHERE key = ?`, storage.ConfigDefaultAccount); err != nil {
		return fmt.Errorf("clear config: %w", err)
	}

	ids := make(map[int64]int64, len(snap.Accounts))
	for i := range snap.Accounts {
		old := snap.Accounts[i].ID
		if err := t.CreateAccount(ctx, &snap.Accounts[i]); err != nil {
			return err
		}
		if old != 0 {
			ids[old] = snap.Accounts[i].ID
		}
	}
	storage.RemapAccountRefs(snap, ids)

	for p, list := range snap.Expenses {
		for i := range list {
			if err := t.AddExpense(ctx, p, &list[i]); err != nil {
				return err
			}
		}
	}
	for p, list := range snap.Incomes {
		for i := range list {
			if err := t.AddIncome(ctx, p, &list[i]); err != nil {
				return err
			}
		}
	}
	for p, list := range snap.Budgets {
		for i := range list {
			list[i].Period = p
			if err := t.UpsertBudget(ctx, &list[i]); err != nil {
				return err
			}
		}
		if err := t.RecomputeBudgetSpend(ctx, p); err != nil {
			return err
		}
	}

	if snap.DefaultAccount != "" {
		return t.SetConfig(ctx, storage.ConfigDefaultAccount, snap.DefaultAccount)
	}
	return nil
}
