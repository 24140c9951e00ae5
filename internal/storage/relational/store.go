// Package relational stores the ledger in sqlite or PostgreSQL through
// database/sql. Every Gateway.Update is one database transaction.
package relational

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

type Store struct {
	db     *sql.DB
	d      dialect
	logger *applog.Logger
}

var _ storage.Gateway = (*Store)(nil)

// Open connects, applies the pool settings and migrates the schema.
func Open(ctx context.Context, cfg Config, logger *applog.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = applog.Discard()
	}
	d, _ := dialectFor(cfg.Driver)

	if d.name == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := d.dsn(cfg.DSN)

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Debug("Relational store opened", applog.FieldBackend, d.name)
	return &Store{db: db, d: d, logger: logger}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.ErrorContext(ctx, "Rollback failed", applog.FieldError, rbErr.Error())
			}
		}
	}()

	if err = fn(&sqlTx{tx: tx, d: s.d}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) GetConfig(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT value FROM config WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) LoadAll(ctx context.Context) (core.Snapshot, error) {
	snap := core.NewSnapshot()

	accounts, err := s.loadAccounts(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap.Accounts = accounts

	if err := s.loadExpenses(ctx, &snap); err != nil {
		return core.Snapshot{}, err
	}
	if err := s.loadIncomes(ctx, &snap); err != nil {
		return core.Snapshot{}, err
	}
	if err := s.loadBudgets(ctx, &snap); err != nil {
		return core.Snapshot{}, err
	}

	def, _, err := s.GetConfig(ctx, storage.ConfigDefaultAccount)
	if err != nil {
		return core.Snapshot{}, err
	}
	snap.DefaultAccount = def
	return snap, nil
}

func (s *Store) loadAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, institution, balance FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	index := make(map[int64]int)
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Institution, &a.Balance); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		index[a.ID] = len(accounts)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	hist, err := s.db.QueryContext(ctx, `
		SELECT account_id, occurred_at, prior_balance, new_balance, delta, label
		FROM account_history
		ORDER BY account_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list account history: %w", err)
	}
	defer hist.Close()

	for hist.Next() {
		var (
			accountID int64
			m         core.Movement
		)
		if err := hist.Scan(&accountID, timeScanner{&m.Timestamp}, &m.PriorBalance, &m.NewBalance, &m.Delta, &m.Label); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		if i, ok := index[accountID]; ok {
			accounts[i].History = append(accounts[i].History, m)
		}
	}
	if err := hist.Err(); err != nil {
		return nil, fmt.Errorf("list account history: %w", err)
	}
	return accounts, nil
}

func (s *Store) loadExpenses(ctx context.Context, snap *core.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, year, description, amount, due_date, category, paid, paid_date, kind, account_id
		FROM expenses
		ORDER BY year, month, id`)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         core.Expense
			p         core.Period
			kind      string
			accountID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &p.Month, &p.Year, &e.Description, &e.Amount, &e.DueDate,
			&e.Category, &e.Paid, &e.PaidDate, &kind, &accountID); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		e.Kind = core.ExpenseKind(kind)
		e.PaidFrom = accountID.Int64
		snap.Expenses[p] = append(snap.Expenses[p], e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return nil
}

func (s *Store) loadIncomes(ctx context.Context, snap *core.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, month, year, description, amount, received_date, category, account_id
		FROM incomes
		ORDER BY year, month, id`)
	if err != nil {
		return fmt.Errorf("list incomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			i         core.Income
			p         core.Period
			accountID sql.NullInt64
		)
		if err := rows.Scan(&i.ID, &p.Month, &p.Year, &i.Description, &i.Amount, &i.ReceivedDate,
			&i.Category, &accountID); err != nil {
			return fmt.Errorf("scan income: %w", err)
		}
		i.DepositedTo = accountID.Int64
		snap.Incomes[p] = append(snap.Incomes[p], i)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list incomes: %w", err)
	}
	return nil
}

func (s *Store) loadBudgets(ctx context.Context, snap *core.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, monthly_limit, month, year, current_spend
		FROM budgets
		ORDER BY year, month, category_key`)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b core.Budget
		if err := rows.Scan(&b.ID, &b.Category, &b.Limit, &b.Period.Month, &b.Period.Year, &b.CurrentSpend); err != nil {
			return fmt.Errorf("scan budget: %w", err)
		}
		snap.Budgets[b.Period] = append(snap.Budgets[b.Period], b)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	return nil
}

// timeScanner reads a timestamp stored natively or as RFC 3339 text.
type timeScanner struct {
	t *time.Time
}

func (s timeScanner) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s.t = time.Time{}
	case time.Time:
		*s.t = v
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	default:
		return fmt.Errorf("timestamp: unsupported scan type %T", src)
	}
	return nil
}

func (s timeScanner) parse(v string) error {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*s.t = t
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
