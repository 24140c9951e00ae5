// Package ledger keeps account balances, their movement histories and the
// period-indexed expenses, incomes and budgets consistent. Every mutating
// operation validates first, writes through the storage gateway in a
// single transaction and only then updates the in-memory state.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

const (
	// WalletName is the distinguished cash account. It always exists.
	WalletName        = core.WalletName
	walletInstitution = "Cash"
)

// Ledger is the aggregate owning all accounts, expenses, incomes and
// budgets of one user.
type Ledger struct {
	mu       sync.Mutex
	gw       storage.Gateway
	logger   *applog.Logger
	notifier Notifier
	now      func() time.Time

	notifyTimeout time.Duration

	accounts       map[string]*core.Account
	expenses       map[core.Period][]core.Expense
	incomes        map[core.Period][]core.Income
	budgets        map[core.Period][]core.Budget
	defaultAccount string
	closed         bool
}

type Option func(*Ledger)

// WithClock replaces time.Now; tests pin "today" with it.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(logger *applog.Logger) Option {
	return func(l *Ledger) { l.logger = logger.WithComponent(applog.ComponentLedger) }
}

// WithNotifier publishes every committed movement.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithNotifyTimeout bounds each publish. The ledger lock is held while
// publishing, so interactive callers keep this short. Zero means no bound
// beyond the caller's context.
func WithNotifyTimeout(d time.Duration) Option {
	return func(l *Ledger) { l.notifyTimeout = d }
}

// Open loads the persisted state and makes sure the Wallet exists and the
// default account points at an existing account.
func Open(ctx context.Context, gw storage.Gateway, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		gw:     gw,
		logger: applog.Discard().WithComponent(applog.ComponentLedger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	snap, err := gw.LoadAll(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: applog.OpLoad, Err: err}
	}
	if snap.DefaultAccount == "" {
		v, ok, err := gw.GetConfig(ctx, storage.ConfigDefaultAccount)
		if err != nil {
			return nil, &PersistenceError{Op: applog.OpLoad, Err: err}
		}
		if ok {
			snap.DefaultAccount = v
		}
	}
	l.load(snap)

	if err := l.ensureInvariants(ctx); err != nil {
		return nil, err
	}

	l.logger.Info("Ledger opened",
		"accounts", len(l.accounts),
		"default_account", l.defaultAccount,
	)
	return l, nil
}

func (l *Ledger) load(snap core.Snapshot) {
	l.accounts = make(map[string]*core.Account, len(snap.Accounts))
	for _, a := range snap.Accounts {
		acc := a.Clone()
		l.accounts[acc.Name] = &acc
	}
	c := snap.Clone()
	l.expenses = c.Expenses
	l.incomes = c.Incomes
	l.budgets = c.Budgets
	l.defaultAccount = snap.DefaultAccount
}

// ensureInvariants creates the Wallet when missing and repairs a dangling
// default pointer.
func (l *Ledger) ensureInvariants(ctx context.Context) error {
	var wallet *core.Account
	if _, ok := l.accounts[WalletName]; !ok {
		wallet = &core.Account{Name: WalletName, Institution: walletInstitution}
	}
	newDefault := l.defaultAccount
	if _, ok := l.accounts[newDefault]; !ok || newDefault == "" {
		newDefault = WalletName
	}
	if wallet == nil && newDefault == l.defaultAccount {
		return nil
	}

	err := l.persist(ctx, applog.OpStartup, func(tx storage.Tx) error {
		if wallet != nil {
			if err := tx.CreateAccount(ctx, wallet); err != nil {
				return err
			}
		}
		return tx.SetConfig(ctx, storage.ConfigDefaultAccount, newDefault)
	})
	if err != nil {
		return err
	}

	if wallet != nil {
		l.accounts[WalletName] = wallet
	}
	l.defaultAccount = newDefault
	return nil
}

// persist runs fn in one gateway transaction and wraps any failure.
func (l *Ledger) persist(ctx context.Context, op string, fn func(storage.Tx) error) error {
	if l.closed {
		return &PersistenceError{Op: op, Err: ErrClosed}
	}
	if err := l.gw.Update(ctx, fn); err != nil {
		l.logger.ErrorContext(ctx, "Persistence failed",
			applog.NewFields().WithOperation(op).WithError(err).ToSlice()...)
		return &PersistenceError{Op: op, Err: err}
	}
	return nil
}

// Close waits for the operation in progress, if any, and refuses further
// writes. The gateway stays open; its owner closes it.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *Ledger) today() core.Date {
	return core.DateOf(l.now())
}

// balanceChange is a staged movement on one account. It is persisted first
// and committed to memory afterwards.
type balanceChange struct {
	acc *core.Account
	m   core.Movement
}

func (l *Ledger) stage(acc *core.Account, delta decimal.Decimal, label string) balanceChange {
	return balanceChange{
		acc: acc,
		m: core.Movement{
			Timestamp:    l.now(),
			PriorBalance: acc.Balance,
			NewBalance:   acc.Balance.Add(delta),
			Delta:        delta,
			Label:        label,
		},
	}
}

func (c balanceChange) write(ctx context.Context, tx storage.Tx) error {
	return tx.UpdateAccountBalance(ctx, c.acc.ID, c.m)
}

// writes persists staged changes in order.
func writes(ctx context.Context, changes ...balanceChange) func(storage.Tx) error {
	return func(tx storage.Tx) error {
		for _, c := range changes {
			if err := c.write(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	}
}

func (c balanceChange) commit() {
	c.acc.ApplyBalanceChange(c.m.NewBalance, c.m.Label, c.m.Delta, c.m.Timestamp)
}

func (l *Ledger) account(name string) (*core.Account, error) {
	acc, ok := l.accounts[name]
	if !ok {
		return nil, unknownAccount(name)
	}
	return acc, nil
}

// accountOrDefault resolves an empty name to the default account.
func (l *Ledger) accountOrDefault(name string) (*core.Account, error) {
	if name == "" {
		name = l.defaultAccount
	}
	return l.account(name)
}

func (l *Ledger) accountByID(id int64) *core.Account {
	if id == 0 {
		return nil
	}
	for _, a := range l.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (l *Ledger) sortedAccountNames() []string {
	names := make([]string, 0, len(l.accounts))
	for name := range l.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Ledger) sortedPeriods() []core.Period {
	seen := make(map[core.Period]struct{})
	for p := range l.expenses {
		seen[p] = struct{}{}
	}
	for p := range l.incomes {
		seen[p] = struct{}{}
	}
	periods := make([]core.Period, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Less(periods[j]) })
	return periods
}
