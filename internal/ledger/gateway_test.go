package ledger

import (
	"context"
	"errors"

	"gastos/internal/core"
	"gastos/internal/storage"
)

var errBackendDown = errors.New("backend down")

// fakeGateway records writes and can be told to fail the next Update.
type fakeGateway struct {
	snap    core.Snapshot
	config  map[string]string
	nextID  int64
	fail    bool
	updates int
	ops     []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{snap: core.NewSnapshot(), config: map[string]string{}}
}

func (g *fakeGateway) LoadAll(context.Context) (core.Snapshot, error) {
	return g.snap.Clone(), nil
}

func (g *fakeGateway) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if g.fail {
		return errBackendDown
	}
	g.updates++
	return fn(&fakeTx{g: g})
}

func (g *fakeGateway) GetConfig(_ context.Context, key string) (string, bool, error) {
	v, ok := g.config[key]
	return v, ok, nil
}

func (g *fakeGateway) Close() error { return nil }

func (g *fakeGateway) id() int64 {
	g.nextID++
	return g.nextID
}

type fakeTx struct{ g *fakeGateway }

func (t *fakeTx) op(name string) { t.g.ops = append(t.g.ops, name) }

func (t *fakeTx) CreateAccount(_ context.Context, a *core.Account) error {
	t.op("create_account")
	a.ID = t.g.id()
	return nil
}

func (t *fakeTx) UpdateAccountBalance(context.Context, int64, core.Movement) error {
	t.op("update_balance")
	return nil
}

func (t *fakeTx) RenameAccount(context.Context, int64, string) error {
	t.op("rename_account")
	return nil
}

func (t *fakeTx) SetAccountInstitution(context.Context, int64, string) error {
	t.op("set_institution")
	return nil
}

func (t *fakeTx) DeleteAccount(context.Context, int64) (bool, error) {
	t.op("delete_account")
	return true, nil
}

func (t *fakeTx) AddExpense(_ context.Context, _ core.Period, e *core.Expense) error {
	t.op("add_expense")
	e.ID = t.g.id()
	return nil
}

func (t *fakeTx) UpdateExpense(context.Context, core.Expense) error {
	t.op("update_expense")
	return nil
}

func (t *fakeTx) MarkExpensePaid(context.Context, int64, core.Date, int64) error {
	t.op("mark_paid")
	return nil
}

func (t *fakeTx) MarkExpenseUnpaid(context.Context, int64) error {
	t.op("mark_unpaid")
	return nil
}

func (t *fakeTx) DeleteExpense(context.Context, int64) (bool, error) {
	t.op("delete_expense")
	return true, nil
}

func (t *fakeTx) AddIncome(_ context.Context, _ core.Period, i *core.Income) error {
	t.op("add_income")
	i.ID = t.g.id()
	return nil
}

func (t *fakeTx) UpdateIncome(context.Context, core.Income) error {
	t.op("update_income")
	return nil
}

func (t *fakeTx) DeleteIncome(context.Context, int64) (bool, error) {
	t.op("delete_income")
	return true, nil
}

func (t *fakeTx) UpsertBudget(_ context.Context, b *core.Budget) error {
	t.op("upsert_budget")
	if b.ID == 0 {
		b.ID = t.g.id()
	}
	return nil
}

func (t *fakeTx) DeleteBudget(context.Context, int64) (bool, error) {
	t.op("delete_budget")
	return true, nil
}

func (t *fakeTx) RecomputeBudgetSpend(context.Context, core.Period) error {
	t.op("recompute_spend")
	return nil
}

func (t *fakeTx) SetConfig(_ context.Context, key, value string) error {
	t.op("set_config")
	t.g.config[key] = value
	return nil
}

func (t *fakeTx) ReplaceAll(_ context.Context, snap *core.Snapshot) error {
	t.op("replace_all")
	for i := range snap.Accounts {
		snap.Accounts[i].ID = t.g.id()
	}
	return nil
}
