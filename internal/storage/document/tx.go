package document

import (
	"context"
	"fmt"

	"gastos/internal/core"
	"gastos/internal/storage"
)

// docTx applies writes to a working copy of the document.
type docTx struct {
	d *docFile
}

var _ storage.Tx = (*docTx)(nil)

func (t *docTx) account(id int64) (*docAccount, error) {
	for _, a := range t.d.Contas {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("account %d: %w", id, storage.ErrNotFound)
}

func (t *docTx) CreateAccount(_ context.Context, a *core.Account) error {
	if _, exists := t.d.Contas[a.Name]; exists {
		return fmt.Errorf("account %q already stored", a.Name)
	}
	a.ID = t.d.nextID()
	t.d.Contas[a.Name] = accountDoc(*a)
	return nil
}

func (t *docTx) UpdateAccountBalance(_ context.Context, accountID int64, m core.Movement) error {
	a, err := t.account(accountID)
	if err != nil {
		return err
	}
	a.SaldoAtual = m.NewBalance
	a.Historico = append(a.Historico, movementDoc(m))
	return nil
}

func (t *docTx) RenameAccount(_ context.Context, accountID int64, newName string) error {
	a, err := t.account(accountID)
	if err != nil {
		return err
	}
	if _, exists := t.d.Contas[newName]; exists {
		return fmt.Errorf("account %q already stored", newName)
	}
	delete(t.d.Contas, a.Nome)
	a.Nome = newName
	t.d.Contas[newName] = a
	return nil
}

func (t *docTx) SetAccountInstitution(_ context.Context, accountID int64, institution string) error {
	a, err := t.account(accountID)
	if err != nil {
		return err
	}
	a.Banco = institution
	return nil
}

func (t *docTx) DeleteAccount(_ context.Context, accountID int64) (bool, error) {
	a, err := t.account(accountID)
	if err != nil {
		return false, nil
	}
	delete(t.d.Contas, a.Nome)

	for _, list := range t.d.Despesas {
		for i := range list {
			if list[i].ContaPagamento == accountID {
				list[i].ContaPagamento = 0
			}
		}
	}
	for _, list := range t.d.Receitas {
		for i := range list {
			if list[i].ContaDeposito == accountID {
				list[i].ContaDeposito = 0
			}
		}
	}
	return true, nil
}

func (t *docTx) expense(id int64) (string, int, bool) {
	for key, list := range t.d.Despesas {
		for i := range list {
			if list[i].ID == id {
				return key, i, true
			}
		}
	}
	return "", 0, false
}

func (t *docTx) expenseRef(id int64) (*docExpense, error) {
	key, i, ok := t.expense(id)
	if !ok {
		return nil, fmt.Errorf("expense %d: %w", id, storage.ErrNotFound)
	}
	return &t.d.Despesas[key][i], nil
}

func (t *docTx) AddExpense(_ context.Context, period core.Period, e *core.Expense) error {
	e.ID = t.d.nextID()
	key := period.String()
	t.d.Despesas[key] = append(t.d.Despesas[key], expenseDoc(*e))
	return nil
}

func (t *docTx) UpdateExpense(_ context.Context, e core.Expense) error {
	ref, err := t.expenseRef(e.ID)
	if err != nil {
		return err
	}
	*ref = expenseDoc(e)
	return nil
}

func (t *docTx) MarkExpensePaid(_ context.Context, id int64, paidAt core.Date, accountID int64) error {
	ref, err := t.expenseRef(id)
	if err != nil {
		return err
	}
	ref.Pago = true
	ref.DataPagamento = paidAt
	ref.ContaPagamento = accountID
	return nil
}

func (t *docTx) MarkExpenseUnpaid(_ context.Context, id int64) error {
	ref, err := t.expenseRef(id)
	if err != nil {
		return err
	}
	ref.Pago = false
	ref.DataPagamento = core.Date{}
	ref.ContaPagamento = 0
	return nil
}

func (t *docTx) DeleteExpense(_ context.Context, id int64) (bool, error) {
	key, i, ok := t.expense(id)
	if !ok {
		return false, nil
	}
	list := t.d.Despesas[key]
	t.d.Despesas[key] = append(list[:i:i], list[i+1:]...)
	if len(t.d.Despesas[key]) == 0 {
		delete(t.d.Despesas, key)
	}
	if _, _, still := t.expense(id); still {
		return false, fmt.Errorf("expense %d still present after delete", id)
	}
	return true, nil
}

func (t *docTx) income(id int64) (string, int, bool) {
	for key, list := range t.d.Receitas {
		for i := range list {
			if list[i].ID == id {
				return key, i, true
			}
		}
	}
	return "", 0, false
}

func (t *docTx) AddIncome(_ context.Context, period core.Period, i *core.Income) error {
	i.ID = t.d.nextID()
	key := period.String()
	t.d.Receitas[key] = append(t.d.Receitas[key], incomeDoc(*i))
	return nil
}

func (t *docTx) UpdateIncome(_ context.Context, inc core.Income) error {
	key, i, ok := t.income(inc.ID)
	if !ok {
		return fmt.Errorf("income %d: %w", inc.ID, storage.ErrNotFound)
	}
	t.d.Receitas[key][i] = incomeDoc(inc)
	return nil
}

func (t *docTx) DeleteIncome(_ context.Context, id int64) (bool, error) {
	key, i, ok := t.income(id)
	if !ok {
		return false, nil
	}
	list := t.d.Receitas[key]
	t.d.Receitas[key] = append(list[:i:i], list[i+1:]...)
	if len(t.d.Receitas[key]) == 0 {
		delete(t.d.Receitas, key)
	}
	if _, _, still := t.income(id); still {
		return false, fmt.Errorf("income %d still present after delete", id)
	}
	return true, nil
}

func (t *docTx) UpsertBudget(_ context.Context, b *core.Budget) error {
	key := b.Period.String()
	list := t.d.Metas[key]
	for i := range list {
		if core.CategoryKey(list[i].Categoria) == core.CategoryKey(b.Category) {
			b.ID = list[i].ID
			list[i].LimiteMensal = b.Limit
			return nil
		}
	}
	b.ID = t.d.nextID()
	t.d.Metas[key] = append(list, budgetDoc(*b))
	return nil
}

func (t *docTx) DeleteBudget(_ context.Context, id int64) (bool, error) {
	for key, list := range t.d.Metas {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			t.d.Metas[key] = append(list[:i:i], list[i+1:]...)
			if len(t.d.Metas[key]) == 0 {
				delete(t.d.Metas, key)
			}
			return true, nil
		}
	}
	return false, nil
}

func (t *docTx) RecomputeBudgetSpend(_ context.Context, period core.Period) error {
	key := period.String()
	expenses := make([]core.Expense, 0, len(t.d.Despesas[key]))
	for _, e := range t.d.Despesas[key] {
		expenses = append(expenses, e.toCore())
	}
	spent := core.PaidByCategory(expenses)
	list := t.d.Metas[key]
	for i := range list {
		list[i].GastoAtual = spent[core.CategoryKey(list[i].Categoria)]
	}
	return nil
}

func (t *docTx) SetConfig(_ context.Context, key, value string) error {
	if key == storage.ConfigDefaultAccount {
		t.d.ContaPadrao = value
		return nil
	}
	t.d.Configuracoes[key] = value
	return nil
}

func (t *docTx) ReplaceAll(_ context.Context, snap *core.Snapshot) error {
	fresh := newDocFile()
	ids := make(map[int64]int64, len(snap.Accounts))
	for i := range snap.Accounts {
		newID := fresh.nextID()
		if snap.Accounts[i].ID != 0 {
			ids[snap.Accounts[i].ID] = newID
		}
		snap.Accounts[i].ID = newID
	}
	storage.RemapAccountRefs(snap, ids)
	for _, list := range snap.Expenses {
		for i := range list {
			list[i].ID = fresh.nextID()
		}
	}
	for _, list := range snap.Incomes {
		for i := range list {
			list[i].ID = fresh.nextID()
		}
	}
	for p, list := range snap.Budgets {
		for i := range list {
			list[i].ID = fresh.nextID()
			list[i].Period = p
		}
	}

	next := fromSnapshot(*snap)
	next.ProximoID = max(next.ProximoID, fresh.ProximoID)
	next.Configuracoes = t.d.Configuracoes
	*t.d = *next
	return nil
}
