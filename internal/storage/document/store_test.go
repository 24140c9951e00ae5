package document

import (
	"context"
	"encoding/json"
	"errors"
	"os"
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

func openStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "gastos.json")
	s, err := Open(path, nil)
	require.NoError(t, err)
	return s, path
}

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, path := openStore(t)

	snap, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Accounts)
	assert.Empty(t, snap.Expenses)
	assert.Empty(t, snap.DefaultAccount)

	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "nothing is written before the first update")
}

func TestUpdate_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)
	at := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	var rent core.Expense
	err := s.Update(ctx, func(tx storage.Tx) error {
		acc := &core.Account{Name: "Checking", Institution: "Bank"}
		if err := tx.CreateAccount(ctx, acc); err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, acc.ID, core.Movement{
			Timestamp: at, PriorBalance: decimal.Zero, NewBalance: dec("500"), Delta: dec("500"), Label: "Initial balance",
		}); err != nil {
			return err
		}
		rent = core.Expense{
			Description: "Rent", Amount: dec("450.10"), DueDate: core.NewDate(2024, 3, 5),
			Category: "Housing", Kind: core.KindFixed,
		}
		if err := tx.AddExpense(ctx, march, &rent); err != nil {
			return err
		}
		if err := tx.MarkExpensePaid(ctx, rent.ID, core.NewDate(2024, 3, 6), acc.ID); err != nil {
			return err
		}
		inc := core.Income{Description: "Salary", Amount: dec("3000"), ReceivedDate: core.NewDate(2024, 3, 1), Category: "Work"}
		if err := tx.AddIncome(ctx, march, &inc); err != nil {
			return err
		}
		if err := tx.UpsertBudget(ctx, &core.Budget{Category: "Housing", Limit: dec("500"), Period: march}); err != nil {
			return err
		}
		if err := tx.RecomputeBudgetSpend(ctx, march); err != nil {
			return err
		}
		return tx.SetConfig(ctx, storage.ConfigDefaultAccount, "Checking")
	})
	require.NoError(t, err)

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	snap, err := reopened.LoadAll(ctx)
	require.NoError(t, err)

	require.Len(t, snap.Accounts, 1)
	acc := snap.Accounts[0]
	assert.Equal(t, "Checking", acc.Name)
	assert.True(t, acc.Balance.Equal(dec("500")))
	require.Len(t, acc.History, 1)
	assert.True(t, acc.History[0].Timestamp.Equal(at))

	require.Len(t, snap.Expenses[march], 1)
	got := snap.Expenses[march][0]
	assert.Equal(t, rent.ID, got.ID)
	assert.Equal(t, core.KindFixed, got.Kind)
	assert.True(t, got.Paid)
	assert.Equal(t, acc.ID, got.PaidFrom)
	assert.Equal(t, core.NewDate(2024, 3, 6), got.PaidDate)

	require.Len(t, snap.Incomes[march], 1)
	require.Len(t, snap.Budgets[march], 1)
	assert.True(t, snap.Budgets[march][0].CurrentSpend.Equal(dec("450.10")))
	assert.Equal(t, "Checking", snap.DefaultAccount)

	v, ok, err := reopened.GetConfig(ctx, storage.ConfigDefaultAccount)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Checking", v)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	for _, k := range []string{"despesas", "receitas", "contas_bancarias", "metas_gastos", "conta_padrao"} {
		assert.Contains(t, keys, k)
	}
	assert.Contains(t, string(keys["despesas"]), `"03/2024"`)
	assert.Contains(t, string(keys["despesas"]), `"05/03/2024"`)
}

func TestUpdate_FailureLeavesDocumentUntouched(t *testing.T) {
	ctx := context.Background()
	s, path := openStore(t)
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.CreateAccount(ctx, &core.Account{Name: "Wallet"})
	}))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.CreateAccount(ctx, &core.Account{Name: "Checking"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 1)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestTx_MissingRows(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	err := s.Update(ctx, func(tx storage.Tx) error {
		deleted, err := tx.DeleteExpense(ctx, 42)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = tx.DeleteIncome(ctx, 42)
		require.NoError(t, err)
		assert.False(t, deleted)

		deleted, err = tx.DeleteAccount(ctx, 42)
		require.NoError(t, err)
		assert.False(t, deleted)

		assert.ErrorIs(t, tx.MarkExpensePaid(ctx, 42, core.NewDate(2024, 1, 1), 0), storage.ErrNotFound)
		assert.ErrorIs(t, tx.UpdateAccountBalance(ctx, 42, core.Movement{}), storage.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_DeleteAccountClearsReferences(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		acc := &core.Account{Name: "Checking"}
		require.NoError(t, tx.CreateAccount(ctx, acc))
		e := &core.Expense{Description: "Gym", Amount: dec("30"), Kind: core.KindNormal}
		require.NoError(t, tx.AddExpense(ctx, march, e))
		require.NoError(t, tx.MarkExpensePaid(ctx, e.ID, core.NewDate(2024, 3, 2), acc.ID))
		deleted, err := tx.DeleteAccount(ctx, acc.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		return nil
	}))

	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, snap.Expenses[march][0].PaidFrom)
	assert.True(t, snap.Expenses[march][0].Paid)
}

func TestTx_UpsertBudgetByCategory(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	var first, second core.Budget
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		first = core.Budget{Category: "Food", Limit: dec("300"), Period: march}
		require.NoError(t, tx.UpsertBudget(ctx, &first))
		second = core.Budget{Category: "food", Limit: dec("350"), Period: march}
		return tx.UpsertBudget(ctx, &second)
	}))

	assert.Equal(t, first.ID, second.ID)
	snap, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Budgets[march], 1)
	assert.True(t, snap.Budgets[march][0].Limit.Equal(dec("350")))
	assert.Equal(t, march, snap.Budgets[march][0].Period)
}

func TestTx_ReplaceAllRemapsAccounts(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	snap := core.NewSnapshot()
	snap.Accounts = []core.Account{{ID: 90, Name: "Checking"}, {ID: 91, Name: "Wallet"}}
	snap.Expenses[march] = []core.Expense{
		{ID: 5, Description: "Rent", Amount: dec("1"), Kind: core.KindNormal, Paid: true, PaidFrom: 90},
		{ID: 6, Description: "Lost", Amount: dec("1"), Kind: core.KindNormal, Paid: true, PaidFrom: 77},
	}
	snap.DefaultAccount = "Checking"

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.ReplaceAll(ctx, &snap)
	}))

	loaded, err := s.LoadAll(ctx)
	require.NoError(t, err)
	checking := loaded.Accounts[0]
	require.Equal(t, "Checking", checking.Name)
	assert.NotEqual(t, int64(90), checking.ID)

	byDesc := map[string]core.Expense{}
	for _, e := range loaded.Expenses[march] {
		byDesc[e.Description] = e
	}
	assert.Equal(t, checking.ID, byDesc["Rent"].PaidFrom)
	assert.Zero(t, byDesc["Lost"].PaidFrom)
	assert.Equal(t, "Checking", loaded.DefaultAccount)
}

func TestReadFile_LegacyDocument(t *testing.T) {
	legacy := `{
	  "despesas": {
	    "03/2024": [
	      {"descricao": "Luz", "valor": 120.5, "data_vencimento": "10/03/2024", "pago": false,
	       "categoria": "Casa", "data_pagamento": null, "despesa_fixa": true},
	      {"descricao": "Café", "valor": 7, "data_vencimento": null, "pago": true,
	       "categoria": "Comida", "data_pagamento": "02/03/2024", "tipo": "instantanea"}
	    ]
	  },
	  "receitas": {"03/2024": [{"descricao": "Salário", "valor": 3000, "data_recebimento": "05/03/2024", "categoria": "Salário"}]},
	  "contas_bancarias": {
	    "Carteira": {"nome": "Carteira", "banco": "Dinheiro em Espécie", "saldo_atual": 50.0,
	      "historico_saldo": [{"data": "2024-03-01T09:15:00.123456", "saldo_anterior": 0, "saldo_novo": 50.0, "operacao": "Saldo inicial", "valor": 50.0}]}
	  },
	  "metas_gastos": {"03/2024": [{"categoria": "Comida", "limite_mensal": 400, "mes": 3, "ano": 2024, "gasto_atual": 0, "alertas_enviados": []}]},
	  "conta_padrao": "Carteira"
	}`
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	snap, err := ReadFile(path)
	require.NoError(t, err)

	require.Len(t, snap.Expenses[march], 2)
	light, coffee := snap.Expenses[march][0], snap.Expenses[march][1]
	assert.Equal(t, core.KindFixed, light.Kind)
	assert.True(t, light.Amount.Equal(dec("120.5")))
	assert.Equal(t, core.KindInstant, coffee.Kind)
	assert.True(t, coffee.DueDate.IsZero())
	assert.NotZero(t, light.ID)
	assert.NotEqual(t, light.ID, coffee.ID)

	require.Len(t, snap.Accounts, 1)
	wallet := snap.Accounts[0]
	assert.NotZero(t, wallet.ID)
	assert.True(t, wallet.Consistent())
	assert.Equal(t, 2024, wallet.History[0].Timestamp.Year())
	assert.Equal(t, core.WalletName, wallet.Name, "the old cash account becomes the Wallet")
	assert.Equal(t, "Dinheiro em Espécie", wallet.Institution)
	assert.True(t, wallet.Balance.Equal(dec("50")))
	assert.Equal(t, core.WalletName, snap.DefaultAccount)
	assert.Equal(t, core.NewPeriod(3, 2024), snap.Budgets[march][0].Period)
}

func TestReadFile_LegacyWalletKeptWhenWalletExists(t *testing.T) {
	doc := `{"contas_bancarias": {
	  "Carteira": {"nome": "Carteira", "banco": "Dinheiro em Espécie", "saldo_atual": 0, "historico_saldo": []},
	  "Wallet": {"nome": "Wallet", "banco": "Cash", "saldo_atual": 0, "historico_saldo": []}
	}, "conta_padrao": "Carteira"}`
	path := filepath.Join(t.TempDir(), "both.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	snap, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 2)
	assert.Equal(t, "Carteira", snap.DefaultAccount)
}

func TestReadFile_NullAccountEntry(t *testing.T) {
	doc := `{"contas_bancarias": {"Ghost": null, "Checking": {"nome": "Checking", "banco": "Bank", "saldo_atual": 0, "historico_saldo": []}}}`
	path := filepath.Join(t.TempDir(), "null.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	snap, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, "Checking", snap.Accounts[0].Name)

	s, err := Open(path, nil)
	require.NoError(t, err)
	loaded, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded.Accounts, 1)
}

func TestReadFile_SingleAccountDocument(t *testing.T) {
	doc := `{
	  "despesas": {"03/2024": [{"descricao": "Aluguel", "valor": 900, "data_vencimento": "05/03/2024", "pago": true,
	    "categoria": "Casa", "data_pagamento": "05/03/2024"}]},
	  "receitas": {"02/2024": [{"descricao": "Salário", "valor": 3000, "data_recebimento": "01/02/2024", "categoria": "Trabalho"}]},
	  "saldo_banco": {"03/2024": 1500.25, "01/2024": 1000, "02/2024": 1200}
	}`
	path := filepath.Join(t.TempDir(), "dados_financeiros.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	snap, err := ReadFile(path)
	require.NoError(t, err)

	require.Len(t, snap.Accounts, 1)
	acc := snap.Accounts[0]
	assert.Equal(t, "Conta Principal", acc.Name)
	assert.Equal(t, "Banco Principal", acc.Institution)
	assert.True(t, acc.Balance.Equal(dec("1500.25")))
	assert.True(t, acc.Consistent())
	require.Len(t, acc.History, 3)
	for i, want := range []string{"Migration - 01/2024", "Migration - 02/2024", "Migration - 03/2024"} {
		assert.Equal(t, want, acc.History[i].Label)
		assert.True(t, acc.History[i].Consistent())
	}
	assert.True(t, acc.History[1].Delta.Equal(dec("200")))
	assert.Equal(t, "Conta Principal", snap.DefaultAccount)
	assert.Len(t, snap.Expenses[march], 1)
	assert.Len(t, snap.Incomes[core.NewPeriod(2, 2024)], 1)

	out := filepath.Join(t.TempDir(), "migrated.json")
	require.NoError(t, WriteFile(out, snap, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "saldo_banco")
}

func TestReadFile_SingleAccountDocumentBadPeriod(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad_period.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"saldo_banco": {"13/2024": 10}}`), 0o644))

	_, err := ReadFile(path)
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
}

func TestReadFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := ReadFile(path)
	assert.Error(t, err)
	_, err = Open(path, nil)
	assert.Error(t, err)
}

func TestWriteFile_Backup(t *testing.T) {
	snap := core.NewSnapshot()
	snap.Accounts = []core.Account{{ID: 3, Name: "Wallet", Balance: dec("12.30"), History: []core.Movement{{
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), NewBalance: dec("12.30"), Delta: dec("12.30"), Label: "Cash deposit",
	}}}}
	snap.Incomes[march] = []core.Income{{ID: 4, Description: "Gift", Amount: dec("12.30"), ReceivedDate: core.NewDate(2024, 3, 1), Category: "Other", DepositedTo: 3}}
	snap.DefaultAccount = "Wallet"

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, WriteFile(path, snap, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"versao_sistema": "gastos_v1"`)

	restored, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, restored.Accounts, 1)
	assert.Equal(t, int64(3), restored.Accounts[0].ID, "backups keep their IDs")
	assert.Equal(t, int64(3), restored.Incomes[march][0].DepositedTo)
	assert.True(t, restored.Accounts[0].Balance.Equal(dec("12.30")))
}
