package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

// Expense kinds as written in the document.
const (
	tipoNormal     = "normal"
	tipoFixa       = "fixa"
	tipoInstantane = "instantanea"
)

const backupVersion = "gastos_v1"

// Account created from the per-period balances of single-account documents.
const (
	migratedAccountName = "Conta Principal"
	migratedInstitution = "Banco Principal"
)

// docFile is the on-disk layout. Period keys are MM/YYYY, dates DD/MM/YYYY.
type docFile struct {
	Despesas      map[string][]docExpense `json:"despesas"`
	Receitas      map[string][]docIncome  `json:"receitas"`
	Contas        map[string]*docAccount  `json:"contas_bancarias"`
	Metas         map[string][]docBudget  `json:"metas_gastos"`
	ContaPadrao   string                  `json:"conta_padrao"`
	Configuracoes map[string]string       `json:"configuracoes,omitempty"`
	ProximoID     int64                   `json:"proximo_id"`

	// Per-period bank balances of single-account documents; folded into
	// an account on read.
	SaldoBanco map[string]decimal.Decimal `json:"saldo_banco,omitempty"`

	// Set on backup files only.
	DataBackup    *time.Time `json:"data_backup,omitempty"`
	VersaoSistema string     `json:"versao_sistema,omitempty"`
}

type docAccount struct {
	ID         int64           `json:"id,omitempty"`
	Nome       string          `json:"nome"`
	Banco      string          `json:"banco"`
	SaldoAtual decimal.Decimal `json:"saldo_atual"`
	Historico  []docMovement   `json:"historico_saldo"`
}

type docMovement struct {
	Data          timestamp       `json:"data"`
	SaldoAnterior decimal.Decimal `json:"saldo_anterior"`
	SaldoNovo     decimal.Decimal `json:"saldo_novo"`
	Operacao      string          `json:"operacao"`
	Valor         decimal.Decimal `json:"valor"`
}

type docExpense struct {
	ID                int64           `json:"id,omitempty"`
	Descricao         string          `json:"descricao"`
	Valor             decimal.Decimal `json:"valor"`
	DataVencimento    core.Date       `json:"data_vencimento"`
	Pago              bool            `json:"pago"`
	Categoria         string          `json:"categoria"`
	DataPagamento     core.Date       `json:"data_pagamento"`
	DespesaFixa       bool            `json:"despesa_fixa"`
	Tipo              string          `json:"tipo"`
	PagoImediatamente bool            `json:"pago_imediatamente"`
	ContaPagamento    int64           `json:"conta_pagamento,omitempty"`
}

type docIncome struct {
	ID              int64           `json:"id,omitempty"`
	Descricao       string          `json:"descricao"`
	Valor           decimal.Decimal `json:"valor"`
	DataRecebimento core.Date       `json:"data_recebimento"`
	Categoria       string          `json:"categoria"`
	ContaDeposito   int64           `json:"conta_deposito,omitempty"`
}

type docBudget struct {
	ID           int64           `json:"id,omitempty"`
	Categoria    string          `json:"categoria"`
	LimiteMensal decimal.Decimal `json:"limite_mensal"`
	Mes          int             `json:"mes"`
	Ano          int             `json:"ano"`
	GastoAtual   decimal.Decimal `json:"gasto_atual"`
}

// timestamp accepts RFC 3339 as well as the zone-less ISO form older files
// carry, which is read as local time.
type timestamp struct {
	time.Time
}

var legacyTimestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range legacyTimestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

func newDocFile() *docFile {
	return &docFile{
		Despesas:      make(map[string][]docExpense),
		Receitas:      make(map[string][]docIncome),
		Contas:        make(map[string]*docAccount),
		Metas:         make(map[string][]docBudget),
		Configuracoes: make(map[string]string),
	}
}

// normalize fills nil maps, maps legacy expense flags to a kind and gives
// every entry without ID a fresh one. Keys are walked in sorted order so a
// legacy file always gets the same IDs.
func (d *docFile) normalize() {
	if d.Despesas == nil {
		d.Despesas = make(map[string][]docExpense)
	}
	if d.Receitas == nil {
		d.Receitas = make(map[string][]docIncome)
	}
	if d.Contas == nil {
		d.Contas = make(map[string]*docAccount)
	}
	if d.Metas == nil {
		d.Metas = make(map[string][]docBudget)
	}
	if d.Configuracoes == nil {
		d.Configuracoes = make(map[string]string)
	}

	for name, a := range d.Contas {
		if a == nil {
			delete(d.Contas, name)
			continue
		}
		if a.Nome == "" {
			a.Nome = name
		}
	}
	d.adoptLegacyWallet()

	d.bumpNextID()

	for _, name := range sortedKeys(d.Contas) {
		if a := d.Contas[name]; a.ID == 0 {
			a.ID = d.nextID()
		}
	}
	for _, key := range sortedKeys(d.Despesas) {
		list := d.Despesas[key]
		for i := range list {
			list[i].Tipo = string(kindOf(list[i]))
			if list[i].ID == 0 {
				list[i].ID = d.nextID()
			}
		}
	}
	for _, key := range sortedKeys(d.Receitas) {
		list := d.Receitas[key]
		for i := range list {
			if list[i].ID == 0 {
				list[i].ID = d.nextID()
			}
		}
	}
	for _, key := range sortedKeys(d.Metas) {
		list := d.Metas[key]
		for i := range list {
			if list[i].ID == 0 {
				list[i].ID = d.nextID()
			}
		}
	}
}

// adoptLegacyWallet turns the old cash account into the Wallet, keeping its
// ID, balance and history. A document that already has a Wallet is left
// alone.
func (d *docFile) adoptLegacyWallet() {
	if _, ok := d.Contas[core.WalletName]; ok {
		return
	}
	legacy, ok := d.Contas[core.LegacyWalletName]
	if !ok {
		return
	}
	delete(d.Contas, core.LegacyWalletName)
	legacy.Nome = core.WalletName
	d.Contas[core.WalletName] = legacy
	if d.ContaPadrao == core.LegacyWalletName {
		d.ContaPadrao = core.WalletName
	}
}

// migrateBankBalances folds saldo_banco into a "Conta Principal" account,
// one movement per period in chronological order. Documents that already
// have that account only drop the field.
func (d *docFile) migrateBankBalances() error {
	if len(d.SaldoBanco) == 0 {
		return nil
	}
	if d.Contas == nil {
		d.Contas = make(map[string]*docAccount)
	}
	if a := d.Contas[migratedAccountName]; a != nil {
		d.SaldoBanco = nil
		return nil
	}

	type balance struct {
		period core.Period
		amount decimal.Decimal
	}
	balances := make([]balance, 0, len(d.SaldoBanco))
	for key, amount := range d.SaldoBanco {
		p, err := core.ParsePeriod(key)
		if err != nil {
			return fmt.Errorf("saldo_banco: %w", err)
		}
		balances = append(balances, balance{period: p, amount: amount})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].period.Less(balances[j].period) })

	acc := core.Account{Name: migratedAccountName, Institution: migratedInstitution}
	for _, b := range balances {
		at := time.Date(b.period.Year, time.Month(b.period.Month), 1, 0, 0, 0, 0, time.Local)
		acc.ApplyBalanceChange(b.amount, "Migration - "+b.period.String(), b.amount.Sub(acc.Balance), at)
	}
	d.Contas[migratedAccountName] = accountDoc(acc)
	if d.ContaPadrao == "" {
		d.ContaPadrao = migratedAccountName
	}
	d.SaldoBanco = nil
	return nil
}

// bumpNextID moves the counter past every ID already in use.
func (d *docFile) bumpNextID() {
	top := d.ProximoID
	for _, a := range d.Contas {
		top = max(top, a.ID)
	}
	for _, list := range d.Despesas {
		for _, e := range list {
			top = max(top, e.ID)
		}
	}
	for _, list := range d.Receitas {
		for _, i := range list {
			top = max(top, i.ID)
		}
	}
	for _, list := range d.Metas {
		for _, b := range list {
			top = max(top, b.ID)
		}
	}
	d.ProximoID = top
}

func (d *docFile) nextID() int64 {
	d.ProximoID++
	return d.ProximoID
}

// kindOf maps the document kind, including the legacy boolean flags.
func kindOf(e docExpense) core.ExpenseKind {
	switch {
	case e.Tipo == tipoInstantane || e.Tipo == string(core.KindInstant) || e.PagoImediatamente:
		return core.KindInstant
	case e.Tipo == tipoFixa || e.Tipo == string(core.KindFixed) || e.DespesaFixa:
		return core.KindFixed
	default:
		return core.KindNormal
	}
}

func tipoOf(k core.ExpenseKind) string {
	switch k {
	case core.KindInstant:
		return tipoInstantane
	case core.KindFixed:
		return tipoFixa
	default:
		return tipoNormal
	}
}

func (d *docFile) snapshot() (core.Snapshot, error) {
	snap := core.NewSnapshot()
	snap.DefaultAccount = d.ContaPadrao

	for _, name := range sortedKeys(d.Contas) {
		snap.Accounts = append(snap.Accounts, d.Contas[name].toCore())
	}
	for key, list := range d.Despesas {
		p, err := core.ParsePeriod(key)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("despesas: %w", err)
		}
		for _, e := range list {
			snap.Expenses[p] = append(snap.Expenses[p], e.toCore())
		}
	}
	for key, list := range d.Receitas {
		p, err := core.ParsePeriod(key)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("receitas: %w", err)
		}
		for _, i := range list {
			snap.Incomes[p] = append(snap.Incomes[p], i.toCore())
		}
	}
	for key, list := range d.Metas {
		p, err := core.ParsePeriod(key)
		if err != nil {
			return core.Snapshot{}, fmt.Errorf("metas_gastos: %w", err)
		}
		for _, b := range list {
			cb := b.toCore()
			cb.Period = p
			snap.Budgets[p] = append(snap.Budgets[p], cb)
		}
	}
	return snap, nil
}

// fromSnapshot encodes snap keeping its IDs.
func fromSnapshot(snap core.Snapshot) *docFile {
	d := newDocFile()
	d.ContaPadrao = snap.DefaultAccount
	for _, a := range snap.Accounts {
		d.Contas[a.Name] = accountDoc(a)
	}
	for p, list := range snap.Expenses {
		for _, e := range list {
			d.Despesas[p.String()] = append(d.Despesas[p.String()], expenseDoc(e))
		}
	}
	for p, list := range snap.Incomes {
		for _, i := range list {
			d.Receitas[p.String()] = append(d.Receitas[p.String()], incomeDoc(i))
		}
	}
	for p, list := range snap.Budgets {
		for _, b := range list {
			b.Period = p
			d.Metas[p.String()] = append(d.Metas[p.String()], budgetDoc(b))
		}
	}
	d.normalize()
	return d
}

func (a *docAccount) toCore() core.Account {
	acc := core.Account{ID: a.ID, Name: a.Nome, Institution: a.Banco, Balance: a.SaldoAtual}
	for _, m := range a.Historico {
		acc.History = append(acc.History, core.Movement{
			Timestamp:    m.Data.Time,
			PriorBalance: m.SaldoAnterior,
			NewBalance:   m.SaldoNovo,
			Delta:        m.Valor,
			Label:        m.Operacao,
		})
	}
	return acc
}

func accountDoc(a core.Account) *docAccount {
	d := &docAccount{ID: a.ID, Nome: a.Name, Banco: a.Institution, SaldoAtual: a.Balance, Historico: []docMovement{}}
	for _, m := range a.History {
		d.Historico = append(d.Historico, movementDoc(m))
	}
	return d
}

func movementDoc(m core.Movement) docMovement {
	return docMovement{
		Data:          timestamp{m.Timestamp},
		SaldoAnterior: m.PriorBalance,
		SaldoNovo:     m.NewBalance,
		Operacao:      m.Label,
		Valor:         m.Delta,
	}
}

func (e docExpense) toCore() core.Expense {
	return core.Expense{
		ID:          e.ID,
		Description: e.Descricao,
		Amount:      e.Valor,
		DueDate:     e.DataVencimento,
		Category:    e.Categoria,
		Paid:        e.Pago,
		PaidDate:    e.DataPagamento,
		Kind:        kindOf(e),
		PaidFrom:    e.ContaPagamento,
	}
}

func expenseDoc(e core.Expense) docExpense {
	return docExpense{
		ID:                e.ID,
		Descricao:         e.Description,
		Valor:             e.Amount,
		DataVencimento:    e.DueDate,
		Pago:              e.Paid,
		Categoria:         e.Category,
		DataPagamento:     e.PaidDate,
		DespesaFixa:       e.Kind == core.KindFixed,
		Tipo:              tipoOf(e.Kind),
		PagoImediatamente: e.Kind == core.KindInstant,
		ContaPagamento:    e.PaidFrom,
	}
}

func (i docIncome) toCore() core.Income {
	return core.Income{
		ID:           i.ID,
		Description:  i.Descricao,
		Amount:       i.Valor,
		ReceivedDate: i.DataRecebimento,
		Category:     i.Categoria,
		DepositedTo:  i.ContaDeposito,
	}
}

func incomeDoc(i core.Income) docIncome {
	return docIncome{
		ID:              i.ID,
		Descricao:       i.Description,
		Valor:           i.Amount,
		DataRecebimento: i.ReceivedDate,
		Categoria:       i.Category,
		ContaDeposito:   i.DepositedTo,
	}
}

func (b docBudget) toCore() core.Budget {
	return core.Budget{
		ID:           b.ID,
		Category:     b.Categoria,
		Limit:        b.LimiteMensal,
		Period:       core.NewPeriod(b.Mes, b.Ano),
		CurrentSpend: b.GastoAtual,
	}
}

func budgetDoc(b core.Budget) docBudget {
	return docBudget{
		ID:           b.ID,
		Categoria:    b.Category,
		LimiteMensal: b.Limit,
		Mes:          b.Period.Month,
		Ano:          b.Period.Year,
		GastoAtual:   b.CurrentSpend,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
