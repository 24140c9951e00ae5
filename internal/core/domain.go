package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindNormal  ExpenseKind = "normal"
	KindFixed   ExpenseKind = "fixed"
	KindInstant ExpenseKind = "instant"
)

const maxDescriptionLen = 200

const (
	// WalletName is the distinguished cash account.
	WalletName = "Wallet"
	// LegacyWalletName is the cash account name used by older documents.
	LegacyWalletName = "Carteira"
)

type (
	ExpenseKind string

	// Movement is one balance transition of an account. Never mutated after
	// it has been appended to a history.
	Movement struct {
		Timestamp    time.Time
		PriorBalance decimal.Decimal
		NewBalance   decimal.Decimal
		Delta        decimal.Decimal
		Label        string
	}

	Account struct {
		ID          int64
		Name        string
		Institution string
		Balance     decimal.Decimal
		History     []Movement
	}

	Expense struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		DueDate     Date // zero for instant expenses
		Category    string
		Paid        bool
		PaidDate    Date
		Kind        ExpenseKind
		PaidFrom    int64 // paying account ID, 0 when paid out-of-band
	}

	Income struct {
		ID           int64
		Description  string
		Amount       decimal.Decimal
		ReceivedDate Date
		Category     string
		DepositedTo  int64 // credited account ID, 0 until processed
	}

	Budget struct {
		ID           int64
		Category     string
		Limit        decimal.Decimal
		Period       Period
		CurrentSpend decimal.Decimal
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyName        = errors.New("empty account name")
	ErrInvalidKind      = errors.New("invalid expense kind")
	ErrInvalidPeriod    = errors.New("invalid period")
)

var hundred = decimal.NewFromInt(100)

// Consistent reports whether the record obeys new = prior + delta.
func (m Movement) Consistent() bool {
	return m.NewBalance.Equal(m.PriorBalance.Add(m.Delta))
}

// ApplyBalanceChange sets the balance and appends the matching movement.
// The delta is recorded as given; callers keep it consistent with the
// transition.
func (a *Account) ApplyBalanceChange(newBalance decimal.Decimal, label string, delta decimal.Decimal, at time.Time) Movement {
	m := Movement{
		Timestamp:    at,
		PriorBalance: a.Balance,
		NewBalance:   newBalance,
		Delta:        delta,
		Label:        label,
	}
	a.Balance = newBalance
	a.History = append(a.History, m)
	return m
}

// Consistent reports whether the balance matches the last history entry.
func (a Account) Consistent() bool {
	if len(a.History) == 0 {
		return true
	}
	return a.Balance.Equal(a.History[len(a.History)-1].NewBalance)
}

// Clone returns a copy that shares no history backing array.
func (a Account) Clone() Account {
	c := a
	c.History = append([]Movement(nil), a.History...)
	return c
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (k ExpenseKind) IsValid() bool {
	switch k {
	case KindNormal, KindFixed, KindInstant:
		return true
	default:
		return false
	}
}

// Label returns the display name of the kind.
func (k ExpenseKind) Label() string {
	switch k {
	case KindInstant:
		return "Paid immediately"
	case KindFixed:
		return "Fixed"
	default:
		return "Normal"
	}
}

// Normalize applies the kind rules: an instant expense is paid on the spot
// and has no due date; other kinds default to a due date of today.
func (e *Expense) Normalize(today Date) {
	if e.Kind == "" {
		e.Kind = KindNormal
	}
	if e.Category == "" {
		e.Category = "General"
	}
	if e.Kind == KindInstant {
		e.DueDate = Date{}
		e.Paid = true
		if e.PaidDate.IsZero() {
			e.PaidDate = today
		}
		return
	}
	if e.DueDate.IsZero() {
		e.DueDate = today
	}
}

func (e Expense) Validate() error {
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !e.Kind.IsValid() {
		return ErrInvalidKind
	}
	if e.Kind == KindInstant && !e.Paid {
		return errors.New("instant expense must be paid")
	}
	return nil
}

func (i Income) Validate() error {
	if err := validateDescription(i.Description); err != nil {
		return err
	}
	if !i.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if err := i.ReceivedDate.Validate(); err != nil {
		return err
	}
	return nil
}

// PercentUsed returns spend over limit in percent; 0 for a zero limit.
func (b Budget) PercentUsed() decimal.Decimal {
	if b.Limit.IsZero() {
		return decimal.Zero
	}
	return b.CurrentSpend.Div(b.Limit).Mul(hundred)
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if !b.Limit.IsPositive() {
		return ErrInvalidAmount
	}
	return b.Period.Validate()
}

func validateDescription(s string) error {
	if len(strings.TrimSpace(s)) == 0 {
		return ErrEmptyDescription
	}
	if len(s) > maxDescriptionLen {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}
