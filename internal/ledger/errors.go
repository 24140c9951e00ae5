package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
)

var (
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrLastAccount       = errors.New("cannot remove the only account")
	ErrWalletAccount     = errors.New("the wallet cannot be removed or renamed")
	ErrSameAccount       = errors.New("source and destination are the same account")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyPaid       = errors.New("expense already paid")
	ErrAlreadyProcessed  = errors.New("income already processed")
	ErrNotFound          = errors.New("not found")
	ErrInvalid           = errors.New("invalid input")
	ErrPersistence       = errors.New("persistence failure")
	ErrClosed            = errors.New("ledger closed")
)

// InsufficientFundsError carries the numbers behind a refused debit. The
// caller may retry a payment with ForceOverdraft.
type InsufficientFundsError struct {
	Account string
	Balance decimal.Decimal
	Amount  decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %q: balance %s, need %s",
		e.Account, core.FormatMoney(e.Balance), core.FormatMoney(e.Amount))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// Shortfall is how much is missing to cover the amount.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Amount.Sub(e.Balance)
}

// PersistenceError wraps a backend failure. The in-memory ledger is left as
// it was before the operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

var domainErrors = []error{
	ErrDuplicateAccount, ErrUnknownAccount, ErrLastAccount, ErrWalletAccount,
	ErrSameAccount, ErrInsufficientFunds, ErrAlreadyPaid, ErrAlreadyProcessed,
	ErrNotFound, ErrInvalid, ErrPersistence,
}

// IsDomainError reports whether err belongs to the ledger error taxonomy,
// i.e. the session can report it and carry on.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}

func unknownAccount(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAccount, name)
}

func insufficient(a *core.Account, amount decimal.Decimal) error {
	return &InsufficientFundsError{Account: a.Name, Balance: a.Balance, Amount: amount}
}
