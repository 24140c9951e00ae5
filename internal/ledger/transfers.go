package ledger

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// Transfer moves amount between two accounts. Both movements are written
// in one backend transaction and the ledger total does not change.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(ctx, from, to, amount)
}

func (l *Ledger) transfer(ctx context.Context, from, to string, amount decimal.Decimal) error {
	src, err := l.account(from)
	if err != nil {
		return err
	}
	dst, err := l.account(to)
	if err != nil {
		return err
	}
	if from == to {
		return ErrSameAccount
	}
	if !amount.IsPositive() {
		return invalid(core.ErrInvalidAmount)
	}
	if src.Balance.LessThan(amount) {
		return insufficient(src, amount)
	}

	debit := l.stage(src, amount.Neg(), "Transfer to "+to)
	credit := l.stage(dst, amount, "Transfer from "+from)

	if err := l.persist(ctx, applog.OpTransfer, writes(ctx, debit, credit)); err != nil {
		return err
	}
	l.commit(ctx, debit, credit)

	l.logger.InfoContext(ctx, "Transfer completed",
		applog.FieldOperation, applog.OpTransfer,
		applog.FieldAccount, from,
		applog.FieldCounterpart, to,
		applog.FieldAmount, core.FormatMoney(amount),
	)
	return nil
}

// DepositCash adds cash coming from outside the ledger to the Wallet.
func (l *Ledger) DepositCash(ctx context.Context, amount decimal.Decimal, label string) (core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return core.Movement{}, invalid(core.ErrInvalidAmount)
	}
	return l.moveWallet(ctx, amount, labelOr(label, "Cash deposit"))
}

// WithdrawCash removes cash spent outside the ledger from the Wallet.
func (l *Ledger) WithdrawCash(ctx context.Context, amount decimal.Decimal, label string) (core.Movement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !amount.IsPositive() {
		return core.Movement{}, invalid(core.ErrInvalidAmount)
	}
	if wallet := l.accounts[WalletName]; amount.GreaterThan(wallet.Balance) {
		return core.Movement{}, insufficient(wallet, amount)
	}
	return l.moveWallet(ctx, amount.Neg(), labelOr(label, "Cash withdrawal"))
}

func (l *Ledger) TransferToWallet(ctx context.Context, from string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(ctx, from, WalletName, amount)
}

func (l *Ledger) TransferFromWallet(ctx context.Context, to string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(ctx, WalletName, to, amount)
}

func (l *Ledger) moveWallet(ctx context.Context, delta decimal.Decimal, label string) (core.Movement, error) {
	change := l.stage(l.accounts[WalletName], delta, label)
	if err := l.persist(ctx, applog.OpAdjustBalance, writes(ctx, change)); err != nil {
		return core.Movement{}, err
	}
	l.commit(ctx, change)
	return change.m, nil
}

func labelOr(label, fallback string) string {
	if s := strings.TrimSpace(label); s != "" {
		return s
	}
	return fallback
}
