package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// Alert thresholds in percent of the budget limit.
const (
	NearLimitPercent = 80
	ExceededPercent  = 100
)

type AlertLevel string

const (
	AlertNearLimit AlertLevel = "near_limit"
	AlertExceeded  AlertLevel = "exceeded"
)

// Alert flags a budget whose usage crossed a threshold.
type Alert struct {
	Level   AlertLevel
	Budget  core.Budget
	Percent decimal.Decimal
}

func (a Alert) Message() string {
	state := "near limit"
	if a.Level == AlertExceeded {
		state = "exceeded"
	}
	return fmt.Sprintf("Budget %q %s: %s%% used (%s of %s)",
		a.Budget.Category, state, a.Percent.StringFixed(2),
		core.FormatMoney(a.Budget.CurrentSpend), core.FormatMoney(a.Budget.Limit))
}

// SetBudget creates or updates the budget of a category for a period.
// Categories match case-insensitively. Spend is recomputed right away.
func (l *Ledger) SetBudget(ctx context.Context, category string, limit decimal.Decimal, period core.Period) (core.Budget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := core.Budget{Category: strings.TrimSpace(category), Limit: limit, Period: period}
	if err := b.Validate(); err != nil {
		return core.Budget{}, invalid(err)
	}
	idx := l.findBudget(b.Category, period)
	if idx >= 0 {
		existing := l.budgets[period][idx]
		b.ID = existing.ID
		b.Category = existing.Category
	}
	b.CurrentSpend = core.PaidByCategory(l.expenses[period])[core.CategoryKey(b.Category)]

	if err := l.persist(ctx, applog.OpSetBudget, func(tx storage.Tx) error {
		if err := tx.UpsertBudget(ctx, &b); err != nil {
			return err
		}
		return tx.RecomputeBudgetSpend(ctx, period)
	}); err != nil {
		return core.Budget{}, err
	}

	if idx >= 0 {
		l.budgets[period][idx] = b
	} else {
		l.budgets[period] = append(l.budgets[period], b)
	}
	l.refreshSpend(period)

	l.logger.InfoContext(ctx, "Budget set",
		applog.FieldOperation, applog.OpSetBudget,
		applog.FieldCategory, b.Category,
		applog.FieldAmount, core.FormatMoney(limit),
		applog.FieldPeriod, period.String(),
	)
	return b, nil
}

// RecomputeSpend resets the spend of every budget of the period and sums
// the paid expenses per category again, in memory and in the backend.
func (l *Ledger) RecomputeSpend(ctx context.Context, period core.Period) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.persist(ctx, applog.OpRecomputeSpend, func(tx storage.Tx) error {
		return tx.RecomputeBudgetSpend(ctx, period)
	}); err != nil {
		return err
	}
	l.refreshSpend(period)
	return nil
}

func (l *Ledger) RemoveBudget(ctx context.Context, category string, period core.Period) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.findBudget(category, period)
	if idx < 0 {
		return fmt.Errorf("budget %q for %s: %w", category, period, ErrNotFound)
	}
	id := l.budgets[period][idx].ID

	if err := l.persist(ctx, applog.OpRemoveBudget, func(tx storage.Tx) error {
		deleted, err := tx.DeleteBudget(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("budget %d: %w", id, storage.ErrNotFound)
		}
		return nil
	}); err != nil {
		return err
	}

	list := l.budgets[period]
	l.budgets[period] = append(list[:idx:idx], list[idx+1:]...)
	if len(l.budgets[period]) == 0 {
		delete(l.budgets, period)
	}
	return nil
}

// Budgets returns the budgets of a period with fresh spend, by category.
func (l *Ledger) Budgets(period core.Period) []core.Budget {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshSpend(period)
	out := append([]core.Budget(nil), l.budgets[period]...)
	sort.Slice(out, func(i, j int) bool {
		return core.CategoryKey(out[i].Category) < core.CategoryKey(out[j].Category)
	})
	return out
}

// Alerts recomputes spend and reports every budget at or above
// NearLimitPercent.
func (l *Ledger) Alerts(period core.Period) []Alert {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refreshSpend(period)
	near := decimal.NewFromInt(NearLimitPercent)
	exceeded := decimal.NewFromInt(ExceededPercent)

	var alerts []Alert
	for _, b := range l.budgets[period] {
		pct := b.PercentUsed()
		switch {
		case pct.GreaterThanOrEqual(exceeded):
			alerts = append(alerts, Alert{Level: AlertExceeded, Budget: b, Percent: pct})
		case pct.GreaterThanOrEqual(near):
			alerts = append(alerts, Alert{Level: AlertNearLimit, Budget: b, Percent: pct})
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		return core.CategoryKey(alerts[i].Budget.Category) < core.CategoryKey(alerts[j].Budget.Category)
	})
	return alerts
}

func (l *Ledger) refreshSpend(period core.Period) {
	spent := core.PaidByCategory(l.expenses[period])
	list := l.budgets[period]
	for i := range list {
		list[i].CurrentSpend = spent[core.CategoryKey(list[i].Category)]
	}
}

func (l *Ledger) findBudget(category string, period core.Period) int {
	key := core.CategoryKey(category)
	for i, b := range l.budgets[period] {
		if core.CategoryKey(b.Category) == key {
			return i
		}
	}
	return -1
}
