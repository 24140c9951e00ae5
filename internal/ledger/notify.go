package ledger

import (
	"context"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// MovementEvent describes one committed balance transition.
type MovementEvent struct {
	AccountID int64
	Account   string
	Movement  core.Movement
}

// Notifier receives committed movements, e.g. to feed an export queue.
type Notifier interface {
	PublishMovement(ctx context.Context, ev MovementEvent) error
}

// notify publishes committed changes. Failures are logged and never undo
// or fail the operation.
func (l *Ledger) notify(ctx context.Context, changes ...balanceChange) {
	if l.notifier == nil {
		return
	}
	for _, c := range changes {
		ev := MovementEvent{AccountID: c.acc.ID, Account: c.acc.Name, Movement: c.m}
		if err := l.publish(ctx, ev); err != nil {
			l.logger.WarnContext(ctx, "Failed to publish movement",
				applog.NewFields().
					WithOperation(applog.OpPublish).
					WithAccount(c.acc.Name, core.FormatMoney(c.m.NewBalance)).
					WithError(err).
					ToSlice()...)
		}
	}
}

func (l *Ledger) publish(ctx context.Context, ev MovementEvent) error {
	if l.notifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.notifyTimeout)
		defer cancel()
	}
	return l.notifier.PublishMovement(ctx, ev)
}

// commit applies staged changes to memory and publishes them.
func (l *Ledger) commit(ctx context.Context, changes ...balanceChange) {
	for _, c := range changes {
		c.commit()
	}
	l.notify(ctx, changes...)
}
