package worker

import (
	"context"
	"fmt"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	applog "gastos/internal/log"
	"gastos/internal/sheets"
)

// SyncWorker exports movement messages to a sheets.MovementWriter. Message
// IDs already written are remembered in seen so redeliveries are skipped.
type SyncWorker struct {
	writer sheets.MovementWriter
	seen   cache.Cache[struct{}]
	logger *applog.Logger
}

func NewSyncWorker(writer sheets.MovementWriter, seen cache.Cache[struct{}], logger *applog.Logger) *SyncWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &SyncWorker{
		writer: writer,
		seen:   seen,
		logger: logger.WithComponent(applog.ComponentWorker),
	}
}

// Seed marks the message IDs already present in the export for year as
// seen and returns how many it loaded.
func (w *SyncWorker) Seed(ctx context.Context, reader sheets.MessageIDReader, year int) (int, error) {
	ids, err := reader.ListMessageIDs(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("list exported message ids: %w", err)
	}
	for _, id := range ids {
		w.seen.Set(id, struct{}{})
	}
	w.logger.InfoContext(ctx, "Seeded exported message ids", "year", year, "count", len(ids))
	return len(ids), nil
}

// HandleMovement appends one movement row. A returned error asks the broker
// to redeliver; rows that can never be written are logged and dropped.
func (w *SyncWorker) HandleMovement(ctx context.Context, msg *amqp.MovementMessage) error {
	if _, ok := w.seen.Get(msg.MessageID); ok {
		w.logger.DebugContext(ctx, "Skipping already exported movement",
			applog.FieldMessageID, msg.MessageID)
		return nil
	}

	row := sheets.MovementRow{
		MessageID: msg.MessageID,
		AccountID: msg.AccountID,
		Account:   msg.Account,
		Movement:  msg.Movement(),
	}
	if err := row.Validate(); err != nil {
		w.logger.WarnContext(ctx, "Dropping invalid movement message",
			applog.FieldMessageID, msg.MessageID,
			applog.FieldError, err)
		return nil
	}

	ref, err := w.writer.AppendMovement(ctx, row)
	if err != nil {
		return fmt.Errorf("append movement %s: %w", msg.MessageID, err)
	}
	w.seen.Set(msg.MessageID, struct{}{})

	w.logger.InfoContext(ctx, "Movement exported",
		applog.FieldMessageID, msg.MessageID,
		applog.FieldAccount, msg.Account,
		applog.FieldAmount, msg.Delta.String(),
		"ref", ref)
	return nil
}
