package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/sheets"
	"gastos/internal/sheets/memory"
)

type failingWriter struct{ calls int }

func (f *failingWriter) AppendMovement(context.Context, sheets.MovementRow) (string, error) {
	f.calls++
	return "", errors.New("quota exceeded")
}

type failingReader struct{}

func (failingReader) ListMessageIDs(context.Context, int) ([]string, error) {
	return nil, errors.New("unavailable")
}

func message(delta string) *amqp.MovementMessage {
	d := decimal.RequireFromString(delta)
	return &amqp.MovementMessage{
		MessageID:    uuid.NewString(),
		AccountID:    1,
		Account:      "Wallet",
		OccurredAt:   time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
		PriorBalance: decimal.NewFromInt(50),
		NewBalance:   decimal.NewFromInt(50).Add(d),
		Delta:        d,
		Label:        "Cash deposit",
	}
}

func newWorker(w sheets.MovementWriter) (*SyncWorker, *cache.LRUCache[struct{}]) {
	seen := cache.NewLRUCache[struct{}](100, time.Hour)
	return NewSyncWorker(w, seen, nil), seen
}

func TestHandleMovement_AppendsRow(t *testing.T) {
	store := memory.New()
	w, seen := newWorker(store)
	msg := message("25.50")

	require.NoError(t, w.HandleMovement(context.Background(), msg))

	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, msg.MessageID, rows[0].MessageID)
	assert.Equal(t, "Wallet", rows[0].Account)
	assert.True(t, rows[0].Movement.NewBalance.Equal(decimal.RequireFromString("75.50")))
	assert.True(t, seen.Contains(msg.MessageID))
}

func TestHandleMovement_SkipsRedelivery(t *testing.T) {
	store := memory.New()
	w, _ := newWorker(store)
	msg := message("-10")

	require.NoError(t, w.HandleMovement(context.Background(), msg))
	require.NoError(t, w.HandleMovement(context.Background(), msg))
	assert.Len(t, store.Rows(), 1)
}

func TestHandleMovement_DropsInvalidRows(t *testing.T) {
	writer := &failingWriter{}
	w, seen := newWorker(writer)
	msg := message("5")
	msg.NewBalance = decimal.NewFromInt(999)

	require.NoError(t, w.HandleMovement(context.Background(), msg))
	assert.Zero(t, writer.calls)
	assert.False(t, seen.Contains(msg.MessageID))
}

func TestHandleMovement_WriterFailureRequestsRedelivery(t *testing.T) {
	writer := &failingWriter{}
	w, seen := newWorker(writer)
	msg := message("5")

	err := w.HandleMovement(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, seen.Contains(msg.MessageID))
}

func TestSeed(t *testing.T) {
	store := memory.New()
	w, _ := newWorker(store)
	msg := message("1")
	require.NoError(t, w.HandleMovement(context.Background(), msg))

	fresh, seen := newWorker(store)
	n, err := fresh.Seed(context.Background(), store, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, seen.Contains(msg.MessageID))

	require.NoError(t, fresh.HandleMovement(context.Background(), msg))
	assert.Len(t, store.Rows(), 1)

	_, err = fresh.Seed(context.Background(), failingReader{}, 2024)
	assert.Error(t, err)
}
