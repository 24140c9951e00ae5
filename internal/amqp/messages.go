package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/ledger"
)

// MovementMessage carries one committed balance movement. MessageID is
// unique per publish so consumers can drop redeliveries.
type MovementMessage struct {
	MessageID    string          `json:"message_id"`
	AccountID    int64           `json:"account_id"`
	Account      string          `json:"account"`
	OccurredAt   time.Time       `json:"occurred_at"`
	PriorBalance decimal.Decimal `json:"prior_balance"`
	NewBalance   decimal.Decimal `json:"new_balance"`
	Delta        decimal.Decimal `json:"delta"`
	Label        string          `json:"label"`
	PublishedAt  time.Time       `json:"published_at"`
}

// NewMovementMessage creates a message with a fresh ID
func NewMovementMessage(ev ledger.MovementEvent) *MovementMessage {
	return &MovementMessage{
		MessageID:    uuid.NewString(),
		AccountID:    ev.AccountID,
		Account:      ev.Account,
		OccurredAt:   ev.Movement.Timestamp,
		PriorBalance: ev.Movement.PriorBalance,
		NewBalance:   ev.Movement.NewBalance,
		Delta:        ev.Movement.Delta,
		Label:        ev.Movement.Label,
		PublishedAt:  time.Now(),
	}
}

// Movement returns the carried movement.
func (m *MovementMessage) Movement() core.Movement {
	return core.Movement{
		Timestamp:    m.OccurredAt,
		PriorBalance: m.PriorBalance,
		NewBalance:   m.NewBalance,
		Delta:        m.Delta,
		Label:        m.Label,
	}
}

// ToJSON converts the message to JSON bytes
func (m *MovementMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// MovementMessageFromJSON creates a message from JSON bytes
func MovementMessageFromJSON(data []byte) (*MovementMessage, error) {
	var msg MovementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.MessageID == "" {
		return nil, fmt.Errorf("movement message without message_id")
	}
	if _, err := uuid.Parse(msg.MessageID); err != nil {
		return nil, fmt.Errorf("movement message id: %w", err)
	}
	return &msg, nil
}
