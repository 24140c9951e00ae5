// Package sheets declares the export port the sync worker writes movement
// rows through. The google subpackage targets Google Sheets; memory keeps
// rows in process.
package sheets

import (
	"context"
	"errors"
	"strings"

	"gastos/internal/core"
)

var (
	ErrMissingMessageID = errors.New("movement row without message id")
	ErrMissingAccount   = errors.New("movement row without account")
	ErrInconsistentRow  = errors.New("movement row does not satisfy new = prior + delta")
)

// MovementRow is one exported ledger movement.
type MovementRow struct {
	MessageID string
	AccountID int64
	Account   string
	Movement  core.Movement
}

func (r MovementRow) Validate() error {
	if strings.TrimSpace(r.MessageID) == "" {
		return ErrMissingMessageID
	}
	if strings.TrimSpace(r.Account) == "" {
		return ErrMissingAccount
	}
	if !r.Movement.Consistent() {
		return ErrInconsistentRow
	}
	return nil
}

// Ports for outbound adapters.
type (
	MovementWriter interface {
		AppendMovement(ctx context.Context, row MovementRow) (rowRef string, err error)
	}

	// MessageIDReader lists the message IDs already exported for a year so a
	// restarted worker can skip redeliveries.
	MessageIDReader interface {
		ListMessageIDs(ctx context.Context, year int) ([]string, error)
	}
)
