package memory

import (
	"context"
	"fmt"
	"sync"

	ports "gastos/internal/sheets"
)

// Store keeps exported rows in memory.
type Store struct {
	mu   sync.Mutex
	rows []ports.MovementRow
}

var (
	_ ports.MovementWriter  = (*Store)(nil)
	_ ports.MessageIDReader = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendMovement stores the row and returns a synthetic row reference.
func (s *Store) AppendMovement(_ context.Context, row ports.MovementRow) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ListMessageIDs(_ context.Context, year int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, r := range s.rows {
		if r.Movement.Timestamp.Year() == year {
			ids = append(ids, r.MessageID)
		}
	}
	return ids, nil
}

// Rows returns a copy of the stored rows in append order.
func (s *Store) Rows() []ports.MovementRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.MovementRow(nil), s.rows...)
}
