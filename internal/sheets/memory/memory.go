// Package memory is an in-process TransactionExporter used in tests and
// when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	ports "moneybook/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []ports.Row
}

var _ ports.TransactionExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// Upsert stores the row and returns a synthetic row reference.
func (s *Store) Upsert(_ context.Context, row ports.Row) (string, error) {
	if err := row.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == row.ID && s.rows[i].UserID == row.UserID {
			s.rows[i] = row
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) Remove(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].ID == id && s.rows[i].UserID == userID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Rows returns a copy of the exported rows in insertion order.
func (s *Store) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Row(nil), s.rows...)
}
