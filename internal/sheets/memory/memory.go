// Package memory is an in-process ledger sheet for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	ports "mxmoney/internal/sheets"
)

type Sheet struct {
	mu   sync.Mutex
	rows map[int64]ports.Row
	// Fail makes every call return this error when set.
	Fail error
}

var _ ports.Ledger = (*Sheet)(nil)

func New() *Sheet {
	return &Sheet{rows: make(map[int64]ports.Row)}
}

func (s *Sheet) Upsert(_ context.Context, row ports.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	s.rows[row.ID] = row
	return fmt.Sprintf("mem:%d", row.ID), nil
}

func (s *Sheet) Clear(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	delete(s.rows, id)
	return nil
}

// Rows returns the stored rows ordered by ID.
func (s *Sheet) Rows() []ports.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.Row, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b ports.Row) int { return int(a.ID - b.ID) })
	return out
}
