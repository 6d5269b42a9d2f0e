package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// RowStore is an in-process domain.RowStore. It also implements
// domain.ConditionalWriter.
type RowStore struct {
	mu   sync.RWMutex
	rows [][]string
}

// NewRowStore returns a store seeded with rows (header first).
func NewRowStore(rows ...[]string) *RowStore {
	s := &RowStore{}
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	return s
}

func (s *RowStore) ReadAll(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *RowStore) WriteRange(ctx context.Context, row int, cells []domain.Cell) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(row, cells)
}

func (s *RowStore) ReadCell(ctx context.Context, row, col int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cellLocked(row, col), nil
}

func (s *RowStore) AppendRow(ctx context.Context, values []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, append([]string(nil), values...))
	return nil
}

// CompareAndWrite applies cells atomically when guard still matches.
func (s *RowStore) CompareAndWrite(ctx context.Context, row int, guard domain.Cell, cells []domain.Cell) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cellLocked(row, guard.Col) != guard.Value {
		return false, nil
	}
	if err := s.writeLocked(row, cells); err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of rows including the header.
func (s *RowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func (s *RowStore) writeLocked(row int, cells []domain.Cell) error {
	if row < 1 || row > len(s.rows) {
		return fmt.Errorf("row %d out of range (rows=%d)", row, len(s.rows))
	}
	r := s.rows[row-1]
	for _, c := range cells {
		if c.Col < 0 {
			return fmt.Errorf("negative column %d", c.Col)
		}
		for len(r) <= c.Col {
			r = append(r, "")
		}
		r[c.Col] = c.Value
	}
	s.rows[row-1] = r
	return nil
}

func (s *RowStore) cellLocked(row, col int) string {
	if row < 1 || row > len(s.rows) {
		return ""
	}
	r := s.rows[row-1]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}
