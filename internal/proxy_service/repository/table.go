package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// ErrConditionalWritesUnsupported is returned by CompareAndWrite when the
// underlying store has no conditional write primitive.
var ErrConditionalWritesUnsupported = errors.New("row store does not support conditional writes")

// Field is a named column value.
type Field struct {
	Name  string
	Value string
}

// Set builds a Field.
func Set(name, value string) Field { return Field{Name: name, Value: value} }

// Record is one data row read through the header index.
type Record struct {
	Row    int
	values []string
	index  map[string]int
}

// Get returns the trimmed value of a column, "" when absent.
func (r Record) Get(name string) string {
	col, ok := r.index[name]
	if !ok || col >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[col])
}

// Table maps column names onto a RowStore using its header row. Missing
// columns are appended to the header on first use.
type Table struct {
	name    string
	store   domain.RowStore
	columns []string

	mu    sync.Mutex
	index map[string]int
	width int
}

// NewTable builds a Table over store with the canonical column order.
func NewTable(name string, store domain.RowStore, columns []string) *Table {
	return &Table{name: name, store: store, columns: columns}
}

// Name returns the table name used in errors and logs.
func (t *Table) Name() string { return t.name }

// Init creates or completes the header row.
func (t *Table) Init(ctx context.Context) error {
	_, err := t.loadIndex(ctx)
	return err
}

// ConditionalWrites reports whether CompareAndWrite is available.
func (t *Table) ConditionalWrites() bool {
	_, ok := t.store.(domain.ConditionalWriter)
	return ok
}

// Records reads every data row.
func (t *Table) Records(ctx context.Context) ([]Record, error) {
	rows, err := t.store.ReadAll(ctx)
	if err != nil {
		return nil, t.storageErr("read", err)
	}
	index, err := t.ensureHeader(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	records := make([]Record, 0, len(rows)-1)
	for i, values := range rows[1:] {
		if isBlank(values) {
			continue
		}
		records = append(records, Record{Row: i + 2, values: values, index: index})
	}
	return records, nil
}

// Read returns one column of one row.
func (t *Table) Read(ctx context.Context, row int, name string) (string, error) {
	col, err := t.column(ctx, name)
	if err != nil {
		return "", err
	}
	v, err := t.store.ReadCell(ctx, row, col)
	if err != nil {
		return "", t.storageErr("read "+name, err)
	}
	return strings.TrimSpace(v), nil
}

// Write writes fields to row in the given order.
func (t *Table) Write(ctx context.Context, row int, fields ...Field) error {
	cells, err := t.cells(ctx, fields)
	if err != nil {
		return err
	}
	if err := t.store.WriteRange(ctx, row, cells); err != nil {
		return t.storageErr("write", err)
	}
	return nil
}

// CompareAndWrite writes fields only if guard still holds its value.
func (t *Table) CompareAndWrite(ctx context.Context, row int, guard Field, fields ...Field) (bool, error) {
	cw, ok := t.store.(domain.ConditionalWriter)
	if !ok {
		return false, ErrConditionalWritesUnsupported
	}
	guardCells, err := t.cells(ctx, []Field{guard})
	if err != nil {
		return false, err
	}
	cells, err := t.cells(ctx, fields)
	if err != nil {
		return false, err
	}
	applied, err := cw.CompareAndWrite(ctx, row, guardCells[0], cells)
	if err != nil {
		return false, t.storageErr("conditional write", err)
	}
	return applied, nil
}

// Append adds a row built from fields; unknown columns are left empty.
func (t *Table) Append(ctx context.Context, fields ...Field) error {
	if _, err := t.loadIndex(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	values := make([]string, t.width)
	for _, f := range fields {
		col, ok := t.index[f.Name]
		if !ok {
			t.mu.Unlock()
			return fmt.Errorf("%s: unknown column %q", t.name, f.Name)
		}
		values[col] = f.Value
	}
	t.mu.Unlock()
	if err := t.store.AppendRow(ctx, values); err != nil {
		return t.storageErr("append", err)
	}
	return nil
}

func (t *Table) cells(ctx context.Context, fields []Field) ([]domain.Cell, error) {
	if _, err := t.loadIndex(ctx); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cells := make([]domain.Cell, 0, len(fields))
	for _, f := range fields {
		col, ok := t.index[f.Name]
		if !ok {
			return nil, fmt.Errorf("%s: unknown column %q", t.name, f.Name)
		}
		cells = append(cells, domain.Cell{Col: col, Value: f.Value})
	}
	return cells, nil
}

func (t *Table) column(ctx context.Context, name string) (int, error) {
	index, err := t.loadIndex(ctx)
	if err != nil {
		return 0, err
	}
	col, ok := index[name]
	if !ok {
		return 0, fmt.Errorf("%s: unknown column %q", t.name, name)
	}
	return col, nil
}

func (t *Table) loadIndex(ctx context.Context) (map[string]int, error) {
	t.mu.Lock()
	index := t.index
	t.mu.Unlock()
	if index != nil {
		return index, nil
	}
	rows, err := t.store.ReadAll(ctx)
	if err != nil {
		return nil, t.storageErr("read header", err)
	}
	return t.ensureHeader(ctx, rows)
}

// ensureHeader writes the header when the store is empty and appends any
// canonical column the existing header lacks.
func (t *Table) ensureHeader(ctx context.Context, rows [][]string) (map[string]int, error) {
	if len(rows) == 0 {
		if err := t.store.AppendRow(ctx, t.columns); err != nil {
			return nil, t.storageErr("write header", err)
		}
		return t.setIndex(t.columns), nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []domain.Cell
	for _, c := range t.columns {
		if !present[c] {
			missing = append(missing, domain.Cell{Col: len(header), Value: c})
			header = append(header, c)
		}
	}
	if len(missing) > 0 {
		if err := t.store.WriteRange(ctx, 1, missing); err != nil {
			return nil, t.storageErr("extend header", err)
		}
	}
	return t.setIndex(header), nil
}

func (t *Table) setIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	t.mu.Lock()
	t.index = index
	t.width = len(header)
	t.mu.Unlock()
	return index
}

func (t *Table) storageErr(op string, err error) error {
	return &domain.StorageError{Op: t.name + " " + op, Err: err}
}

func isBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
