package domain

import "context"

// Cell addresses one column of a row by zero-based column index.
type Cell struct {
	Col   int
	Value string
}

// RowStore is a coordinate-addressed, row-oriented store without locks or
// transactions. Rows are numbered from 1 and row 1 holds the header.
type RowStore interface {
	// ReadAll returns every row including the header.
	ReadAll(ctx context.Context) ([][]string, error)
	// WriteRange writes cells of one row in the given order.
	WriteRange(ctx context.Context, row int, cells []Cell) error
	// ReadCell returns a single value; missing cells read as "".
	ReadCell(ctx context.Context, row, col int) (string, error)
	// AppendRow adds a row after the last one.
	AppendRow(ctx context.Context, values []string) error
}

// ConditionalWriter is implemented by stores able to apply a write only when
// a guard cell still holds an expected value.
type ConditionalWriter interface {
	CompareAndWrite(ctx context.Context, row int, guard Cell, cells []Cell) (bool, error)
}
