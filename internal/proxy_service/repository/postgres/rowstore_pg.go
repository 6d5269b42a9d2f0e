package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Tech-Aware/ProxyCall/internal/proxy_service/domain"
)

// maxAppendAttempts bounds retries when two writers race for the same next row.
const maxAppendAttempts = 5

// Querier is the subset of pgxpool.Pool used by the row store.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRowStore keeps one logical sheet in the sheet_cells table, one row per
// (sheet, row_num, col) cell.
type PgRowStore struct {
	db     Querier
	sheet  string
	logger *slog.Logger
}

// NewPgRowStore creates a PostgreSQL implementation of domain.RowStore.
func NewPgRowStore(db Querier, sheet string, logger *slog.Logger) *PgRowStore {
	return &PgRowStore{
		db:     db,
		sheet:  sheet,
		logger: logger.With("component", "rowstore_pg", "sheet", sheet),
	}
}

const createSchemaSQL = `CREATE TABLE IF NOT EXISTS sheet_cells (
	sheet   TEXT    NOT NULL,
	row_num INTEGER NOT NULL,
	col     INTEGER NOT NULL,
	value   TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (sheet, row_num, col)
)`

// EnsureSchema creates the sheet_cells table when missing.
func EnsureSchema(ctx context.Context, db Querier) error {
	if _, err := db.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("create sheet_cells: %w", err)
	}
	return nil
}

func (s *PgRowStore) ReadAll(ctx context.Context) ([][]string, error) {
	query := `SELECT row_num, col, value FROM sheet_cells WHERE sheet = $1 ORDER BY row_num, col`
	rows, err := s.db.Query(ctx, query, s.sheet)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to read sheet", "error", err)
		return nil, fmt.Errorf("read sheet %s: %w", s.sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var rowNum, col int32
		var value string
		if err := rows.Scan(&rowNum, &col, &value); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		if rowNum < 1 || col < 0 {
			continue
		}
		for len(out) < int(rowNum) {
			out = append(out, nil)
		}
		r := out[rowNum-1]
		for len(r) <= int(col) {
			r = append(r, "")
		}
		r[col] = value
		out[rowNum-1] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}
	return out, nil
}

func (s *PgRowStore) WriteRange(ctx context.Context, row int, cells []domain.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	cols, values := splitCells(cells)
	query := `INSERT INTO sheet_cells (sheet, row_num, col, value)
		SELECT $1, $2, c.col, c.value FROM unnest($3::int[], $4::text[]) AS c(col, value)
		ON CONFLICT (sheet, row_num, col) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.db.Exec(ctx, query, s.sheet, row, cols, values); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write range", "error", err, "row", row)
		return fmt.Errorf("write row %d of %s: %w", row, s.sheet, err)
	}
	return nil
}

func (s *PgRowStore) ReadCell(ctx context.Context, row, col int) (string, error) {
	query := `SELECT value FROM sheet_cells WHERE sheet = $1 AND row_num = $2 AND col = $3`
	var value string
	err := s.db.QueryRow(ctx, query, s.sheet, row, col).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("read cell %d:%d of %s: %w", row, col, s.sheet, err)
	}
	return value, nil
}

// AppendRow inserts values at MAX(row_num)+1. A concurrent append to the same
// row makes every insert a no-op, in which case the append is retried.
func (s *PgRowStore) AppendRow(ctx context.Context, values []string) error {
	if len(values) == 0 {
		values = []string{""}
	}
	query := `INSERT INTO sheet_cells (sheet, row_num, col, value)
		SELECT $1, n.next_row, c.ord - 1, c.value
		FROM (SELECT COALESCE(MAX(row_num), 0) + 1 AS next_row FROM sheet_cells WHERE sheet = $1) AS n,
			unnest($2::text[]) WITH ORDINALITY AS c(value, ord)
		ON CONFLICT (sheet, row_num, col) DO NOTHING`
	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		tag, err := s.db.Exec(ctx, query, s.sheet, values)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to append row", "error", err)
			return fmt.Errorf("append row to %s: %w", s.sheet, err)
		}
		switch affected := tag.RowsAffected(); {
		case affected == int64(len(values)):
			return nil
		case affected == 0:
			s.logger.WarnContext(ctx, "Append lost race for next row, retrying", "attempt", attempt)
		default:
			return fmt.Errorf("append row to %s: partial insert (%d of %d cells)", s.sheet, affected, len(values))
		}
	}
	return fmt.Errorf("append row to %s: gave up after %d attempts", s.sheet, maxAppendAttempts)
}

// CompareAndWrite applies cells only when the guard cell still holds its
// expected value. The guard row is locked, so a concurrent writer blocks and
// then re-evaluates the condition against the committed value.
func (s *PgRowStore) CompareAndWrite(ctx context.Context, row int, guard domain.Cell, cells []domain.Cell) (bool, error) {
	materialize := `INSERT INTO sheet_cells (sheet, row_num, col, value) VALUES ($1, $2, $3, '')
		ON CONFLICT (sheet, row_num, col) DO NOTHING`
	if _, err := s.db.Exec(ctx, materialize, s.sheet, row, guard.Col); err != nil {
		return false, fmt.Errorf("materialize guard cell %d:%d of %s: %w", row, guard.Col, s.sheet, err)
	}

	cols, values := splitCells(cells)
	query := `WITH guard AS (
			SELECT 1 FROM sheet_cells
			WHERE sheet = $1 AND row_num = $2 AND col = $3 AND value = $4
			FOR UPDATE
		)
		INSERT INTO sheet_cells (sheet, row_num, col, value)
		SELECT $1, $2, c.col, c.value FROM unnest($5::int[], $6::text[]) AS c(col, value)
		WHERE EXISTS (SELECT 1 FROM guard)
		ON CONFLICT (sheet, row_num, col) DO UPDATE SET value = EXCLUDED.value`
	tag, err := s.db.Exec(ctx, query, s.sheet, row, guard.Col, guard.Value, cols, values)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed conditional write", "error", err, "row", row)
		return false, fmt.Errorf("conditional write row %d of %s: %w", row, s.sheet, err)
	}
	return tag.RowsAffected() > 0, nil
}

func splitCells(cells []domain.Cell) ([]int32, []string) {
	cols := make([]int32, len(cells))
	values := make([]string, len(cells))
	for i, c := range cells {
		cols[i] = int32(c.Col)
		values[i] = c.Value
	}
	return cols, values
}
