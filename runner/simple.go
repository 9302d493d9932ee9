package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/entity"
)

// Simple runs statements returning raw rows.
type Simple struct {
	r *Runner
}

// Read returns the first row of query. It fails with persist.NotFoundError
// when the query returns no rows.
func (s *Simple) Read(ctx context.Context, query string, args persist.Arguments) (*TableRow, error) {
	row, ok, err := s.ReadOptional(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, persist.NewNotFoundError("row", args.Values()...)
	}
	return row, nil
}

// ReadOptional is like Read but reports a missing row with false.
func (s *Simple) ReadOptional(ctx context.Context, query string, args persist.Arguments) (*TableRow, bool, error) {
	rows, err := s.r.query(ctx, query, args)
	if err != nil {
		return nil, false, err
	}
	if !rows.Next() {
		err := rows.Err()
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, false, wrapError(query, args.Values(), err)
		}
		return nil, false, nil
	}
	return &TableRow{rows: rows}, true, nil
}

// ReadLazy returns a forward-only cursor over the rows of query.
func (s *Simple) ReadLazy(ctx context.Context, query string, args persist.Arguments) (*Rows, error) {
	rows, err := s.r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &Rows{rows: rows, query: query, args: args.Values()}, nil
}

// ReadAll returns every row of query as a record keyed by column name.
func (s *Simple) ReadAll(ctx context.Context, query string, args persist.Arguments) ([]Record, error) {
	rows, err := s.ReadLazy(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		rec, err := rows.Record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Exec executes a statement returning no rows.
func (s *Simple) Exec(ctx context.Context, query string, args persist.Arguments) (sql.Result, error) {
	return s.r.exec(ctx, query, args)
}

// Count returns the first column of the first row of query as an
// integer, as produced by SELECT COUNT(*) statements.
func (s *Simple) Count(ctx context.Context, query string, args persist.Arguments) (int64, error) {
	row, err := s.Read(ctx, query, args)
	if err != nil {
		return 0, err
	}
	values, err := row.Values()
	if err != nil {
		return 0, persist.NewMappingError("row", "", err)
	}
	if len(values) == 0 {
		return 0, persist.NewMappingError("row", "", errors.New("count returned no columns"))
	}
	n, err := toInt64(values[0])
	if err != nil {
		return 0, persist.NewMappingError("row", "", err)
	}
	return n, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected count value %T", v)
	}
}

// Record is a row keyed by column name.
type Record map[string]any

// TableRow is a single result row. It holds the underlying statement open
// until it is mapped or closed.
type TableRow struct {
	rows   *sql.Rows
	closed bool
}

// Columns returns the result column names.
func (t *TableRow) Columns() ([]string, error) {
	if t.closed {
		return nil, errRowClosed
	}
	return t.rows.Columns()
}

// Scan copies the row into dest and closes the row.
func (t *TableRow) Scan(dest ...any) error {
	if t.closed {
		return errRowClosed
	}
	defer t.Close()
	return t.rows.Scan(dest...)
}

// Map calls fn with the row and closes it.
func (t *TableRow) Map(fn func(entity.Row) error) error {
	if t.closed {
		return errRowClosed
	}
	defer t.Close()
	return fn(t.rows)
}

// Values returns the column values of the row and closes it. Byte slices
// are returned as strings.
func (t *TableRow) Values() ([]any, error) {
	if t.closed {
		return nil, errRowClosed
	}
	defer t.Close()
	return scanValues(t.rows)
}

// Record returns the row keyed by column name and closes it.
func (t *TableRow) Record() (Record, error) {
	if t.closed {
		return nil, errRowClosed
	}
	defer t.Close()
	return scanRecord(t.rows)
}

// Close releases the row. It is safe to call more than once.
func (t *TableRow) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.rows.Close()
}

// MapRow maps the row into an entity described by desc and closes it.
func MapRow[T any](t *TableRow, desc *entity.Descriptor[T]) (*T, error) {
	var e *T
	err := t.Map(func(row entity.Row) (err error) {
		e, err = desc.ToEntity(row)
		return err
	})
	return e, err
}

var errRowClosed = errors.New("runner: row is closed")

// Rows is a forward-only cursor over raw rows.
type Rows struct {
	rows   *sql.Rows
	query  string
	args   []any
	err    error
	closed bool
}

// Next advances to the next row. The cursor closes itself when the rows
// are exhausted.
func (r *Rows) Next() bool {
	if r.closed {
		return false
	}
	if r.rows.Next() {
		return true
	}
	if err := r.rows.Err(); err != nil {
		r.err = wrapError(r.query, r.args, err)
	}
	r.Close()
	return false
}

// Columns returns the result column names.
func (r *Rows) Columns() ([]string, error) { return r.rows.Columns() }

// Scan copies the current row into dest.
func (r *Rows) Scan(dest ...any) error { return r.rows.Scan(dest...) }

// Values returns the column values of the current row.
func (r *Rows) Values() ([]any, error) { return scanValues(r.rows) }

// Record returns the current row keyed by column name.
func (r *Rows) Record() (Record, error) { return scanRecord(r.rows) }

// Err returns the error encountered while iterating, if any.
func (r *Rows) Err() error { return r.err }

// Close releases the cursor. It is safe to call more than once.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.rows.Close(); err != nil && r.err == nil {
		r.err = err
		return err
	}
	return nil
}

func scanValues(rows *sql.Rows) ([]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(columns))
	dests := make([]any, len(columns))
	for i := range values {
		dests[i] = &values[i]
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, err
	}
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = string(b)
		}
	}
	return values, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values, err := scanValues(rows)
	if err != nil {
		return nil, err
	}
	rec := make(Record, len(columns))
	for i, c := range columns {
		rec[c] = values[i]
	}
	return rec, nil
}
