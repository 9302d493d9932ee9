package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
)

// Driver is a dialect.Driver on top of a *sql.DB.
type Driver struct {
	Conn
	dialect string
}

var _ dialect.Driver = (*Driver)(nil)

// NewDriver returns a Driver executing through c.
func NewDriver(dialect string, c Conn) *Driver {
	return &Driver{Conn: c, dialect: dialect}
}

// Open opens the database using the registered opener of driverName, or
// database/sql.Open when none is registered. The dialect is taken from the
// opener, falling back to the driver name.
func Open(driverName, source string) (*Driver, error) {
	return OpenSource(Source{Driver: driverName, DSN: source})
}

// OpenDB wraps an open *sql.DB.
func OpenDB(dialect string, db *sql.DB) *Driver {
	return NewDriver(dialect, Conn{ExecQuerier: db, dialect: dialect})
}

// DB returns the wrapped *sql.DB.
func (d Driver) DB() *sql.DB {
	return d.ExecQuerier.(*sql.DB)
}

// Dialect returns the canonical name of the dialect the driver was opened
// with. Names carrying a vendor prefix, such as "postgres-otel", resolve to
// that vendor.
func (d Driver) Dialect() string {
	if v, ok := dialect.Lookup(d.dialect); ok {
		return v.Name
	}
	for _, v := range dialect.Vendors() {
		if strings.HasPrefix(d.dialect, v.Name) {
			return v.Name
		}
	}
	return d.dialect
}

// Tx begins a transaction with the default isolation level.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx begins a transaction with the given options.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.DB().BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{ExecQuerier: tx, dialect: d.dialect}, Tx: tx}, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.DB().Close() }

// Tx is a dialect.Tx bound to one *sql.Tx.
type Tx struct {
	Conn
	driver.Tx
}

// ExecQuerier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn adapts an ExecQuerier to the Exec/Query contract of
// dialect.ExecQuerier. Arguments are given as []any or persist.Arguments.
type Conn struct {
	ExecQuerier
	dialect string
}

// Exec runs a statement. v is nil or a *sql.Result receiving the result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) (err error) {
	argv, err := values(args)
	if err != nil {
		return err
	}
	var dst *sql.Result
	switch v := v.(type) {
	case nil:
	case *sql.Result:
		dst = v
	default:
		return fmt.Errorf("dialect/sql: exec: unexpected destination %T, want *sql.Result", v)
	}
	ex, release, err := c.session(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if release != nil {
		defer func() { err = errors.Join(err, release()) }()
	}
	res, err := ex.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if dst != nil {
		*dst = res
	}
	return nil
}

// Query runs a query and stores its cursor in v, which must be a *Rows.
// When the statement needed a dedicated connection, closing the rows
// releases it.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	dst, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: query: unexpected destination %T, want *sql.Rows", v)
	}
	argv, err := values(args)
	if err != nil {
		return err
	}
	ex, release, err := c.session(ctx)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows, err := ex.QueryContext(ctx, query, argv...)
	if err != nil {
		if release != nil {
			err = errors.Join(err, release())
		}
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	if release != nil {
		*dst = Rows{releasingRows{ColumnScanner: rows, release: release}}
		return nil
	}
	*dst = Rows{rows}
	return nil
}

func values(args any) ([]any, error) {
	switch args := args.(type) {
	case nil:
		return nil, nil
	case []any:
		return args, nil
	case persist.Arguments:
		return args.Values(), nil
	default:
		return nil, fmt.Errorf("dialect/sql: unexpected arguments %T, want []any", args)
	}
}

type (
	// Rows holds a cursor by value without copying the lock of *sql.Rows.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// NullBool is an alias to sql.NullBool.
	NullBool = sql.NullBool
	// NullInt64 is an alias to sql.NullInt64.
	NullInt64 = sql.NullInt64
	// NullString is an alias to sql.NullString.
	NullString = sql.NullString
	// NullFloat64 is an alias to sql.NullFloat64.
	NullFloat64 = sql.NullFloat64
	// NullTime is an alias to sql.NullTime.
	NullTime = sql.NullTime
	// TxOptions is an alias to sql.TxOptions.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the cursor part of *sql.Rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

type releasingRows struct {
	ColumnScanner
	release func() error
}

func (r releasingRows) Close() error {
	return errors.Join(r.ColumnScanner.Close(), r.release())
}
