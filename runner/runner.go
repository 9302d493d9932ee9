// Package runner executes SQL statements and maps their results.
//
// A Runner binds statements to a dialect.ExecQuerier, which is either a
// pooled driver or a transaction. Simple returns raw rows; Entity maps rows
// into entities through their descriptor.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/entity"
)

// Runner executes statements on one ExecQuerier.
type Runner struct {
	ex     dialect.ExecQuerier
	vendor dialect.Vendor
	log    *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger statements are logged to at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// New returns a runner executing on ex with the rendering rules of vendor.
func New(ex dialect.ExecQuerier, vendor dialect.Vendor, opts ...Option) *Runner {
	r := &Runner{
		ex:     ex,
		vendor: vendor,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open returns a runner for drv using the vendor of its dialect. It fails
// with a persist.NoSupportError when no vendor is registered for it.
func Open(drv dialect.Driver, opts ...Option) (*Runner, error) {
	v, ok := dialect.Lookup(drv.Dialect())
	if !ok {
		return nil, persist.NewNoSupportError(drv.Dialect(), "statement rendering")
	}
	return New(drv, v, opts...), nil
}

// ForDriver is like Open, but unknown dialects fall back to the standard
// vendor with a warning.
func ForDriver(drv dialect.Driver, opts ...Option) *Runner {
	r, err := Open(drv, opts...)
	if err == nil {
		return r
	}
	r = New(drv, dialect.MustLookup(dialect.Standard), opts...)
	r.log.Warn("runner: using the standard vendor", "dialect", drv.Dialect(), "error", err)
	return r
}

// Vendor returns the vendor the runner renders statements for.
func (r *Runner) Vendor() dialect.Vendor { return r.vendor }

// Logger returns the runner logger.
func (r *Runner) Logger() *slog.Logger { return r.log }

// With returns a copy of the runner executing on ex.
func (r *Runner) With(ex dialect.ExecQuerier) *Runner {
	c := *r
	c.ex = ex
	return &c
}

// Simple returns the raw row runner.
func (r *Runner) Simple() *Simple { return &Simple{r: r} }

func (r *Runner) query(ctx context.Context, query string, args persist.Arguments) (*sql.Rows, error) {
	query = r.vendor.Rebind(query)
	argv := args.Values()
	r.log.DebugContext(ctx, "query", "sql", query, "args", argv)
	rows := &sql.Rows{}
	if err := r.ex.Query(ctx, query, argv, rows); err != nil {
		return nil, wrapError(query, argv, err)
	}
	return rows, nil
}

func (r *Runner) exec(ctx context.Context, query string, args persist.Arguments) (sql.Result, error) {
	query = r.vendor.Rebind(query)
	argv := args.Values()
	r.log.DebugContext(ctx, "exec", "sql", query, "args", argv)
	var res sql.Result
	if err := r.ex.Exec(ctx, query, argv, &res); err != nil {
		return nil, wrapError(query, argv, err)
	}
	return res, nil
}

func wrapError(query string, args []any, err error) error {
	if sql.IsConstraintError(err) {
		return persist.NewConstraintError(query, args, err)
	}
	return persist.NewSQLExecutionError(query, args, err)
}

// Kind identifies a runner implementation.
type Kind int

// Runner kinds.
const (
	KindSimple Kind = iota + 1
	KindEntity
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindEntity:
		return "entity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var simpleTypes = map[reflect.Type]struct{}{
	reflect.TypeFor[TableRow]():  {},
	reflect.TypeFor[*TableRow](): {},
}

// Resolve returns the runner kind serving values of type t: raw rows are
// served by the simple runner and registered entities by the entity
// runner. Other types fail with persist.NoCompatibleRunnerError.
func Resolve(t reflect.Type) (Kind, error) {
	if t == nil {
		return 0, persist.NewNoCompatibleRunnerError("<nil>")
	}
	if _, ok := simpleTypes[t]; ok {
		return KindSimple, nil
	}
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if entity.Registered(base) {
		return KindEntity, nil
	}
	return 0, persist.NewNoCompatibleRunnerError(t.String())
}

// ForEntity returns the entity runner of the registered type T.
func ForEntity[T any](r *Runner) (*Entity[T], error) {
	desc, ok := entity.Lookup[T]()
	if !ok {
		return nil, persist.NewNoCompatibleRunnerError(reflect.TypeFor[T]().String())
	}
	return NewEntity(r, desc), nil
}
