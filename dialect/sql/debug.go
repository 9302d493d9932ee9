package sql

import (
	"context"
	"log/slog"

	"github.com/syssam/persist/dialect"
)

// DebugDriver logs every statement before passing it to the wrapped
// driver, which may itself be a decorator such as StatsDriver.
type DebugDriver struct {
	dialect.Driver
	log *slog.Logger
}

// DebugOption configures a DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger statements are written to at debug
// level. The default is slog.Default.
func DebugWithLogger(logger *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		if logger != nil {
			d.log = logger
		}
	}
}

// NewDebugDriver decorates drv with statement logging.
func NewDebugDriver(drv dialect.Driver, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Driver: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func logStatement(ctx context.Context, log *slog.Logger, kind, query string, args any) {
	if !log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	argv, _ := values(args)
	log.DebugContext(ctx, kind, "statement", query, "args", argv)
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.log, "query", query, args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and runs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.log, "exec", query, args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx begins a transaction that logs its statements and outcome.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		d.log.DebugContext(ctx, "begin", "error", err)
		return nil, err
	}
	d.log.DebugContext(ctx, "begin")
	return &debugTx{Tx: tx, log: d.log.With("tx", true)}, nil
}

type debugTx struct {
	dialect.Tx
	log *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.log, "query", query, args)
	return tx.Tx.Query(ctx, query, args, v)
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.log, "exec", query, args)
	return tx.Tx.Exec(ctx, query, args, v)
}

func (tx *debugTx) Commit() error {
	err := tx.Tx.Commit()
	tx.log.Debug("commit", "error", err)
	return err
}

func (tx *debugTx) Rollback() error {
	err := tx.Tx.Rollback()
	tx.log.Debug("rollback", "error", err)
	return err
}

var (
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)
