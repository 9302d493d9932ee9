package client

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/syssam/persist"
	"github.com/syssam/persist/cascade"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/runner"
)

// Tx is a transactional client. Repositories of its Client execute every
// statement on the transaction connection and read past the cache.
// A Tx is not safe for concurrent use.
type Tx struct {
	// Client is bound to the transaction.
	Client *Client

	id     string
	ctx    context.Context
	tx     dialect.Tx
	parent *Client
	wrote  atomic.Bool
	done   atomic.Bool
}

// txDriver is the driver of transactional clients.
type txDriver struct {
	dialect.Driver
	tx dialect.Tx
}

func (d txDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.tx.Exec(ctx, query, args, v)
}

func (d txDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.tx.Query(ctx, query, args, v)
}

func (txDriver) Tx(context.Context) (dialect.Tx, error) {
	return nil, errors.New("client: already in a transaction")
}

// Tx starts a transaction.
func (c *Client) Tx(ctx context.Context) (*Tx, error) {
	if c.tx != nil {
		return nil, errors.New("client: already in a transaction")
	}
	dtx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: starting a transaction: %w", err)
	}
	tx := &Tx{id: uuid.NewString(), ctx: ctx, tx: dtx, parent: c}
	log := c.log.With("tx", tx.id)
	r := runner.New(dtx, c.runner.Vendor(), runner.WithLogger(log))
	tc := &Client{
		config: c.config,
		runner: r,
		engine: cascade.NewEngine(r, c.caches),
		caches: c.caches,
		stats:  c.stats,
		tx:     tx,
	}
	tc.log = log
	tc.driver = txDriver{Driver: c.driver, tx: dtx}
	tx.Client = tc
	log.DebugContext(ctx, "transaction started")
	return tx, nil
}

// ID returns the identifier the transaction is logged with.
func (tx *Tx) ID() string { return tx.id }

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	return tx.end("commit", tx.tx.Commit)
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	return tx.end("rollback", tx.tx.Rollback)
}

// end finishes the transaction with fn. Caches filled by readers outside
// the transaction while it was open are dropped once it ended.
func (tx *Tx) end(op string, fn func() error) error {
	if !tx.done.CompareAndSwap(false, true) {
		return fmt.Errorf("client: %s: transaction already finished", op)
	}
	err := fn()
	if tx.wrote.Load() {
		tx.parent.caches.InvalidateAll(context.WithoutCancel(tx.ctx))
	}
	if err != nil {
		tx.Client.log.WarnContext(tx.ctx, "transaction "+op+" failed", "error", err)
		return err
	}
	tx.Client.log.DebugContext(tx.ctx, "transaction "+op)
	return nil
}

// WithTx runs fn in a transaction. The transaction is committed when fn
// returns nil and rolled back when it returns an error or panics. A failed
// rollback is reported as a persist.RollbackError holding both errors.
func (c *Client) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := c.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return &persist.RollbackError{Err: fmt.Errorf("%w: rolling back transaction: %w", err, rerr)}
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("client: committing transaction: %w", err)
	}
	return nil
}
