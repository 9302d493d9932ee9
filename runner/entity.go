package runner

import (
	"context"
	"errors"
	"iter"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/entity"
)

// Entity runs statements whose rows map to entities of type T.
type Entity[T any] struct {
	r    *Runner
	desc *entity.Descriptor[T]
}

// NewEntity returns an entity runner for desc.
func NewEntity[T any](r *Runner, desc *entity.Descriptor[T]) *Entity[T] {
	return &Entity[T]{r: r, desc: desc}
}

// Descriptor returns the descriptor rows are mapped with.
func (e *Entity[T]) Descriptor() *entity.Descriptor[T] { return e.desc }

// Runner returns the underlying runner.
func (e *Entity[T]) Runner() *Runner { return e.r }

// Read returns the entity of the first row of query. It fails with
// persist.NotFoundError when the query returns no rows.
func (e *Entity[T]) Read(ctx context.Context, query string, args persist.Arguments) (*T, error) {
	v, ok, err := e.ReadOptional(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, persist.NewNotFoundError(e.desc.Label(), args.Values()...)
	}
	return v, nil
}

// ReadOptional is like Read but reports a missing row with false.
func (e *Entity[T]) ReadOptional(ctx context.Context, query string, args persist.Arguments) (_ *T, _ bool, rerr error) {
	rows, err := e.r.query(ctx, query, args)
	if err != nil {
		return nil, false, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, false, wrapError(query, args.Values(), err)
		}
		return nil, false, nil
	}
	v, err := e.desc.ToEntity(rows)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// ReadAll returns the entities of every row of query, in row order.
func (e *Entity[T]) ReadAll(ctx context.Context, query string, args persist.Arguments) (_ []*T, rerr error) {
	rows, err := e.r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	var (
		m  *entity.Mapper[T]
		vs = make([]*T, 0)
	)
	for rows.Next() {
		if m == nil {
			if m, err = e.mapper(rows); err != nil {
				return nil, err
			}
		}
		v, err := m.Map(rows)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError(query, args.Values(), err)
	}
	return vs, nil
}

// ReadLazy returns a forward-only cursor over the entities of query. The
// cursor must be consumed or closed to release the statement.
func (e *Entity[T]) ReadLazy(ctx context.Context, query string, args persist.Arguments) (*Cursor[T], error) {
	rows, err := e.r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return &Cursor[T]{e: e, rows: rows, query: query, args: args.Values()}, nil
}

func (e *Entity[T]) mapper(rows *sql.Rows) (*entity.Mapper[T], error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, persist.NewMappingError(e.desc.Label(), "", err)
	}
	return e.desc.Mapper(columns)
}

// Insert writes v and returns a delegate holding it, with the values of
// generated columns merged in. Generated keys are read with RETURNING when
// the vendor supports it, and otherwise with LastInsertId for a single
// integer generated column.
func (e *Entity[T]) Insert(ctx context.Context, v *T) (*entity.Delegate[T], error) {
	d := entity.Wrap(e.desc, v)
	gen := e.desc.GeneratedColumns()
	args := e.desc.InsertArguments(v)
	if len(gen) > 0 && e.r.vendor.Returning {
		values, err := e.returning(ctx, args)
		if err != nil {
			return nil, err
		}
		if err := d.SetGenerated(values); err != nil {
			return nil, err
		}
		return d, nil
	}
	res, err := e.r.exec(ctx, e.desc.InsertSQL(), args)
	if err != nil {
		return nil, err
	}
	if len(gen) == 1 && (gen[0].Type() == entity.TypeInt || gen[0].Type() == entity.TypeUint) {
		id, err := res.LastInsertId()
		if err != nil {
			e.r.log.DebugContext(ctx, "generated key not available", "entity", e.desc.Label(), "error", err)
			return d, nil
		}
		if err := d.SetGenerated(map[string]any{gen[0].Name(): id}); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (e *Entity[T]) returning(ctx context.Context, args persist.Arguments) (_ map[string]any, rerr error) {
	query := e.desc.ReturningSQL()
	rows, err := e.r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer func() { rerr = errors.Join(rerr, rows.Close()) }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, wrapError(query, args.Values(), err)
		}
		return nil, persist.NewMappingError(e.desc.Label(), "", errors.New("insert returned no generated values"))
	}
	return e.desc.ScanGenerated(rows)
}

// WriteOption configures Update and Delete.
type WriteOption func(*writeOptions)

type writeOptions struct {
	requireAffected bool
}

// RequireAffected makes a write that changed no rows fail with
// persist.NotFoundError.
func RequireAffected() WriteOption {
	return func(o *writeOptions) { o.requireAffected = true }
}

// Update writes the non-key columns of v to the row with its keys.
func (e *Entity[T]) Update(ctx context.Context, v *T, opts ...WriteOption) error {
	return e.write(ctx, "update", e.desc.UpdateSQL(), e.desc.UpdateArguments(v), v, opts)
}

// Delete removes the row with the keys of v.
func (e *Entity[T]) Delete(ctx context.Context, v *T, opts ...WriteOption) error {
	return e.write(ctx, "delete", e.desc.DeleteSQL(), e.desc.KeyArguments(v), v, opts)
}

func (e *Entity[T]) write(ctx context.Context, op, query string, args persist.Arguments, v *T, opts []WriteOption) error {
	if len(e.desc.KeyColumns()) == 0 {
		return persist.NewQueryError(e.desc.Label(), op, errors.New("entity declares no key columns"))
	}
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	res, err := e.r.exec(ctx, query, args)
	if err != nil {
		return err
	}
	if o.requireAffected {
		n, err := res.RowsAffected()
		if err != nil {
			return wrapError(query, args.Values(), err)
		}
		if n == 0 {
			return persist.NewNotFoundError(e.desc.Label(), e.desc.KeyArguments(v).Values()...)
		}
	}
	return nil
}

// Exec executes a statement returning no rows.
func (e *Entity[T]) Exec(ctx context.Context, query string, args persist.Arguments) (sql.Result, error) {
	return e.r.exec(ctx, query, args)
}

// Cursor is a forward-only iterator over mapped entities.
type Cursor[T any] struct {
	e      *Entity[T]
	rows   *sql.Rows
	mapper *entity.Mapper[T]
	query  string
	args   []any
	cur    *T
	err    error
	closed bool
}

// Next maps the next row. It returns false and closes the cursor when the
// rows are exhausted or mapping failed.
func (c *Cursor[T]) Next() bool {
	if c.closed {
		return false
	}
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.err = wrapError(c.query, c.args, err)
		}
		c.Close()
		return false
	}
	if c.mapper == nil {
		m, err := c.e.mapper(c.rows)
		if err != nil {
			c.err = err
			c.Close()
			return false
		}
		c.mapper = m
	}
	v, err := c.mapper.Map(c.rows)
	if err != nil {
		c.err = err
		c.Close()
		return false
	}
	c.cur = v
	return true
}

// Entity returns the entity mapped by the last call to Next.
func (c *Cursor[T]) Entity() *T { return c.cur }

// Err returns the error that stopped the iteration, if any.
func (c *Cursor[T]) Err() error { return c.err }

// Close releases the statement. It is safe to call more than once.
func (c *Cursor[T]) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.rows.Close(); err != nil {
		if c.err == nil {
			c.err = err
		}
		return err
	}
	return nil
}

// All returns an iterator over the remaining entities. The cursor is
// closed when the loop ends, including on early break. An iteration error
// is yielded last with a nil entity.
func (c *Cursor[T]) All() iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		defer c.Close()
		for c.Next() {
			if !yield(c.cur, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}
