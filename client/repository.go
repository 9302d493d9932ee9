package client

import (
	"context"
	"fmt"
	"reflect"

	"github.com/syssam/persist"
	"github.com/syssam/persist/cache"
	"github.com/syssam/persist/cascade"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/dialect/sql"
	"github.com/syssam/persist/dsl"
	"github.com/syssam/persist/entity"
	"github.com/syssam/persist/runner"
)

// Repository reads and writes the entities of type T.
type Repository[T any] struct {
	c    *Client
	desc *entity.Descriptor[T]
	e    *runner.Entity[T]
}

var _ dsl.Source[struct{}] = (*Repository[struct{}])(nil)

// For returns the repository of the registered entity type T, or a
// persist.NoCompatibleRunnerError when T has no registered descriptor.
func For[T any](c *Client) (*Repository[T], error) {
	desc, ok := entity.Lookup[T]()
	if !ok {
		return nil, persist.NewNoCompatibleRunnerError(reflect.TypeFor[T]().String())
	}
	return NewRepository(c, desc), nil
}

// MustFor is like For but panics on error.
func MustFor[T any](c *Client) *Repository[T] {
	r, err := For[T](c)
	if err != nil {
		panic(err)
	}
	return r
}

// NewRepository returns a repository of the entities described by desc.
func NewRepository[T any](c *Client, desc *entity.Descriptor[T]) *Repository[T] {
	return &Repository[T]{c: c, desc: desc, e: runner.NewEntity(c.runner, desc)}
}

// Descriptor returns the descriptor of T.
func (r *Repository[T]) Descriptor() *entity.Descriptor[T] { return r.desc }

// Vendor returns the vendor statements are rendered for.
func (r *Repository[T]) Vendor() dialect.Vendor { return r.c.runner.Vendor() }

func (r *Repository[T]) cache() (*cache.Cache[T], bool) {
	if !r.c.cached(r.desc.Cacheable()) {
		return nil, false
	}
	return cache.For(r.c.caches, r.desc), true
}

func (r *Repository[T]) keys(op string, keys []any) (persist.Arguments, error) {
	if n := len(r.desc.KeyColumns()); n != len(keys) {
		return persist.EmptyArguments(), persist.NewQueryError(r.desc.Label(), op, fmt.Errorf("got %d key values, want %d", len(keys), n))
	}
	return persist.Args(keys...), nil
}

// Read returns the entity with the given key values, in key column order.
// It fails with persist.NotFoundError when no row matches.
func (r *Repository[T]) Read(ctx context.Context, keys ...any) (*T, error) {
	args, err := r.keys("read", keys)
	if err != nil {
		return nil, err
	}
	return r.ReadSQL(ctx, r.desc.ReadSQL(), args)
}

// ReadOptional is like Read, but reports a missing row with false.
func (r *Repository[T]) ReadOptional(ctx context.Context, keys ...any) (*T, bool, error) {
	args, err := r.keys("read", keys)
	if err != nil {
		return nil, false, err
	}
	return r.ReadOptionalSQL(ctx, r.desc.ReadSQL(), args)
}

// ReadEntity returns the stored version of v, looked up by its keys.
func (r *Repository[T]) ReadEntity(ctx context.Context, v *T) (*T, error) {
	return r.ReadSQL(ctx, r.desc.ReadSQL(), r.desc.KeyArguments(v))
}

// ReadOptionalEntity is like ReadEntity, but reports a missing row with false.
func (r *Repository[T]) ReadOptionalEntity(ctx context.Context, v *T) (*T, bool, error) {
	return r.ReadOptionalSQL(ctx, r.desc.ReadSQL(), r.desc.KeyArguments(v))
}

// ReadAll returns every entity of the table in row order.
func (r *Repository[T]) ReadAll(ctx context.Context) ([]*T, error) {
	load := func(ctx context.Context) ([]*T, error) {
		return r.e.ReadAll(ctx, r.desc.BaseSQL(), persist.EmptyArguments())
	}
	if c, ok := r.cache(); ok {
		return c.GetAll(ctx, load)
	}
	return load(ctx)
}

// ReadLazy returns a cursor over every entity of the table. The cursor
// holds a connection until it is exhausted or closed; it is never cached.
func (r *Repository[T]) ReadLazy(ctx context.Context) (*runner.Cursor[T], error) {
	return r.e.ReadLazy(ctx, r.desc.BaseSQL(), persist.EmptyArguments())
}

// ReadSQL returns the entity read by query. It fails with
// persist.NotFoundError when no row matches.
func (r *Repository[T]) ReadSQL(ctx context.Context, query string, args persist.Arguments) (*T, error) {
	if c, ok := r.cache(); ok {
		return c.Get(ctx, query, args, func(ctx context.Context) (*T, error) {
			return r.e.Read(ctx, query, args)
		})
	}
	return r.e.Read(ctx, query, args)
}

// ReadOptionalSQL returns the entity read by query, if any.
func (r *Repository[T]) ReadOptionalSQL(ctx context.Context, query string, args persist.Arguments) (*T, bool, error) {
	if c, ok := r.cache(); ok {
		return c.GetOptional(ctx, query, args, func(ctx context.Context) (*T, error) {
			return r.e.Read(ctx, query, args)
		})
	}
	return r.e.ReadOptional(ctx, query, args)
}

// ReadAllSQL returns the entities read by query in row order.
func (r *Repository[T]) ReadAllSQL(ctx context.Context, query string, args persist.Arguments) ([]*T, error) {
	if c, ok := r.cache(); ok {
		return c.GetList(ctx, query, args, func(ctx context.Context) ([]*T, error) {
			return r.e.ReadAll(ctx, query, args)
		})
	}
	return r.e.ReadAll(ctx, query, args)
}

// CountSQL returns the integer in the first column of the row read by query.
func (r *Repository[T]) CountSQL(ctx context.Context, query string, args persist.Arguments) (int64, error) {
	return r.c.runner.Simple().Count(ctx, query, args)
}

// Select starts a query over the entities of the repository.
func (r *Repository[T]) Select() *dsl.Query[T] {
	return dsl.Select[T](r)
}

// Insert writes v and the related entities its relationships cascade
// inserts to. The returned delegate holds v with its generated values.
func (r *Repository[T]) Insert(ctx context.Context, v *T) (*entity.Delegate[T], error) {
	r.c.wrote()
	return cascade.NewInsert(r.c.engine, r.desc).ApplyAndReturn(ctx, v)
}

// InsertAll inserts every entity in order, stopping at the first error.
func (r *Repository[T]) InsertAll(ctx context.Context, vs ...*T) error {
	return r.all(ctx, cascade.NewInsert(r.c.engine, r.desc), vs)
}

// Update writes the non-key columns of v and cascades the update.
func (r *Repository[T]) Update(ctx context.Context, v *T) error {
	r.c.wrote()
	return cascade.NewUpdate(r.c.engine, r.desc).Apply(ctx, v)
}

// UpdateAll updates every entity in order, stopping at the first error.
func (r *Repository[T]) UpdateAll(ctx context.Context, vs ...*T) error {
	return r.all(ctx, cascade.NewUpdate(r.c.engine, r.desc), vs)
}

// Delete removes v and cascades the deletion.
func (r *Repository[T]) Delete(ctx context.Context, v *T) error {
	r.c.wrote()
	return cascade.NewDelete(r.c.engine, r.desc).Apply(ctx, v)
}

// DeleteAll deletes every entity in order, stopping at the first error.
func (r *Repository[T]) DeleteAll(ctx context.Context, vs ...*T) error {
	return r.all(ctx, cascade.NewDelete(r.c.engine, r.desc), vs)
}

func (r *Repository[T]) all(ctx context.Context, a cascade.Applier[T], vs []*T) error {
	if len(vs) == 0 {
		return nil
	}
	r.c.wrote()
	for _, v := range vs {
		if err := a.Apply(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the related entities of v into it.
func (r *Repository[T]) Load(ctx context.Context, v *T) error {
	return cascade.Load(ctx, r.c.engine, r.desc, v)
}

// LoadAll reads the related entities of every entity in vs, batching the
// reads of each relationship.
func (r *Repository[T]) LoadAll(ctx context.Context, vs []*T) error {
	return cascade.LoadAll(ctx, r.c.engine, r.desc, vs)
}

// Exec executes a statement returning no rows. The cache of T is dropped
// afterwards.
func (r *Repository[T]) Exec(ctx context.Context, query string, args persist.Arguments) (sql.Result, error) {
	r.c.wrote()
	res, err := r.e.Exec(ctx, query, args)
	cache.Invalidate[T](ctx, r.c.caches)
	return res, err
}
