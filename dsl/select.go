// Package dsl builds SELECT statements over an entity with a fluent API.
//
// Every stage returns a new value, so a partially built query can be
// shared and extended independently:
//
//	active := dsl.Select(users).Where("ACTIVE").Eq(true)
//	adults, err := active.And("AGE").Ge(18).OrderBy(dsl.Asc, "NAME").ReadAll(ctx)
//
// Conditions chained with And and Or belong to the same parenthesized
// group; AndWhere and OrWhere open a new group:
//
//	Where("A").Eq(1).And("B").Eq(2).OrWhere("C").Eq(3)
//	// WHERE (T.A = ? AND T.B = ?) OR (T.C = ?)
//
// Unqualified column names are resolved against the entity descriptor;
// unknown ones fail the terminal operation with a persist.QueryError.
// Names qualified with a joined table are rendered unchanged.
package dsl

import (
	"context"
	"fmt"
	"slices"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/entity"
)

// Source executes the statements built by a query. It is implemented by
// the client repositories, which route reads through the entity cache.
type Source[T any] interface {
	Descriptor() *entity.Descriptor[T]
	Vendor() dialect.Vendor
	ReadSQL(ctx context.Context, query string, args persist.Arguments) (*T, error)
	ReadOptionalSQL(ctx context.Context, query string, args persist.Arguments) (*T, bool, error)
	ReadAllSQL(ctx context.Context, query string, args persist.Arguments) ([]*T, error)
	CountSQL(ctx context.Context, query string, args persist.Arguments) (int64, error)
}

// Direction is the sort direction of an ORDER BY term.
type Direction string

// Sort directions.
const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

type orderTerm struct {
	dir    Direction
	column string
}

// Query is an immutable SELECT statement over entities of type T.
type Query[T any] struct {
	src    Source[T]
	joins  []join
	groups []group
	orders []orderTerm
	limit  int
	offset int
}

// Select returns a query reading every entity of src.
func Select[T any](src Source[T]) *Query[T] {
	return &Query[T]{src: src, limit: -1}
}

func (q *Query[T]) clone() *Query[T] {
	c := *q
	c.joins = slices.Clone(q.joins)
	c.groups = slices.Clone(q.groups)
	c.orders = slices.Clone(q.orders)
	return &c
}

// Where starts the first condition group. On a query that already has
// conditions it behaves like AndWhere.
func (q *Query[T]) Where(column string) *Cond[T] {
	return &Cond[T]{q: q, column: column, group: true, link: "AND"}
}

// And adds a condition to the current group, joined with AND.
func (q *Query[T]) And(column string) *Cond[T] {
	return &Cond[T]{q: q, column: column, link: "AND"}
}

// Or adds a condition to the current group, joined with OR.
func (q *Query[T]) Or(column string) *Cond[T] {
	return &Cond[T]{q: q, column: column, link: "OR"}
}

// AndWhere opens a new condition group joined to the previous ones with AND.
func (q *Query[T]) AndWhere(column string) *Cond[T] {
	return &Cond[T]{q: q, column: column, group: true, link: "AND"}
}

// OrWhere opens a new condition group joined to the previous ones with OR.
func (q *Query[T]) OrWhere(column string) *Cond[T] {
	return &Cond[T]{q: q, column: column, group: true, link: "OR"}
}

// OrderBy appends sort terms for the given columns.
func (q *Query[T]) OrderBy(dir Direction, columns ...string) *Query[T] {
	c := q.clone()
	for _, col := range columns {
		c.orders = append(c.orders, orderTerm{dir: dir, column: col})
	}
	return c
}

// Limit caps the number of returned rows. A negative n removes the cap.
func (q *Query[T]) Limit(n int) *Query[T] {
	c := q.clone()
	c.limit = n
	return c
}

// Offset skips the first m rows.
func (q *Query[T]) Offset(m int) *Query[T] {
	c := q.clone()
	c.offset = m
	return c
}

// Read returns the first matching entity, or persist.NotFoundError.
func (q *Query[T]) Read(ctx context.Context) (*T, error) {
	query, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.src.ReadSQL(ctx, query, args)
}

// ReadOptional returns the first matching entity, if any.
func (q *Query[T]) ReadOptional(ctx context.Context) (*T, bool, error) {
	query, args, err := q.Build()
	if err != nil {
		return nil, false, err
	}
	return q.src.ReadOptionalSQL(ctx, query, args)
}

// ReadAll returns every matching entity.
func (q *Query[T]) ReadAll(ctx context.Context) ([]*T, error) {
	query, args, err := q.Build()
	if err != nil {
		return nil, err
	}
	return q.src.ReadAllSQL(ctx, query, args)
}

// Count returns the number of matching rows. Ordering and row limits are
// ignored.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	query, args, err := q.BuildCount()
	if err != nil {
		return 0, err
	}
	return q.src.CountSQL(ctx, query, args)
}

// String returns the statement text, or the build error.
func (q *Query[T]) String() string {
	query, args, err := q.Build()
	if err != nil {
		return fmt.Sprintf("invalid query: %v", err)
	}
	return query + " " + args.String()
}
