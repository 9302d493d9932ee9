package dsl

import (
	"slices"

	"github.com/syssam/persist/dialect"
)

type operator int

const (
	opEq operator = iota
	opNe
	opLt
	opGt
	opLe
	opGe
	opIsNull
	opIsNotNull
	opIn
	opNotIn
	opLike
	opNotLike
)

var comparisons = map[operator]string{
	opEq: " = ?",
	opNe: " <> ?",
	opLt: " < ?",
	opGt: " > ?",
	opLe: " <= ?",
	opGe: " >= ?",
}

type condition struct {
	link   string // ignored for the first condition of a group
	column string
	op     operator
	values []any
	like   dialect.LikeType
}

type group struct {
	link  string // ignored for the first group
	conds []condition
}

// Cond is a condition waiting for its operator.
type Cond[T any] struct {
	q      *Query[T]
	column string
	group  bool
	link   string
}

func (c *Cond[T]) add(op operator, like dialect.LikeType, values ...any) *Query[T] {
	q := c.q.clone()
	cond := condition{link: c.link, column: c.column, op: op, values: values, like: like}
	if c.group || len(q.groups) == 0 {
		q.groups = append(q.groups, group{link: c.link, conds: []condition{cond}})
		return q
	}
	last := &q.groups[len(q.groups)-1]
	last.conds = append(slices.Clone(last.conds), cond)
	return q
}

// Eq matches rows whose column equals v.
func (c *Cond[T]) Eq(v any) *Query[T] { return c.add(opEq, 0, v) }

// Ne matches rows whose column differs from v.
func (c *Cond[T]) Ne(v any) *Query[T] { return c.add(opNe, 0, v) }

// Lt matches rows whose column is less than v.
func (c *Cond[T]) Lt(v any) *Query[T] { return c.add(opLt, 0, v) }

// Gt matches rows whose column is greater than v.
func (c *Cond[T]) Gt(v any) *Query[T] { return c.add(opGt, 0, v) }

// Le matches rows whose column is less than or equal to v.
func (c *Cond[T]) Le(v any) *Query[T] { return c.add(opLe, 0, v) }

// Ge matches rows whose column is greater than or equal to v.
func (c *Cond[T]) Ge(v any) *Query[T] { return c.add(opGe, 0, v) }

// IsNull matches rows whose column is NULL.
func (c *Cond[T]) IsNull() *Query[T] { return c.add(opIsNull, 0) }

// IsNotNull matches rows whose column is not NULL.
func (c *Cond[T]) IsNotNull() *Query[T] { return c.add(opIsNotNull, 0) }

// In matches rows whose column equals one of vs. An empty list matches
// no rows.
func (c *Cond[T]) In(vs ...any) *Query[T] { return c.add(opIn, 0, vs...) }

// NotIn matches rows whose column equals none of vs. An empty list
// matches every row.
func (c *Cond[T]) NotIn(vs ...any) *Query[T] { return c.add(opNotIn, 0, vs...) }

// Like matches rows whose column contains, starts or ends with v,
// depending on t. The wildcards are rendered by the vendor.
func (c *Cond[T]) Like(t dialect.LikeType, v string) *Query[T] { return c.add(opLike, t, v) }

// NotLike is the negation of Like.
func (c *Cond[T]) NotLike(t dialect.LikeType, v string) *Query[T] { return c.add(opNotLike, t, v) }
