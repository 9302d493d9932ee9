package dsl

import "slices"

type join struct {
	kind  string
	table string
	conds []joinCond
}

type joinCond struct {
	link   string
	column string // column of the selected entity
	target string // column of the joined table
}

// JoinOn is a join waiting for its first column pair.
type JoinOn[T any] struct {
	q     *Query[T]
	kind  string
	table string
}

// Join adds an inner join on table.
func (q *Query[T]) Join(table string) *JoinOn[T] {
	return &JoinOn[T]{q: q, kind: "JOIN", table: table}
}

// LeftJoin adds a left outer join on table.
func (q *Query[T]) LeftJoin(table string) *JoinOn[T] {
	return &JoinOn[T]{q: q, kind: "LEFT JOIN", table: table}
}

// RightJoin adds a right outer join on table.
func (q *Query[T]) RightJoin(table string) *JoinOn[T] {
	return &JoinOn[T]{q: q, kind: "RIGHT JOIN", table: table}
}

// FullJoin adds a full outer join on table.
func (q *Query[T]) FullJoin(table string) *JoinOn[T] {
	return &JoinOn[T]{q: q, kind: "FULL JOIN", table: table}
}

// On names the column of the selected entity compared by the join.
func (j *JoinOn[T]) On(column string) *JoinCond[T] {
	return &JoinCond[T]{q: j.q, join: j, column: column}
}

// JoinCond is a join column pair waiting for the joined column.
type JoinCond[T any] struct {
	q      *Query[T]
	join   *JoinOn[T] // nil for pairs added to an existing join
	link   string
	column string
}

// Eq compares the column with the column of the joined table. Unqualified
// names are qualified with the joined table.
func (c *JoinCond[T]) Eq(column string) *Joined[T] {
	q := c.q.clone()
	jc := joinCond{link: c.link, column: c.column, target: column}
	if c.join != nil {
		q.joins = append(q.joins, join{kind: c.join.kind, table: c.join.table, conds: []joinCond{jc}})
	} else {
		last := &q.joins[len(q.joins)-1]
		last.conds = append(slices.Clone(last.conds), jc)
	}
	return &Joined[T]{Query: q}
}

// Joined is a query whose last stage is a join. And and Or add column
// pairs to that join; every other stage continues the query.
type Joined[T any] struct {
	*Query[T]
}

// And adds a column pair to the join, joined with AND.
func (j *Joined[T]) And(column string) *JoinCond[T] {
	return &JoinCond[T]{q: j.Query, link: "AND", column: column}
}

// Or adds a column pair to the join, joined with OR.
func (j *Joined[T]) Or(column string) *JoinCond[T] {
	return &JoinCond[T]{q: j.Query, link: "OR", column: column}
}
