package dsl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/entity"
)

// Build renders the statement and its bound arguments.
func (q *Query[T]) Build() (string, persist.Arguments, error) {
	b := q.builder()
	b.WriteString(b.desc.BaseSQL())
	q.render(b)
	if len(q.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range q.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(b.column(o.column))
			b.WriteByte(' ')
			b.WriteString(string(o.dir))
		}
	}
	if q.limit >= 0 || q.offset > 0 {
		if b.vendor.LimitOffset == nil {
			return "", persist.EmptyArguments(), persist.NewNoSupportError(b.vendor.Name, "LIMIT/OFFSET")
		}
		if clause := b.vendor.LimitOffset.LimitOffset(q.limit, q.offset); clause != "" {
			if o, ok := b.vendor.LimitOffset.(dialect.OrderedLimitOffset); ok && len(q.orders) == 0 {
				b.WriteString(" ORDER BY ")
				b.WriteString(o.DefaultOrder())
			}
			b.WriteByte(' ')
			b.WriteString(clause)
		}
	}
	return b.result()
}

// BuildCount renders the statement counting the matching rows.
func (q *Query[T]) BuildCount() (string, persist.Arguments, error) {
	b := q.builder()
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(b.desc.Table())
	q.render(b)
	return b.result()
}

func (q *Query[T]) builder() *builder[T] {
	b := &builder[T]{
		desc:   q.src.Descriptor(),
		vendor: q.src.Vendor(),
		tables: make(map[string]struct{}, len(q.joins)),
	}
	for _, j := range q.joins {
		b.tables[strings.ToUpper(j.table)] = struct{}{}
	}
	return b
}

// render writes the joins and the WHERE clause.
func (q *Query[T]) render(b *builder[T]) {
	for _, j := range q.joins {
		b.WriteByte(' ')
		b.WriteString(j.kind)
		b.WriteByte(' ')
		b.WriteString(j.table)
		b.WriteString(" ON (")
		for i, c := range j.conds {
			if i > 0 {
				b.WriteByte(' ')
				b.WriteString(c.link)
				b.WriteByte(' ')
			}
			b.WriteString(b.column(c.column))
			b.WriteString(" = ")
			if strings.IndexByte(c.target, '.') >= 0 {
				b.WriteString(b.column(c.target))
			} else {
				b.WriteString(j.table + "." + c.target)
			}
		}
		b.WriteByte(')')
	}
	for i, g := range q.groups {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteByte(' ')
			b.WriteString(g.link)
			b.WriteByte(' ')
		}
		b.WriteByte('(')
		for k, c := range g.conds {
			if k > 0 {
				b.WriteByte(' ')
				b.WriteString(c.link)
				b.WriteByte(' ')
			}
			b.condition(c)
		}
		b.WriteByte(')')
	}
}

type builder[T any] struct {
	strings.Builder
	desc   *entity.Descriptor[T]
	vendor dialect.Vendor
	tables map[string]struct{}
	args   []persist.Argument
	err    error
}

// column returns the qualified name of a column. Names qualified with a
// joined table are kept as given.
func (b *builder[T]) column(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		table := strings.ToUpper(name[:i])
		if _, ok := b.tables[table]; ok {
			return name
		}
		if table != strings.ToUpper(b.desc.Table()) {
			b.fail(fmt.Errorf("unknown table %q", name[:i]))
			return name
		}
	}
	c, ok := b.desc.Column(name)
	if !ok {
		b.fail(fmt.Errorf("unknown column %q", name))
		return name
	}
	return b.desc.Table() + "." + c.Name()
}

func (b *builder[T]) bind(column string, v any) {
	b.args = append(b.args, persist.Argument{Value: v, Column: column})
}

func (b *builder[T]) condition(c condition) {
	col := b.column(c.column)
	switch c.op {
	case opIsNull:
		b.WriteString(col + " IS NULL")
	case opIsNotNull:
		b.WriteString(col + " IS NOT NULL")
	case opIn, opNotIn:
		if len(c.values) == 0 {
			if c.op == opIn {
				b.WriteString("1 = 0")
			} else {
				b.WriteString("1 = 1")
			}
			return
		}
		b.WriteString(col)
		if c.op == opNotIn {
			b.WriteString(" NOT")
		}
		b.WriteString(" IN (")
		for i, v := range c.values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			b.bind(col, v)
		}
		b.WriteByte(')')
	case opLike, opNotLike:
		if b.vendor.Like == nil {
			b.fail(persist.NewNoSupportError(b.vendor.Name, "LIKE"))
			return
		}
		b.WriteString(col)
		if c.op == opNotLike {
			b.WriteString(" NOT")
		}
		b.WriteString(" LIKE ")
		b.WriteString(b.vendor.Like.Like(c.like))
		b.bind(col, c.values[0])
	default:
		b.WriteString(col + comparisons[c.op])
		b.bind(col, c.values[0])
	}
}

func (b *builder[T]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *builder[T]) result() (string, persist.Arguments, error) {
	if b.err != nil {
		var ns *persist.NoSupportError
		if errors.As(b.err, &ns) {
			return "", persist.EmptyArguments(), b.err
		}
		return "", persist.EmptyArguments(), persist.NewQueryError(b.desc.Label(), "build", b.err)
	}
	return b.String(), persist.NewArguments(b.args...), nil
}
