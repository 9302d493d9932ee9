package entity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/persist"
)

// Row is the cursor a descriptor maps from. It is satisfied by *sql.Rows
// and the runtime's dialect/sql.Rows.
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

type settings struct {
	label     string
	factory   any
	baseSQL   string
	keysWhere string
	insertSQL string
	updateSQL string
	deleteSQL string
	cacheable bool
}

// Option configures a Descriptor.
type Option func(*settings)

// Label sets the name used in errors and logs. Defaults to the Go type name.
func Label(name string) Option {
	return func(s *settings) { s.label = name }
}

// Factory sets the constructor of new empty entities. Defaults to new(T).
func Factory[T any](fn func() *T) Option {
	return func(s *settings) { s.factory = fn }
}

// BaseSQL sets the SELECT statement without predicates.
func BaseSQL(query string) Option {
	return func(s *settings) { s.baseSQL = query }
}

// KeysWhere sets the predicate appended to BaseSQL to read by keys.
func KeysWhere(query string) Option {
	return func(s *settings) { s.keysWhere = query }
}

// InsertSQL sets the INSERT statement.
func InsertSQL(query string) Option {
	return func(s *settings) { s.insertSQL = query }
}

// UpdateSQL sets the UPDATE statement.
func UpdateSQL(query string) Option {
	return func(s *settings) { s.updateSQL = query }
}

// DeleteSQL sets the DELETE statement.
func DeleteSQL(query string) Option {
	return func(s *settings) { s.deleteSQL = query }
}

// Cacheable enables the read cache for the entity.
func Cacheable() Option {
	return func(s *settings) { s.cacheable = true }
}

// Descriptor holds everything the runtime needs to map entity type T:
// its columns, fixed SQL statements and a factory. It is immutable after
// construction and safe for concurrent use.
type Descriptor[T any] struct {
	label     string
	table     string
	columns   []*Column[T]
	index     map[string]int
	factory   func() *T
	baseSQL   string
	keysWhere string
	insertSQL string
	updateSQL string
	deleteSQL string
	cacheable bool
}

// New returns a descriptor for table. Statements not supplied through
// options are derived from the table and columns with '?' placeholders.
func New[T any](table string, columns []*Column[T], opts ...Option) (*Descriptor[T], error) {
	if table == "" {
		return nil, errors.New("entity: empty table name")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("entity: table %s declares no columns", table)
	}
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	d := &Descriptor[T]{
		label:     s.label,
		table:     table,
		columns:   columns,
		index:     make(map[string]int, len(columns)),
		factory:   func() *T { return new(T) },
		cacheable: s.cacheable,
	}
	if d.label == "" {
		d.label = reflect.TypeFor[T]().Name()
	}
	if fn, ok := s.factory.(func() *T); ok && fn != nil {
		d.factory = fn
	}
	for i, c := range columns {
		k := strings.ToUpper(c.name)
		if _, ok := d.index[k]; ok {
			return nil, fmt.Errorf("entity: duplicate column %s.%s", table, c.name)
		}
		d.index[k] = i
	}
	d.baseSQL = or(s.baseSQL, d.selectSQL())
	d.keysWhere = or(s.keysWhere, d.whereKeys(true))
	d.insertSQL = or(s.insertSQL, d.insertStmt())
	d.updateSQL = or(s.updateSQL, d.updateStmt())
	d.deleteSQL = or(s.deleteSQL, "DELETE FROM "+table+d.whereKeys(false))
	return d, nil
}

// MustNew is like New but panics on error.
func MustNew[T any](table string, columns []*Column[T], opts ...Option) *Descriptor[T] {
	d, err := New(table, columns, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (d *Descriptor[T]) selectSQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	for i, c := range d.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.table)
		b.WriteByte('.')
		b.WriteString(c.name)
	}
	b.WriteString(" FROM ")
	b.WriteString(d.table)
	return b.String()
}

func (d *Descriptor[T]) whereKeys(qualified bool) string {
	var b strings.Builder
	for _, c := range d.keys() {
		if b.Len() == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		if qualified {
			b.WriteString(d.table)
			b.WriteByte('.')
		}
		b.WriteString(c.name)
		b.WriteString(" = ?")
	}
	return b.String()
}

func (d *Descriptor[T]) insertStmt() string {
	var names, marks []string
	for _, c := range d.columns {
		if !c.generated {
			names = append(names, c.name)
			marks = append(marks, "?")
		}
	}
	if len(names) == 0 {
		return "INSERT INTO " + d.table + " DEFAULT VALUES"
	}
	return "INSERT INTO " + d.table + " (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"
}

func (d *Descriptor[T]) updateStmt() string {
	sets := make([]string, 0, len(d.columns))
	for _, c := range d.setColumns() {
		sets = append(sets, c.name+" = ?")
	}
	return "UPDATE " + d.table + " SET " + strings.Join(sets, ", ") + d.whereKeys(false)
}

func (d *Descriptor[T]) keys() []*Column[T] {
	var ks []*Column[T]
	for _, c := range d.columns {
		if c.key {
			ks = append(ks, c)
		}
	}
	return ks
}

// setColumns returns the columns assigned by UPDATE: the non-key columns,
// or the keys themselves when every column is a key.
func (d *Descriptor[T]) setColumns() []*Column[T] {
	var cs []*Column[T]
	for _, c := range d.columns {
		if !c.key {
			cs = append(cs, c)
		}
	}
	if len(cs) == 0 {
		return d.keys()
	}
	return cs
}

// Label returns the entity name used in errors and logs.
func (d *Descriptor[T]) Label() string { return d.label }

// Table returns the table name.
func (d *Descriptor[T]) Table() string { return d.table }

// Columns returns the declared columns in order.
func (d *Descriptor[T]) Columns() []*Column[T] { return d.columns }

// ColumnNames returns the declared column names in order.
func (d *Descriptor[T]) ColumnNames() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.name
	}
	return names
}

// Column returns the column named name, matched case-insensitively.
// A table qualifier ("T.NAME") is accepted.
func (d *Descriptor[T]) Column(name string) (*Column[T], bool) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	i, ok := d.index[strings.ToUpper(name)]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// KeyColumns returns the primary key columns in order.
func (d *Descriptor[T]) KeyColumns() []*Column[T] { return d.keys() }

// GeneratedColumns returns the columns generated on insert.
func (d *Descriptor[T]) GeneratedColumns() []*Column[T] {
	var cs []*Column[T]
	for _, c := range d.columns {
		if c.generated {
			cs = append(cs, c)
		}
	}
	return cs
}

// Cacheable reports whether reads of the entity are cached.
func (d *Descriptor[T]) Cacheable() bool { return d.cacheable }

// BaseSQL returns the SELECT statement without predicates.
func (d *Descriptor[T]) BaseSQL() string { return d.baseSQL }

// KeysWhere returns the key predicate appended to BaseSQL.
func (d *Descriptor[T]) KeysWhere() string { return d.keysWhere }

// ReadSQL returns BaseSQL followed by KeysWhere.
func (d *Descriptor[T]) ReadSQL() string { return d.baseSQL + d.keysWhere }

// InsertSQL returns the INSERT statement.
func (d *Descriptor[T]) InsertSQL() string { return d.insertSQL }

// UpdateSQL returns the UPDATE statement.
func (d *Descriptor[T]) UpdateSQL() string { return d.updateSQL }

// DeleteSQL returns the DELETE statement.
func (d *Descriptor[T]) DeleteSQL() string { return d.deleteSQL }

// NewEntity returns a new empty entity.
func (d *Descriptor[T]) NewEntity() *T { return d.factory() }

// NewDelegate returns an unloaded delegate for the entity. No I/O is done.
func (d *Descriptor[T]) NewDelegate() *Delegate[T] { return &Delegate[T]{desc: d} }

func (d *Descriptor[T]) arguments(e *T, cs []*Column[T]) persist.Arguments {
	args := make([]persist.Argument, len(cs))
	for i, c := range cs {
		args[i] = persist.Argument{Value: c.get(e), Column: c.name}
	}
	return persist.NewArguments(args...)
}

// KeyArguments returns the key values of e bound to KeysWhere and DeleteSQL.
func (d *Descriptor[T]) KeyArguments(e *T) persist.Arguments {
	return d.arguments(e, d.keys())
}

// InsertArguments returns the values of e bound to InsertSQL.
func (d *Descriptor[T]) InsertArguments(e *T) persist.Arguments {
	var cs []*Column[T]
	for _, c := range d.columns {
		if !c.generated {
			cs = append(cs, c)
		}
	}
	return d.arguments(e, cs)
}

// UpdateArguments returns the values of e bound to UpdateSQL: the assigned
// columns followed by the keys.
func (d *Descriptor[T]) UpdateArguments(e *T) persist.Arguments {
	return d.arguments(e, d.setColumns()).Concat(d.KeyArguments(e))
}

// Values returns every column value of e in declared order.
func (d *Descriptor[T]) Values(e *T) persist.Arguments {
	return d.arguments(e, d.columns)
}

// Value returns the value of the named column of e.
func (d *Descriptor[T]) Value(e *T, column string) (any, error) {
	c, ok := d.Column(column)
	if !ok {
		return nil, persist.NewMappingError(d.label, column, errors.New("unknown column"))
	}
	return c.get(e), nil
}

// SetValue assigns v to the named column of e.
func (d *Descriptor[T]) SetValue(e *T, column string, v any) error {
	c, ok := d.Column(column)
	if !ok {
		return persist.NewMappingError(d.label, column, errors.New("unknown column"))
	}
	if err := c.set(e, v); err != nil {
		return persist.NewMappingError(d.label, c.name, err)
	}
	return nil
}

// MergeGenerated assigns generated key values, keyed by column name, to e.
func (d *Descriptor[T]) MergeGenerated(e *T, values map[string]any) error {
	for name, v := range values {
		if err := d.SetValue(e, name, v); err != nil {
			return err
		}
	}
	return nil
}

// Mapper holds the column resolution of one result set.
type Mapper[T any] struct {
	desc *Descriptor[T]
	cols []*Column[T] // nil for result columns not declared by T
}

// Mapper resolves the result columns against the declared ones. Every
// declared column must be present in the result.
func (d *Descriptor[T]) Mapper(columns []string) (*Mapper[T], error) {
	m := &Mapper[T]{
		desc: d,
		cols: make([]*Column[T], len(columns)),
	}
	seen := make([]bool, len(d.columns))
	for i, name := range columns {
		c, ok := d.Column(name)
		if !ok {
			continue
		}
		idx := d.index[strings.ToUpper(c.name)]
		if seen[idx] {
			continue
		}
		seen[idx] = true
		m.cols[i] = c
	}
	for i, ok := range seen {
		if !ok {
			return nil, persist.NewMappingError(d.label, d.columns[i].name, errors.New("column missing from result"))
		}
	}
	return m, nil
}

// Map scans the current row into a new entity.
func (m *Mapper[T]) Map(row Row) (*T, error) {
	dests := make([]any, len(m.cols))
	for i, c := range m.cols {
		if c == nil {
			dests[i] = new(any)
		} else {
			dests[i] = c.typ.dest()
		}
	}
	if err := row.Scan(dests...); err != nil {
		return nil, persist.NewMappingError(m.desc.label, "", err)
	}
	e := m.desc.factory()
	for i, c := range m.cols {
		if c == nil {
			continue
		}
		if err := c.set(e, scanned(dests[i])); err != nil {
			return nil, persist.NewMappingError(m.desc.label, c.name, err)
		}
	}
	return e, nil
}

// ToEntity maps the current row of row into a new entity.
func (d *Descriptor[T]) ToEntity(row Row) (*T, error) {
	columns, err := row.Columns()
	if err != nil {
		return nil, persist.NewMappingError(d.label, "", err)
	}
	m, err := d.Mapper(columns)
	if err != nil {
		return nil, err
	}
	return m.Map(row)
}

// ReturningSQL returns the INSERT statement extended with a RETURNING
// clause listing the generated columns. It returns InsertSQL unchanged when
// no column is generated or the statement already returns values.
func (d *Descriptor[T]) ReturningSQL() string {
	gen := d.GeneratedColumns()
	if len(gen) == 0 || strings.Contains(strings.ToUpper(d.insertSQL), " RETURNING ") {
		return d.insertSQL
	}
	names := make([]string, len(gen))
	for i, c := range gen {
		names[i] = c.name
	}
	return d.insertSQL + " RETURNING " + strings.Join(names, ", ")
}

// ScanGenerated scans the current row, holding the generated columns in
// declared order, into a map keyed by column name.
func (d *Descriptor[T]) ScanGenerated(row Row) (map[string]any, error) {
	gen := d.GeneratedColumns()
	dests := make([]any, len(gen))
	for i, c := range gen {
		dests[i] = c.typ.dest()
	}
	if err := row.Scan(dests...); err != nil {
		return nil, persist.NewMappingError(d.label, "", err)
	}
	values := make(map[string]any, len(gen))
	for i, c := range gen {
		values[c.name] = scanned(dests[i])
	}
	return values, nil
}
