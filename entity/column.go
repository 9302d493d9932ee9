package entity

import (
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"time"
)

// FieldType is the semantic type of a column. It selects the scan
// destination used when mapping rows.
type FieldType int

// Field types.
const (
	TypeAny FieldType = iota
	TypeBool
	TypeInt
	TypeUint
	TypeFloat
	TypeString
	TypeTime
	TypeBytes
	TypeScanner
)

var typeNames = [...]string{
	TypeAny:     "any",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeUint:    "uint",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeTime:    "time",
	TypeBytes:   "bytes",
	TypeScanner: "scanner",
}

// String returns the type name.
func (t FieldType) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// dest returns a fresh scan destination for the type.
func (t FieldType) dest() any {
	switch t {
	case TypeBool:
		return new(sql.NullBool)
	case TypeInt, TypeUint:
		return new(sql.NullInt64)
	case TypeFloat:
		return new(sql.NullFloat64)
	case TypeString:
		return new(sql.NullString)
	case TypeTime:
		return new(sql.NullTime)
	case TypeBytes:
		return new([]byte)
	default:
		return new(any)
	}
}

// scanned extracts the value held by a destination returned by dest.
// NULL is reported as nil.
func scanned(dest any) any {
	switch d := dest.(type) {
	case *sql.NullBool:
		if d.Valid {
			return d.Bool
		}
	case *sql.NullInt64:
		if d.Valid {
			return d.Int64
		}
	case *sql.NullFloat64:
		if d.Valid {
			return d.Float64
		}
	case *sql.NullString:
		if d.Valid {
			return d.String
		}
	case *sql.NullTime:
		if d.Valid {
			return d.Time
		}
	case *[]byte:
		if *d != nil {
			return *d
		}
	case *any:
		return *d
	}
	return nil
}

var (
	timeType    = reflect.TypeFor[time.Time]()
	bytesType   = reflect.TypeFor[[]byte]()
	scannerType = reflect.TypeFor[sql.Scanner]()
)

func fieldTypeOf(t reflect.Type) FieldType {
	switch {
	case reflect.PointerTo(t).Implements(scannerType):
		return TypeScanner
	case t == timeType:
		return TypeTime
	case t == bytesType:
		return TypeBytes
	}
	switch t.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return TypeInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeUint
	case reflect.Float32, reflect.Float64:
		return TypeFloat
	case reflect.String:
		return TypeString
	default:
		return TypeAny
	}
}

// Column describes one mapped column of entity type T.
type Column[T any] struct {
	name      string
	typ       FieldType
	key       bool
	generated bool
	nullable  bool
	get       func(*T) any
	set       func(*T, any) error
}

// Field returns a column named name whose value is read with get and
// written with set. A pointer V declares a nullable column: NULL maps
// to nil and nil binds as NULL.
func Field[T, V any](name string, get func(*T) V, set func(*T, V)) *Column[T] {
	vt := reflect.TypeFor[V]()
	base, nullable := vt, false
	if vt.Kind() == reflect.Pointer && !vt.Implements(scannerType) {
		base, nullable = vt.Elem(), true
	}
	c := &Column[T]{
		name:     name,
		typ:      fieldTypeOf(base),
		nullable: nullable,
		get: func(e *T) any {
			v := any(get(e))
			if nullable {
				rv := reflect.ValueOf(v)
				if rv.IsNil() {
					return nil
				}
				return rv.Elem().Interface()
			}
			return v
		},
	}
	c.set = func(e *T, v any) error {
		rv, err := convert(v, vt)
		if err != nil {
			return err
		}
		var out V
		if x, ok := rv.Interface().(V); ok {
			out = x
		}
		set(e, out)
		return nil
	}
	return c
}

// AsKey marks the column as part of the primary key.
func (c *Column[T]) AsKey() *Column[T] {
	c.key = true
	return c
}

// AutoGenerated marks the column as generated by the backend on insert.
// Generated columns are omitted from INSERT statements.
func (c *Column[T]) AutoGenerated() *Column[T] {
	c.generated = true
	return c
}

// Name returns the column name.
func (c *Column[T]) Name() string { return c.name }

// Type returns the semantic type.
func (c *Column[T]) Type() FieldType { return c.typ }

// Key reports whether the column is part of the primary key.
func (c *Column[T]) Key() bool { return c.key }

// Generated reports whether the column is generated by the backend.
func (c *Column[T]) Generated() bool { return c.generated }

// Nullable reports whether the column accepts NULL.
func (c *Column[T]) Nullable() bool { return c.nullable }

// Get returns the column value of e.
func (c *Column[T]) Get(e *T) any { return c.get(e) }

// Set converts v to the column type and assigns it to e.
func (c *Column[T]) Set(e *T, v any) error { return c.set(e, v) }

// convert converts v to a value of type t. Numeric values convert across
// widths when no information is lost, integers convert to bool, strings and byte slices convert to each
// other, and types implementing sql.Scanner scan v.
func convert(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		return convert(rv.Elem().Interface(), t)
	}
	if reflect.PointerTo(t).Implements(scannerType) {
		p := reflect.New(t)
		if err := p.Interface().(sql.Scanner).Scan(v); err != nil {
			return reflect.Value{}, err
		}
		return p.Elem(), nil
	}
	if t.Kind() == reflect.Pointer {
		inner, err := convert(v, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(t.Elem())
		p.Elem().Set(inner)
		return p, nil
	}
	from, to := fieldTypeOf(rv.Type()), fieldTypeOf(t)
	switch {
	case numeric(from) && numeric(to):
		return convertNumber(rv, t)
	case to == TypeBool && (from == TypeInt || from == TypeUint):
		return reflect.ValueOf(!rv.IsZero()).Convert(t), nil
	case (to == TypeString || to == TypeBytes) && (from == TypeString || from == TypeBytes):
		return rv.Convert(t), nil
	case from == to && from != TypeAny && rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %T to %s", v, t)
}

func numeric(t FieldType) bool {
	return t == TypeInt || t == TypeUint || t == TypeFloat
}

// convertNumber converts rv to t, failing when the value does not survive
// the conversion. Floats narrow to smaller floats unless they overflow.
func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	from, to := fieldTypeOf(rv.Type()), fieldTypeOf(t)
	if from == TypeFloat {
		f := rv.Float()
		if to != TypeFloat && (math.IsNaN(f) || math.IsInf(f, 0) || math.Trunc(f) != f) {
			return reflect.Value{}, fmt.Errorf("cannot convert %v to %s without loss", f, t)
		}
	}
	out := rv.Convert(t)
	var lossy bool
	switch {
	case from == TypeFloat && to == TypeFloat:
		lossy = math.IsInf(out.Float(), 0) && !math.IsInf(rv.Float(), 0)
	case from == TypeInt && to == TypeUint:
		lossy = rv.Int() < 0 || !out.Convert(rv.Type()).Equal(rv)
	case from == TypeUint && to == TypeInt:
		lossy = out.Int() < 0 || !out.Convert(rv.Type()).Equal(rv)
	default:
		lossy = !out.Convert(rv.Type()).Equal(rv)
	}
	if lossy {
		return reflect.Value{}, fmt.Errorf("cannot convert %v to %s without loss", rv.Interface(), t)
	}
	return out, nil
}
