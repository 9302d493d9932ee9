package persist

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"hash/fnv"
	"reflect"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Argument is a single bound parameter: the value and the column it targets.
// Column is informational and does not participate in equality.
type Argument struct {
	Value  any
	Column string
}

// Arguments is an ordered, immutable list of bound parameters. It is used
// both as statement input and as a cache key: two Arguments are equal iff
// their ordered value sequences are equal.
type Arguments struct {
	args []Argument
	key  string
}

var emptyArguments = NewArguments()

// EmptyArguments returns the canonical zero-parameter Arguments.
func EmptyArguments() Arguments {
	return emptyArguments
}

// Args returns Arguments holding the given values in order.
func Args(values ...any) Arguments {
	args := make([]Argument, len(values))
	for i, v := range values {
		args[i] = Argument{Value: v}
	}
	return build(args)
}

// NewArguments returns Arguments holding a copy of args.
func NewArguments(args ...Argument) Arguments {
	return build(append([]Argument(nil), args...))
}

func build(args []Argument) Arguments {
	return Arguments{args: args, key: fingerprint(args)}
}

// Len returns the number of arguments.
func (a Arguments) Len() int { return len(a.args) }

// At returns the i-th argument.
func (a Arguments) At(i int) Argument { return a.args[i] }

// Values returns the bound values in declared order.
func (a Arguments) Values() []any {
	vs := make([]any, len(a.args))
	for i, arg := range a.args {
		vs[i] = arg.Value
	}
	return vs
}

// Append returns new Arguments with args added at the end.
func (a Arguments) Append(args ...Argument) Arguments {
	merged := make([]Argument, 0, len(a.args)+len(args))
	merged = append(merged, a.args...)
	return build(append(merged, args...))
}

// Concat returns new Arguments holding a followed by b.
func (a Arguments) Concat(b Arguments) Arguments {
	return a.Append(b.args...)
}

// Equal reports whether both Arguments hold the same ordered values.
func (a Arguments) Equal(b Arguments) bool {
	return a.Key() == b.Key()
}

// Key returns the fingerprint of the value sequence, usable as a map key.
func (a Arguments) Key() string {
	if a.args == nil && a.key == "" {
		return emptyArguments.key
	}
	return a.key
}

// Hash returns a 64-bit hash of the fingerprint.
func (a Arguments) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(a.Key()))
	return h.Sum64()
}

// String returns a human-readable representation of the values.
func (a Arguments) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, arg := range a.args {
		if i > 0 {
			sb.WriteString(", ")
		}
		if arg.Column != "" {
			sb.WriteString(arg.Column)
			sb.WriteByte('=')
		}
		fmt.Fprintf(&sb, "%v", arg.Value)
	}
	sb.WriteByte(']')
	return sb.String()
}

// fingerprint encodes the value sequence with msgpack. Values are first
// reduced to the form bound to the driver, so equal numbers of different Go
// widths and equal driver.Valuer results produce the same key.
func fingerprint(args []Argument) string {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	enc.SetSortMapKeys(true)
	if err := enc.EncodeArrayLen(len(args)); err != nil {
		return fallbackFingerprint(args)
	}
	for _, arg := range args {
		if err := enc.Encode(canonical(arg.Value)); err != nil {
			return fallbackFingerprint(args)
		}
	}
	return buf.String()
}

func fallbackFingerprint(args []Argument) string {
	var sb strings.Builder
	for _, arg := range args {
		fmt.Fprintf(&sb, "%T:%#v;", arg.Value, arg.Value)
	}
	return sb.String()
}

// opaqueValue carries the Go syntax representation of a value msgpack would
// encode lossily.
type opaqueValue struct {
	Repr string `msgpack:"\x00repr"`
}

var timeType = reflect.TypeOf(time.Time{})

func canonical(v any) any {
	if dv, err := driver.DefaultParameterConverter.ConvertValue(v); err == nil {
		return dv
	}
	if hasStruct(reflect.ValueOf(v)) {
		return opaqueValue{Repr: fmt.Sprintf("%T:%#v", v, v)}
	}
	return v
}

// hasStruct reports whether rv holds a struct other than time.Time. msgpack
// drops the unexported fields of structs.
func hasStruct(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Struct:
		return rv.Type() != timeType
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil() && hasStruct(rv.Elem())
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if hasStruct(rv.Index(i)) {
				return true
			}
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			if hasStruct(iter.Key()) || hasStruct(iter.Value()) {
				return true
			}
		}
	}
	return false
}
