package cascade

import "fmt"

// Shape is the form of a related value.
type Shape int

// Relation shapes.
const (
	ShapeSingle Shape = iota + 1
	ShapeOptional
	ShapeMany
)

// String returns the shape name.
func (s Shape) String() string {
	switch s {
	case ShapeSingle:
		return "single"
	case ShapeOptional:
		return "optional"
	case ShapeMany:
		return "many"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Value is the related value of one relationship: a single child, an
// optional child or a list of children.
type Value[C any] struct {
	shape Shape
	one   *C
	many  []*C
}

// Single returns a value holding exactly one child.
func Single[C any](c *C) Value[C] {
	return Value[C]{shape: ShapeSingle, one: c}
}

// Optional returns a value holding c, or nothing when c is nil.
func Optional[C any](c *C) Value[C] {
	return Value[C]{shape: ShapeOptional, one: c}
}

// List returns a value holding the children cs.
func List[C any](cs []*C) Value[C] {
	return Value[C]{shape: ShapeMany, many: cs}
}

// Shape returns the form of the value.
func (v Value[C]) Shape() Shape { return v.shape }

// Get returns the child of a single or optional value.
func (v Value[C]) Get() (*C, bool) {
	if v.shape == ShapeMany || v.one == nil {
		return nil, false
	}
	return v.one, true
}

// All returns the children held by the value, in order.
func (v Value[C]) All() []*C {
	switch {
	case v.shape == ShapeMany:
		return v.many
	case v.one != nil:
		return []*C{v.one}
	default:
		return nil
	}
}

// Len returns the number of children held by the value.
func (v Value[C]) Len() int {
	if v.shape == ShapeMany {
		return len(v.many)
	}
	if v.one != nil {
		return 1
	}
	return 0
}

// Each calls fn for every present child in order and stops at the first
// error. Nil entries of a list are skipped.
func (v Value[C]) Each(fn func(*C) error) error {
	for _, c := range v.All() {
		if c == nil {
			continue
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
