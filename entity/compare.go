package entity

import "reflect"

// Equal reports whether a and b hold equal values in every declared column.
func Equal[T any](desc *Descriptor[T], a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	for _, c := range desc.columns {
		if !reflect.DeepEqual(c.get(a), c.get(b)) {
			return false
		}
	}
	return true
}

// SameKey reports whether a and b have the same key values.
func SameKey[T any](desc *Descriptor[T], a, b *T) bool {
	return desc.KeyArguments(a).Equal(desc.KeyArguments(b))
}

// Distinct returns es without the entities equal to an earlier one.
// The order of first occurrences is kept.
func Distinct[T any](desc *Descriptor[T], es []*T) []*T {
	seen := make(map[string]struct{}, len(es))
	out := make([]*T, 0, len(es))
	for _, e := range es {
		if e == nil {
			continue
		}
		k := desc.Values(e).Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}
