package entity

import (
	"errors"
	"fmt"

	"github.com/syssam/persist"
)

// State is the lifecycle state of a Delegate.
type State int

const (
	// Unloaded delegates hold no entity yet.
	Unloaded State = iota
	// Loaded delegates hold an entity read from a row or bound from an object.
	Loaded
	// Dirty delegates hold an entity modified after it was loaded.
	Dirty
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Dirty:
		return "dirty"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrDelegateBound is returned when binding an already bound delegate.
	ErrDelegateBound = errors.New("entity: delegate already bound")
	// ErrDelegateUnbound is returned when modifying a delegate holding no entity.
	ErrDelegateUnbound = errors.New("entity: delegate holds no entity")
)

// Delegate wraps an entity with its lifecycle state and the key values
// generated by the backend on insert. A Delegate is not safe for
// concurrent mutation.
type Delegate[T any] struct {
	desc      *Descriptor[T]
	entity    *T
	state     State
	generated map[string]any
}

// Wrap returns a delegate bound to e.
func Wrap[T any](desc *Descriptor[T], e *T) *Delegate[T] {
	return &Delegate[T]{desc: desc, entity: e, state: Loaded}
}

// Descriptor returns the descriptor of the wrapped entity type.
func (d *Delegate[T]) Descriptor() *Descriptor[T] { return d.desc }

// Entity returns the wrapped entity, or nil while unloaded.
func (d *Delegate[T]) Entity() *T { return d.entity }

// State returns the lifecycle state.
func (d *Delegate[T]) State() State { return d.state }

// IsModified reports whether the entity was changed after loading.
func (d *Delegate[T]) IsModified() bool { return d.state == Dirty }

// SetEntity binds the delegate to the current row of row.
func (d *Delegate[T]) SetEntity(row Row) error {
	if d.state != Unloaded {
		return ErrDelegateBound
	}
	e, err := d.desc.ToEntity(row)
	if err != nil {
		return err
	}
	d.entity, d.state = e, Loaded
	return nil
}

// SetFullEntity binds the delegate to an existing object.
func (d *Delegate[T]) SetFullEntity(e *T) error {
	if d.state != Unloaded {
		return ErrDelegateBound
	}
	if e == nil {
		return persist.NewMappingError(d.desc.label, "", errors.New("nil entity"))
	}
	d.entity, d.state = e, Loaded
	return nil
}

// Set assigns v to the named column and marks the delegate dirty.
func (d *Delegate[T]) Set(column string, v any) error {
	if d.state == Unloaded {
		return ErrDelegateUnbound
	}
	if err := d.desc.SetValue(d.entity, column, v); err != nil {
		return err
	}
	d.state = Dirty
	return nil
}

// Modify calls fn with the entity and marks the delegate dirty.
func (d *Delegate[T]) Modify(fn func(*T)) error {
	if d.state == Unloaded {
		return ErrDelegateUnbound
	}
	fn(d.entity)
	d.state = Dirty
	return nil
}

// MarkClean returns a dirty delegate to the loaded state, typically after
// its changes were written.
func (d *Delegate[T]) MarkClean() {
	if d.state == Dirty {
		d.state = Loaded
	}
}

// Generated returns the key values generated on insert, by column name.
func (d *Delegate[T]) Generated() map[string]any { return d.generated }

// SetGenerated records generated key values and merges them into the entity.
func (d *Delegate[T]) SetGenerated(values map[string]any) error {
	if d.state == Unloaded {
		return ErrDelegateUnbound
	}
	if err := d.desc.MergeGenerated(d.entity, values); err != nil {
		return err
	}
	if d.generated == nil {
		d.generated = make(map[string]any, len(values))
	}
	for k, v := range values {
		d.generated[k] = v
	}
	return nil
}

// KeyArguments returns the key values of the wrapped entity.
func (d *Delegate[T]) KeyArguments() persist.Arguments {
	if d.entity == nil {
		return persist.EmptyArguments()
	}
	return d.desc.KeyArguments(d.entity)
}
