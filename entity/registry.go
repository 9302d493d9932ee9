package entity

import (
	"reflect"
	"sync"
)

type entry struct {
	once  sync.Once
	build func() any
	desc  any
}

func (e *entry) get() any {
	e.once.Do(func() { e.desc = e.build() })
	return e.desc
}

var registry = struct {
	sync.RWMutex
	entries map[reflect.Type]*entry
}{entries: make(map[reflect.Type]*entry)}

// Register records the descriptor builder of T. The builder runs once, on
// first lookup. Register is meant to be called from init functions;
// registering a type twice replaces the builder.
func Register[T any](build func() *Descriptor[T]) {
	registry.Lock()
	defer registry.Unlock()
	registry.entries[reflect.TypeFor[T]()] = &entry{build: func() any { return build() }}
}

// Lookup returns the descriptor registered for T.
func Lookup[T any]() (*Descriptor[T], bool) {
	e, ok := lookup(reflect.TypeFor[T]())
	if !ok {
		return nil, false
	}
	d, ok := e.get().(*Descriptor[T])
	return d, ok && d != nil
}

// Registered reports whether a descriptor is registered for t.
func Registered(t reflect.Type) bool {
	_, ok := lookup(t)
	return ok
}

// Types returns the registered entity types.
func Types() []reflect.Type {
	registry.RLock()
	defer registry.RUnlock()
	ts := make([]reflect.Type, 0, len(registry.entries))
	for t := range registry.entries {
		ts = append(ts, t)
	}
	return ts
}

func lookup(t reflect.Type) (*entry, bool) {
	registry.RLock()
	defer registry.RUnlock()
	e, ok := registry.entries[t]
	return e, ok
}
