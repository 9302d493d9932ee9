package cascade

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/syssam/persist/entity"
)

// Tree is the ordered set of relationships declared for an entity type.
// It is immutable after construction.
type Tree[P any] struct {
	nodes []Relationship[P]
}

// NewTree returns the tree of the entity type described by desc. Node
// names must be unique and every linked column must be declared.
func NewTree[P any](desc *entity.Descriptor[P], nodes ...Relationship[P]) (*Tree[P], error) {
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("cascade: nil relationship in %s tree", desc.Label())
		}
		if err := n.validate(desc); err != nil {
			return nil, err
		}
		k := strings.ToLower(n.Name())
		if _, ok := seen[k]; ok {
			return nil, fmt.Errorf("cascade: duplicate relationship %s in %s tree", n.Name(), desc.Label())
		}
		seen[k] = struct{}{}
	}
	return &Tree[P]{nodes: append([]Relationship[P](nil), nodes...)}, nil
}

// MustTree is like NewTree but panics on error.
func MustTree[P any](desc *entity.Descriptor[P], nodes ...Relationship[P]) *Tree[P] {
	t, err := NewTree(desc, nodes...)
	if err != nil {
		panic(err)
	}
	return t
}

// Nodes returns the relationships in declaration order.
func (t *Tree[P]) Nodes() []Relationship[P] {
	if t == nil {
		return nil
	}
	return t.nodes
}

// Len returns the number of relationships.
func (t *Tree[P]) Len() int { return len(t.Nodes()) }

// Node returns the relationship named name.
func (t *Tree[P]) Node(name string) (Relationship[P], bool) {
	for _, n := range t.Nodes() {
		if strings.EqualFold(n.Name(), name) {
			return n, true
		}
	}
	return nil, false
}

type treeEntry struct {
	once  sync.Once
	build func() any
	tree  any
}

func (e *treeEntry) get() any {
	e.once.Do(func() { e.tree = e.build() })
	return e.tree
}

var trees = struct {
	sync.RWMutex
	entries map[reflect.Type]*treeEntry
}{entries: make(map[reflect.Type]*treeEntry)}

// Register records the tree builder of P. The builder runs once, on first
// use. Registering a type twice replaces the builder.
func Register[P any](build func() *Tree[P]) {
	trees.Lock()
	defer trees.Unlock()
	trees.entries[reflect.TypeFor[P]()] = &treeEntry{build: func() any { return build() }}
}

// TreeOf returns the tree registered for P, or an empty tree.
func TreeOf[P any]() *Tree[P] {
	trees.RLock()
	e, ok := trees.entries[reflect.TypeFor[P]()]
	trees.RUnlock()
	if !ok {
		return &Tree[P]{}
	}
	if t, ok := e.get().(*Tree[P]); ok && t != nil {
		return t
	}
	return &Tree[P]{}
}
