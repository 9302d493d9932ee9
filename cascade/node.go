package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/syssam/persist"
	"github.com/syssam/persist/entity"
)

// Relationship is a type-erased relationship node of parent type P.
// Implementations are created with HasOne, HasOptional and HasMany.
type Relationship[P any] interface {
	// Name returns the relationship name.
	Name() string
	// Shape returns the form of the related value.
	Shape() Shape
	// Cascades reports whether ev is applied to the related entities.
	Cascades(ev Event) bool

	validate(parent *entity.Descriptor[P]) error
	apply(ctx context.Context, w *walk, ev Event, parent *entity.Descriptor[P], v *P) error
	load(ctx context.Context, e *Engine, parent *entity.Descriptor[P], vs []*P) error
}

// link binds a child column to a parent column or to a literal value.
type link struct {
	source  string
	target  string
	value   any
	literal bool
}

type nodeSettings struct {
	events uint8
	links  []link
}

// NodeOption configures a relationship node.
type NodeOption func(*nodeSettings)

// Cascade applies the given events to the related entities. A node
// without events is only used for loading.
func Cascade(events ...Event) NodeOption {
	return func(s *nodeSettings) {
		for _, ev := range events {
			s.events |= ev.bit()
		}
	}
}

// CascadeAll applies every event to the related entities.
func CascadeAll() NodeOption {
	return Cascade(EventInsert, EventUpdate, EventDelete)
}

// Link copies the value of the parent column source into the child column
// target before the child is written, and filters children by it on load.
func Link(source, target string) NodeOption {
	return func(s *nodeSettings) {
		s.links = append(s.links, link{source: source, target: target})
	}
}

// LinkDefault assigns the literal v to the child column target before the
// child is written, and filters children by it on load.
func LinkDefault(target string, v any) NodeOption {
	return func(s *nodeSettings) {
		s.links = append(s.links, link{target: target, value: v, literal: true})
	}
}

// Node is a relationship from entities of type P to entities of type C.
type Node[P, C any] struct {
	name   string
	shape  Shape
	child  *entity.Descriptor[C]
	get    func(*P) Value[C]
	set    func(*P, Value[C])
	events uint8
	links  []link
}

func newNode[P, C any](name string, shape Shape, child *entity.Descriptor[C], get func(*P) Value[C], set func(*P, Value[C]), opts []NodeOption) *Node[P, C] {
	var s nodeSettings
	for _, opt := range opts {
		opt(&s)
	}
	return &Node[P, C]{
		name:   name,
		shape:  shape,
		child:  child,
		get:    get,
		set:    set,
		events: s.events,
		links:  s.links,
	}
}

// HasOne declares a relationship to exactly one child. The setter is used
// by Load and may be nil.
func HasOne[P, C any](name string, child *entity.Descriptor[C], get func(*P) *C, set func(*P, *C), opts ...NodeOption) *Node[P, C] {
	return newNode(name, ShapeSingle, child, getOne(get, Single[C]), setOne(set), opts)
}

// HasOptional declares a relationship to at most one child; a nil child
// is absent.
func HasOptional[P, C any](name string, child *entity.Descriptor[C], get func(*P) *C, set func(*P, *C), opts ...NodeOption) *Node[P, C] {
	return newNode(name, ShapeOptional, child, getOne(get, Optional[C]), setOne(set), opts)
}

// HasMany declares a relationship to a list of children.
func HasMany[P, C any](name string, child *entity.Descriptor[C], get func(*P) []*C, set func(*P, []*C), opts ...NodeOption) *Node[P, C] {
	var (
		getter func(*P) Value[C]
		setter func(*P, Value[C])
	)
	if get != nil {
		getter = func(p *P) Value[C] { return List(get(p)) }
	}
	if set != nil {
		setter = func(p *P, v Value[C]) { set(p, v.All()) }
	}
	return newNode(name, ShapeMany, child, getter, setter, opts)
}

func getOne[P, C any](get func(*P) *C, wrap func(*C) Value[C]) func(*P) Value[C] {
	if get == nil {
		return nil
	}
	return func(p *P) Value[C] { return wrap(get(p)) }
}

func setOne[P, C any](set func(*P, *C)) func(*P, Value[C]) {
	if set == nil {
		return nil
	}
	return func(p *P, v Value[C]) {
		c, _ := v.Get()
		set(p, c)
	}
}

// Name returns the relationship name.
func (n *Node[P, C]) Name() string { return n.name }

// Shape returns the form of the related value.
func (n *Node[P, C]) Shape() Shape { return n.shape }

// Child returns the descriptor of the related entities.
func (n *Node[P, C]) Child() *entity.Descriptor[C] { return n.child }

// Cascades reports whether ev is applied to the related entities.
func (n *Node[P, C]) Cascades(ev Event) bool { return n.events&ev.bit() != 0 }

// Value returns the related value of p.
func (n *Node[P, C]) Value(p *P) Value[C] { return n.get(p) }

func (n *Node[P, C]) validate(parent *entity.Descriptor[P]) error {
	switch {
	case n.name == "":
		return errors.New("cascade: relationship without name")
	case n.child == nil:
		return fmt.Errorf("cascade: relationship %s has no child descriptor", n.name)
	case n.get == nil:
		return fmt.Errorf("cascade: relationship %s has no accessor", n.name)
	}
	for _, l := range n.links {
		if _, ok := n.child.Column(l.target); !ok {
			return fmt.Errorf("cascade: relationship %s links unknown column %s.%s", n.name, n.child.Table(), l.target)
		}
		if l.literal {
			continue
		}
		if _, ok := parent.Column(l.source); !ok {
			return fmt.Errorf("cascade: relationship %s links unknown column %s.%s", n.name, parent.Table(), l.source)
		}
	}
	return nil
}

// bind assigns the linked values of p to c.
func (n *Node[P, C]) bind(parent *entity.Descriptor[P], p *P, c *C) error {
	for _, l := range n.links {
		v := l.value
		if !l.literal {
			var err error
			if v, err = parent.Value(p, l.source); err != nil {
				return err
			}
		}
		if err := n.child.SetValue(c, l.target, v); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node[P, C]) apply(ctx context.Context, w *walk, ev Event, parent *entity.Descriptor[P], p *P) error {
	return n.get(p).Each(func(c *C) error {
		if err := n.bind(parent, p, c); err != nil {
			return err
		}
		_, err := run(ctx, w, ev, n.child, c)
		return err
	})
}

// assign stores the loaded children cs into p.
func (n *Node[P, C]) assign(p *P, cs []*C) {
	if n.shape == ShapeMany {
		n.set(p, List(cs))
		return
	}
	var c *C
	if len(cs) > 0 {
		c = cs[0]
	}
	if n.shape == ShapeSingle {
		n.set(p, Single(c))
	} else {
		n.set(p, Optional(c))
	}
}

func (n *Node[P, C]) queryError(err error) error {
	return persist.NewQueryError(n.child.Label(), "load "+n.name, err)
}
