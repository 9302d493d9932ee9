// Package cascade replays writes across the declared relationships of an
// entity.
//
// A relationship tree is registered once per parent type:
//
//	cascade.Register(func() *cascade.Tree[Order] {
//	    return cascade.MustTree(orderDesc,
//	        cascade.HasMany("lines", lineDesc,
//	            func(o *Order) []*Line { return o.Lines },
//	            func(o *Order, ls []*Line) { o.Lines = ls },
//	            cascade.CascadeAll(),
//	            cascade.Link("ORDER_ID", "ORDER_ID"),
//	        ),
//	    )
//	})
//
// Applying an event to an entity runs, in order: its pre hook, its own
// statement, the same event on every related entity of the relationships
// cascading it (depth-first, in declaration order), and its post hook.
// A failing pre hook aborts before any statement is executed. A failing
// post hook is reported after the statements took effect; callers that
// need atomicity apply the event inside a transaction.
package cascade

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	"github.com/syssam/persist"
	"github.com/syssam/persist/cache"
	"github.com/syssam/persist/entity"
	"github.com/syssam/persist/runner"
)

// Engine executes events with one runner and invalidates the caches of
// every entity type an event wrote.
type Engine struct {
	r      *runner.Runner
	caches *cache.Manager
	log    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to the runner logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine returns an engine writing through r. The cache manager may be
// nil when reads are not cached.
func NewEngine(r *runner.Runner, caches *cache.Manager, opts ...Option) *Engine {
	e := &Engine{r: r, caches: caches, log: r.Logger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Runner returns the runner statements are executed with.
func (e *Engine) Runner() *runner.Runner { return e.r }

// With returns a copy of the engine writing through r, typically a runner
// bound to a transaction.
func (e *Engine) With(r *runner.Runner) *Engine {
	c := *e
	c.r = r
	return &c
}

// walk is the state of one event application.
type walk struct {
	e       *Engine
	touched map[reflect.Type]struct{}
	types   []reflect.Type
	seen    map[any]struct{}
}

func (w *walk) touch(t reflect.Type) {
	if _, ok := w.touched[t]; ok {
		return
	}
	w.touched[t] = struct{}{}
	w.types = append(w.types, t)
}

func apply[T any](ctx context.Context, e *Engine, ev Event, desc *entity.Descriptor[T], v *T) (*entity.Delegate[T], error) {
	if v == nil {
		return nil, persist.NewMappingError(desc.Label(), "", errors.New("nil entity"))
	}
	w := &walk{
		e:       e,
		touched: make(map[reflect.Type]struct{}),
		seen:    make(map[any]struct{}),
	}
	d, err := run(ctx, w, ev, desc, v)
	e.caches.Invalidate(ctx, w.types...)
	if err != nil {
		e.log.DebugContext(ctx, "cascade failed", "event", ev.String(), "entity", desc.Label(), "error", err)
		return nil, err
	}
	e.log.DebugContext(ctx, "cascade applied", "event", ev.String(), "entity", desc.Label(), "types", len(w.types))
	return d, nil
}

// run applies ev to v: pre hook, statement, relationships, post hook.
// An entity reached twice in one walk is written once.
func run[T any](ctx context.Context, w *walk, ev Event, desc *entity.Descriptor[T], v *T) (*entity.Delegate[T], error) {
	if _, ok := w.seen[v]; ok {
		return entity.Wrap(desc, v), nil
	}
	w.seen[v] = struct{}{}
	if err := ev.pre(ctx, desc.Label(), v); err != nil {
		return nil, err
	}
	d, err := write(ctx, w.e.r, ev, desc, v)
	if err != nil {
		return nil, err
	}
	w.touch(reflect.TypeFor[T]())
	for _, rel := range TreeOf[T]().Nodes() {
		if !rel.Cascades(ev) {
			continue
		}
		if err := rel.apply(ctx, w, ev, desc, v); err != nil {
			return nil, err
		}
	}
	if err := ev.post(ctx, desc.Label(), v); err != nil {
		return nil, err
	}
	return d, nil
}

func write[T any](ctx context.Context, r *runner.Runner, ev Event, desc *entity.Descriptor[T], v *T) (*entity.Delegate[T], error) {
	er := runner.NewEntity(r, desc)
	switch ev {
	case EventInsert:
		return er.Insert(ctx, v)
	case EventUpdate:
		if err := er.Update(ctx, v); err != nil {
			return nil, err
		}
	case EventDelete:
		if err := er.Delete(ctx, v); err != nil {
			return nil, err
		}
	default:
		return nil, persist.NewUnsupportedOperationError("cascade event " + ev.String())
	}
	return entity.Wrap(desc, v), nil
}
