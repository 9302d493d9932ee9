package cascade

import (
	"context"
	"fmt"

	"github.com/syssam/persist"
	"github.com/syssam/persist/entity"
)

// Event is a write kind replayed across relationships.
type Event int

// Events.
const (
	EventInsert Event = iota + 1
	EventUpdate
	EventDelete
)

// String returns the event name.
func (ev Event) String() string {
	switch ev {
	case EventInsert:
		return "insert"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	default:
		return fmt.Sprintf("Event(%d)", int(ev))
	}
}

func (ev Event) bit() uint8 {
	if ev < EventInsert || ev > EventDelete {
		return 0
	}
	return 1 << uint8(ev)
}

// pre runs the pre hook of ev implemented by v, if any.
func (ev Event) pre(ctx context.Context, label string, v any) error {
	var (
		hook string
		err  error
	)
	switch ev {
	case EventInsert:
		if h, ok := v.(persist.PreInserter); ok {
			hook, err = "PreInsert", h.PreInsert(ctx)
		}
	case EventUpdate:
		if h, ok := v.(persist.PreUpdater); ok {
			hook, err = "PreUpdate", h.PreUpdate(ctx)
		}
	case EventDelete:
		if h, ok := v.(persist.PreDeleter); ok {
			hook, err = "PreDelete", h.PreDelete(ctx)
		}
	}
	if err != nil {
		return persist.NewPersistEventError(hook, label, err)
	}
	return nil
}

// post runs the post hook of ev implemented by v, if any.
func (ev Event) post(ctx context.Context, label string, v any) error {
	var (
		hook string
		err  error
	)
	switch ev {
	case EventInsert:
		if h, ok := v.(persist.PostInserter); ok {
			hook, err = "PostInsert", h.PostInsert(ctx)
		}
	case EventUpdate:
		if h, ok := v.(persist.PostUpdater); ok {
			hook, err = "PostUpdate", h.PostUpdate(ctx)
		}
	case EventDelete:
		if h, ok := v.(persist.PostDeleter); ok {
			hook, err = "PostDelete", h.PostDelete(ctx)
		}
	}
	if err != nil {
		return persist.NewPersistEventError(hook, label, err)
	}
	return nil
}

// Applier applies one event to an entity and its relationships.
type Applier[T any] interface {
	// Apply runs the event on v.
	Apply(ctx context.Context, v *T) error
	// ApplyAndReturn runs the event on v and returns the written delegate.
	ApplyAndReturn(ctx context.Context, v *T) (*entity.Delegate[T], error)
}

var (
	_ Applier[struct{}] = (*Insert[struct{}])(nil)
	_ Applier[struct{}] = (*Update[struct{}])(nil)
	_ Applier[struct{}] = (*Delete[struct{}])(nil)
)

// Insert inserts an entity, then the related entities of every
// relationship cascading inserts.
type Insert[T any] struct {
	e    *Engine
	desc *entity.Descriptor[T]
}

// NewInsert returns the insert event of entities described by desc.
func NewInsert[T any](e *Engine, desc *entity.Descriptor[T]) *Insert[T] {
	return &Insert[T]{e: e, desc: desc}
}

// Apply inserts v and its related entities.
func (i *Insert[T]) Apply(ctx context.Context, v *T) error {
	_, err := apply(ctx, i.e, EventInsert, i.desc, v)
	return err
}

// ApplyAndReturn inserts v and its related entities and returns the
// delegate of v with generated values merged.
func (i *Insert[T]) ApplyAndReturn(ctx context.Context, v *T) (*entity.Delegate[T], error) {
	return apply(ctx, i.e, EventInsert, i.desc, v)
}

// Update updates an entity, then the related entities of every
// relationship cascading updates.
type Update[T any] struct {
	e    *Engine
	desc *entity.Descriptor[T]
}

// NewUpdate returns the update event of entities described by desc.
func NewUpdate[T any](e *Engine, desc *entity.Descriptor[T]) *Update[T] {
	return &Update[T]{e: e, desc: desc}
}

// Apply updates v and its related entities.
func (u *Update[T]) Apply(ctx context.Context, v *T) error {
	_, err := apply(ctx, u.e, EventUpdate, u.desc, v)
	return err
}

// ApplyAndReturn is not supported by updates.
func (u *Update[T]) ApplyAndReturn(context.Context, *T) (*entity.Delegate[T], error) {
	return nil, persist.NewUnsupportedOperationError("cascade.Update.ApplyAndReturn")
}

// Delete deletes an entity, then the related entities of every
// relationship cascading deletes.
type Delete[T any] struct {
	e    *Engine
	desc *entity.Descriptor[T]
}

// NewDelete returns the delete event of entities described by desc.
func NewDelete[T any](e *Engine, desc *entity.Descriptor[T]) *Delete[T] {
	return &Delete[T]{e: e, desc: desc}
}

// Apply deletes v and its related entities.
func (d *Delete[T]) Apply(ctx context.Context, v *T) error {
	_, err := apply(ctx, d.e, EventDelete, d.desc, v)
	return err
}

// ApplyAndReturn is not supported by deletes.
func (d *Delete[T]) ApplyAndReturn(context.Context, *T) (*entity.Delegate[T], error) {
	return nil, persist.NewUnsupportedOperationError("cascade.Delete.ApplyAndReturn")
}
