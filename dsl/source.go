package dsl

import (
	"context"

	"github.com/syssam/persist"
	"github.com/syssam/persist/dialect"
	"github.com/syssam/persist/entity"
	"github.com/syssam/persist/runner"
)

// From returns a source executing directly on r, without caching.
func From[T any](r *runner.Runner, desc *entity.Descriptor[T]) Source[T] {
	return runnerSource[T]{e: runner.NewEntity(r, desc)}
}

type runnerSource[T any] struct {
	e *runner.Entity[T]
}

func (s runnerSource[T]) Descriptor() *entity.Descriptor[T] { return s.e.Descriptor() }

func (s runnerSource[T]) Vendor() dialect.Vendor { return s.e.Runner().Vendor() }

func (s runnerSource[T]) ReadSQL(ctx context.Context, query string, args persist.Arguments) (*T, error) {
	return s.e.Read(ctx, query, args)
}

func (s runnerSource[T]) ReadOptionalSQL(ctx context.Context, query string, args persist.Arguments) (*T, bool, error) {
	return s.e.ReadOptional(ctx, query, args)
}

func (s runnerSource[T]) ReadAllSQL(ctx context.Context, query string, args persist.Arguments) ([]*T, error) {
	return s.e.ReadAll(ctx, query, args)
}

func (s runnerSource[T]) CountSQL(ctx context.Context, query string, args persist.Arguments) (int64, error) {
	return s.e.Runner().Simple().Count(ctx, query, args)
}
