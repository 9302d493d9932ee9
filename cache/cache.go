// Package cache memoizes read results per entity type.
//
// Each entity type gets its own Cache keyed by statement text and argument
// fingerprint. Concurrent misses on one key share a single load, and any
// write to the type drops every entry. A second-level persist.Cache,
// typically shared between processes, can hold msgpack encoded results.
package cache

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/syssam/persist"
	"github.com/syssam/persist/entity"
)

// Loader loads a single entity on a cache miss.
type Loader[T any] func(context.Context) (*T, error)

// ListLoader loads a list of entities on a cache miss.
type ListLoader[T any] func(context.Context) ([]*T, error)

// Key operations.
const (
	opOne  = "one"
	opList = "list"
	opAll  = "all"
)

type entry[T any] struct {
	one  *T
	list []*T
}

// Stats reports cache usage counters.
type Stats struct {
	Hits   int64
	Misses int64
	Loads  int64
}

// Cache holds the memoized reads of entity type T. It is safe for
// concurrent use.
type Cache[T any] struct {
	desc  *entity.Descriptor[T]
	store persist.Cache
	ttl   time.Duration
	log   *slog.Logger

	mu      sync.RWMutex
	gen     uint64
	entries map[string]entry[T]
	group   singleflight.Group

	hits, misses, loads atomic.Int64
}

// New returns an empty cache for desc. A nil store disables the second level.
func New[T any](desc *entity.Descriptor[T], store persist.Cache, ttl time.Duration, logger *slog.Logger) *Cache[T] {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Cache[T]{
		desc:    desc,
		store:   store,
		ttl:     ttl,
		log:     logger,
		entries: make(map[string]entry[T]),
	}
}

// Get returns the entity read by query with args, calling load on a miss.
// Errors of load are returned as is and nothing is stored.
func (c *Cache[T]) Get(ctx context.Context, query string, args persist.Arguments, load Loader[T]) (*T, error) {
	e, err := c.get(ctx, c.key(opOne, query, args), func(ctx context.Context) (entry[T], error) {
		v, err := load(ctx)
		return entry[T]{one: v}, err
	})
	if err != nil {
		return nil, err
	}
	return clone(e.one), nil
}

// GetOptional is like Get, but a persist.NotFoundError from load is
// reported as a missing value and is not stored.
func (c *Cache[T]) GetOptional(ctx context.Context, query string, args persist.Arguments, load Loader[T]) (*T, bool, error) {
	v, err := c.Get(ctx, query, args, load)
	switch {
	case persist.IsNotFound(err):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return v, v != nil, nil
}

// GetList returns the entities read by query with args, calling load on a miss.
func (c *Cache[T]) GetList(ctx context.Context, query string, args persist.Arguments, load ListLoader[T]) ([]*T, error) {
	return c.list(ctx, c.key(opList, query, args), load)
}

// GetAll returns every entity of the type, calling load on a miss.
func (c *Cache[T]) GetAll(ctx context.Context, load ListLoader[T]) ([]*T, error) {
	return c.list(ctx, c.key(opAll, "", persist.EmptyArguments()), load)
}

func (c *Cache[T]) list(ctx context.Context, key string, load ListLoader[T]) ([]*T, error) {
	e, err := c.get(ctx, key, func(ctx context.Context) (entry[T], error) {
		vs, err := load(ctx)
		return entry[T]{list: vs}, err
	})
	if err != nil {
		return nil, err
	}
	vs := make([]*T, len(e.list))
	for i, v := range e.list {
		vs[i] = clone(v)
	}
	return vs, nil
}

// Invalidate drops every entry of the type. Loads started before the call
// returns do not store their results.
func (c *Cache[T]) Invalidate(ctx context.Context) {
	c.reset()
	if c.store == nil {
		return
	}
	if err := c.store.DeletePrefix(ctx, persist.Prefix(c.desc.Table())); err != nil {
		c.log.WarnContext(ctx, "cache: invalidating second level", "table", c.desc.Table(), "error", err)
	}
	// Reads served by the second level while it was being cleared must not
	// survive the call.
	c.reset()
}

func (c *Cache[T]) reset() {
	c.mu.Lock()
	c.gen++
	c.entries = make(map[string]entry[T])
	c.mu.Unlock()
}

func (c *Cache[T]) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Len returns the number of memoized entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the usage counters.
func (c *Cache[T]) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Loads: c.loads.Load()}
}

func (c *Cache[T]) key(op, query string, args persist.Arguments) string {
	return persist.CacheKey{Table: c.desc.Table(), Operation: op, Query: query, Args: args}.String()
}

func (c *Cache[T]) get(ctx context.Context, key string, load func(context.Context) (entry[T], error)) (entry[T], error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return e, nil
	}
	c.misses.Add(1)
	// The generation is part of the flight key: callers arriving after an
	// invalidation never join a flight started before it.
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+"/"+key, func() (any, error) {
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return e, nil
		}
		if e, ok := c.fromStore(ctx, key); ok {
			c.put(gen, key, e)
			return e, nil
		}
		c.loads.Add(1)
		e, err := load(ctx)
		if err != nil {
			return entry[T]{}, err
		}
		if c.put(gen, key, e) {
			c.toStore(ctx, gen, key, e)
		}
		return e, nil
	})
	if err != nil {
		return entry[T]{}, err
	}
	return v.(entry[T]), nil
}

// put stores e unless the cache was invalidated after gen was read.
func (c *Cache[T]) put(gen uint64, key string, e entry[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.entries[key] = e
	return true
}

type stored[T any] struct {
	One  *T   `msgpack:"o,omitempty"`
	List []*T `msgpack:"l,omitempty"`
	Many bool `msgpack:"m,omitempty"`
}

func (c *Cache[T]) fromStore(ctx context.Context, key string) (entry[T], bool) {
	if c.store == nil {
		return entry[T]{}, false
	}
	b, err := c.store.Get(ctx, key)
	if err != nil || b == nil {
		if err != nil {
			c.log.WarnContext(ctx, "cache: reading second level", "key", key, "error", err)
		}
		return entry[T]{}, false
	}
	var s stored[T]
	if err := msgpack.Unmarshal(b, &s); err != nil {
		c.log.WarnContext(ctx, "cache: decoding second level entry", "key", key, "error", err)
		return entry[T]{}, false
	}
	if s.Many && s.List == nil {
		s.List = []*T{}
	}
	return entry[T]{one: s.One, list: s.List}, true
}

func (c *Cache[T]) toStore(ctx context.Context, gen uint64, key string, e entry[T]) {
	if c.store == nil {
		return
	}
	b, err := msgpack.Marshal(stored[T]{One: e.one, List: e.list, Many: e.list != nil})
	if err == nil {
		err = c.store.Set(ctx, key, b, c.ttl)
	}
	if err != nil {
		c.log.WarnContext(ctx, "cache: writing second level", "key", key, "error", err)
		return
	}
	// An invalidation that ran during Set may have missed the new entry.
	if c.generation() != gen {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.WarnContext(ctx, "cache: dropping second level entry", "key", key, "error", err)
		}
	}
}

func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
