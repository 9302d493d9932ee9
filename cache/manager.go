package cache

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/syssam/persist"
	"github.com/syssam/persist/entity"
)

type invalidator interface {
	Invalidate(context.Context)
}

// Manager owns one Cache per entity type.
type Manager struct {
	store    persist.Cache
	ttl      time.Duration
	log      *slog.Logger
	disabled bool

	mu     sync.RWMutex
	caches map[reflect.Type]invalidator
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the second-level store shared by all caches.
func WithStore(store persist.Cache) Option {
	return func(m *Manager) { m.store = store }
}

// WithTTL sets the expiration of second-level entries. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithLogger sets the logger of the caches.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// Disabled turns caching off: Enabled reports false for every descriptor.
func Disabled() Option {
	return func(m *Manager) { m.disabled = true }
}

// NewManager returns a manager without caches.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		caches: make(map[reflect.Type]invalidator),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether reads of the entity described by a descriptor
// with the given cacheable flag go through the cache.
func (m *Manager) Enabled(cacheable bool) bool {
	return m != nil && !m.disabled && cacheable
}

// For returns the cache of T, creating it on first use.
func For[T any](m *Manager, desc *entity.Descriptor[T]) *Cache[T] {
	t := reflect.TypeFor[T]()
	m.mu.RLock()
	c, ok := m.caches[t]
	m.mu.RUnlock()
	if ok {
		return c.(*Cache[T])
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[t]; ok {
		return c.(*Cache[T])
	}
	nc := New(desc, m.store, m.ttl, m.log)
	m.caches[t] = nc
	return nc
}

// Invalidate drops the entries of the given entity types.
func (m *Manager) Invalidate(ctx context.Context, types ...reflect.Type) {
	if m == nil {
		return
	}
	for _, t := range types {
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		m.mu.RLock()
		c, ok := m.caches[t]
		m.mu.RUnlock()
		if ok {
			c.Invalidate(ctx)
		}
	}
}

// InvalidateAll drops the entries of every entity type.
func (m *Manager) InvalidateAll(ctx context.Context) {
	if m == nil {
		return
	}
	m.mu.RLock()
	cs := make([]invalidator, 0, len(m.caches))
	for _, c := range m.caches {
		cs = append(cs, c)
	}
	m.mu.RUnlock()
	for _, c := range cs {
		c.Invalidate(ctx)
	}
}

// Invalidate drops the entries of T.
func Invalidate[T any](ctx context.Context, m *Manager) {
	m.Invalidate(ctx, reflect.TypeFor[T]())
}
