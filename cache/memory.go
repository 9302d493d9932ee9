package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/syssam/persist"
)

type item struct {
	value   []byte
	expires time.Time
}

// MemoryStore is an in-process persist.Cache. Expired entries are dropped
// when read.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time
}

var _ persist.Cache = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]item), now: time.Now}
}

// Get implements persist.Cache.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !it.expires.IsZero() && !s.now().Before(it.expires) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expires.Equal(it.expires) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return append([]byte(nil), it.value...), nil
}

// Set implements persist.Cache.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = it
	s.mu.Unlock()
	return nil
}

// Delete implements persist.Cache.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

// DeletePrefix implements persist.Cache.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			delete(s.items, k)
		}
	}
	return nil
}

// Clear implements persist.Cache.
func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]item)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries, including expired ones not yet dropped.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
