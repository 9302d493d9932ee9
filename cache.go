package persist

import (
	"context"
	"encoding/hex"
	"time"
)

// Cache is the interface for a second-level store of encoded read results.
// Users may implement it with their preferred caching solution
// (e.g., Redis, Memcached); the cache package ships an in-memory one.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a memoized read result in a Cache.
type CacheKey struct {
	Table     string
	Operation string
	Query     string
	Args      Arguments
}

// String returns the string representation of the cache key.
// All keys of a table share the "table:" prefix.
func (k CacheKey) String() string {
	return k.Table + ":" + k.Operation + ":" + k.Query + ":" + hex.EncodeToString([]byte(k.Args.Key()))
}

// Prefix returns the common prefix of all keys of the given table.
func Prefix(table string) string {
	return table + ":"
}
