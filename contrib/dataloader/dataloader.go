// Package dataloader provides generic helpers for batch loading entities.
//
// The relationship loader of package cascade loads the children of many
// parents with one statement per chunk of keys and regroups them by parent:
//
//	keys := dataloader.Unique(parentKeys)
//	children, err := dataloader.Batch(ctx, keys, 500, func(ctx context.Context, chunk []string) ([]*Post, error) {
//	    return posts.ReadAll(ctx, query(len(chunk)), args(chunk))
//	})
//	grouped := dataloader.GroupByKey(children, func(p *Post) string { return p.UserKey })
//
// OrderGroupsByKeys lines the groups up with the original parent slice,
// duplicates included:
//
//	for i, posts := range dataloader.OrderGroupsByKeys(parentKeys, grouped) {
//	    users[i].Posts = posts
//	}
package dataloader

import "context"

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads the entities of a batch of keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// GroupByKey groups values by key, keeping their order within each group.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys returns the group of every key, in key order. Keys
// without a group get nil.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// Unique returns keys without duplicates, in first occurrence order.
func Unique[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	result := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, k)
	}
	return result
}

// Chunk splits keys into consecutive slices of at most size elements.
// A size below one yields a single chunk.
func Chunk[K any](keys []K, size int) [][]K {
	if len(keys) == 0 {
		return nil
	}
	if size < 1 || size >= len(keys) {
		return [][]K{keys}
	}
	chunks := make([][]K, 0, (len(keys)+size-1)/size)
	for size < len(keys) {
		keys, chunks = keys[size:], append(chunks, keys[:size:size])
	}
	return append(chunks, keys)
}

// Batch calls fn once per chunk of keys and concatenates the results in
// chunk order. The first failing chunk stops the batch.
func Batch[K comparable, V any](ctx context.Context, keys []K, size int, fn BatchFunc[K, V]) ([]V, error) {
	var result []V
	for _, chunk := range Chunk(keys, size) {
		vs, err := fn(ctx, chunk)
		if err != nil {
			return nil, err
		}
		result = append(result, vs...)
	}
	return result, nil
}
