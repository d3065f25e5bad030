package goofflinecache

import (
	"context"
	"time"
)

// CacheItem is a stored snapshot of an HTTP response. Response holds the
// status line, headers and body as produced by httputil.DumpResponse and is
// readable again with http.ReadResponse.
type CacheItem struct {
	Response []byte
	StoredAt time.Time
}

// Store is a versioned response cache. Every entry lives inside a named
// generation; generations are created implicitly on first write and are only
// ever removed whole. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the item stored under (generation, key), or
	// caches.ErrNoCacheItem when either is absent.
	Get(ctx context.Context, generation, key string) (*CacheItem, error)

	// Set stores an item under (generation, key), replacing any previous one.
	Set(ctx context.Context, generation, key string, item *CacheItem) error

	// Generations lists the names of all generations currently in the store.
	Generations(ctx context.Context) ([]string, error)

	// DeleteGeneration removes a generation and every entry inside it.
	// Deleting an unknown generation is not an error.
	DeleteGeneration(ctx context.Context, generation string) error
}
