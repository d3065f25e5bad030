package local

import (
	"context"
	"sync"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

// BasicStore is an in-memory reference implementation of the Store
// interface, a map of generation name to entries guarded by a single lock.
type BasicStore struct {
	generations map[string]map[string]*goofflinecache.CacheItem

	lock sync.RWMutex
}

func (bs *BasicStore) Get(_ context.Context, generation, key string) (*goofflinecache.CacheItem, error) {
	bs.lock.RLock()
	defer bs.lock.RUnlock()

	entries, found := bs.generations[generation]
	if !found {
		return nil, caches.ErrNoCacheItem
	}

	val, found := entries[key]
	if !found {
		return nil, caches.ErrNoCacheItem
	}

	return val, nil
}

func (bs *BasicStore) Set(_ context.Context, generation, key string, item *goofflinecache.CacheItem) error {
	bs.lock.Lock()
	defer bs.lock.Unlock()

	entries, found := bs.generations[generation]
	if !found {
		entries = make(map[string]*goofflinecache.CacheItem)
		bs.generations[generation] = entries
	}

	entries[key] = item

	return nil
}

func (bs *BasicStore) Generations(_ context.Context) ([]string, error) {
	bs.lock.RLock()
	defer bs.lock.RUnlock()

	names := make([]string, 0, len(bs.generations))
	for name := range bs.generations {
		names = append(names, name)
	}

	return names, nil
}

func (bs *BasicStore) DeleteGeneration(_ context.Context, generation string) error {
	bs.lock.Lock()
	defer bs.lock.Unlock()

	delete(bs.generations, generation)

	return nil
}

func NewBasicStore() *BasicStore {
	return &BasicStore{
		generations: make(map[string]map[string]*goofflinecache.CacheItem),
	}
}
