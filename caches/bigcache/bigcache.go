package bigcache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

// Store implements the goofflinecache.Store interface on BigCache. BigCache
// cannot enumerate or bulk-delete its keys, so generation membership is
// tracked in an in-process index alongside the byte store.
type Store struct {
	c *bc.BigCache

	lock  sync.RWMutex
	index map[string]map[string]struct{}
}

type Config struct {
	LifeWindow         time.Duration // entry lifetime; 0 => caches.DefaultItemRetention
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	life := cfg.LifeWindow
	if life == 0 {
		life = caches.DefaultItemRetention
	}

	conf := bc.DefaultConfig(life)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}

	return &Store{
		c:     c,
		index: make(map[string]map[string]struct{}),
	}, nil
}

func (s *Store) Get(_ context.Context, generation, key string) (*goofflinecache.CacheItem, error) {
	b, err := s.c.Get(storageKey(generation, key))
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, caches.ErrNoCacheItem
	}
	if err != nil {
		return nil, err
	}

	var item goofflinecache.CacheItem
	if err := gob.NewDecoder(bytes.NewBuffer(b)).Decode(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) Set(_ context.Context, generation, key string, item *goofflinecache.CacheItem) error {
	var buff bytes.Buffer
	if err := gob.NewEncoder(&buff).Encode(item); err != nil {
		return err
	}

	if err := s.c.Set(storageKey(generation, key), buff.Bytes()); err != nil {
		return err
	}

	s.lock.Lock()
	keys, found := s.index[generation]
	if !found {
		keys = make(map[string]struct{})
		s.index[generation] = keys
	}
	keys[key] = struct{}{}
	s.lock.Unlock()

	return nil
}

func (s *Store) Generations(_ context.Context) ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}

	return names, nil
}

func (s *Store) DeleteGeneration(_ context.Context, generation string) error {
	s.lock.Lock()
	keys := s.index[generation]
	delete(s.index, generation)
	s.lock.Unlock()

	for key := range keys {
		if err := s.c.Delete(storageKey(generation, key)); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
			return err
		}
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return s.c.Close()
}

func storageKey(generation, key string) string {
	return generation + "\x00" + key
}
