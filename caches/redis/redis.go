package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

var ErrNilClient = errors.New("redis store: nil client")

// keyspace owned by this store; external code must not write under it
const (
	generationSetKey    = "offline-cache:generations"
	generationKeyPrefix = "offline-cache:gen:"
)

// Store implements the goofflinecache.Store interface on Redis. Each
// generation is a single hash keyed by cache key, and the set of generation
// names lives in a companion set, so enumeration and whole-generation
// deletes are plain commands rather than SCANs.
type Store struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ goofflinecache.Store = (*Store)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this store exclusively owns the client
}

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Store{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

func (s *Store) Get(ctx context.Context, generation, key string) (*goofflinecache.CacheItem, error) {
	b, err := s.rdb.HGet(ctx, generationKey(generation), key).Bytes()
	if err == goredis.Nil {
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

func (s *Store) Set(ctx context.Context, generation, key string, item *goofflinecache.CacheItem) error {
	var buff bytes.Buffer
	if err := gob.NewEncoder(&buff).Encode(item); err != nil {
		return err
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, generationKey(generation), key, buff.Bytes())
		pipe.SAdd(ctx, generationSetKey, generation)
		return nil
	})
	return err
}

func (s *Store) Generations(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, generationSetKey).Result()
}

func (s *Store) DeleteGeneration(ctx context.Context, generation string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, generationKey(generation))
		pipe.SRem(ctx, generationSetKey, generation)
		return nil
	})
	return err
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func generationKey(generation string) string {
	return generationKeyPrefix + generation
}
