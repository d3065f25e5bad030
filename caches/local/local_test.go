//go:build !integration

package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

func TestBasicStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewBasicStore()

	item := &goofflinecache.CacheItem{
		Response: []byte("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\nhome"),
		StoredAt: time.Now().UTC(),
	}

	require.NoError(t, store.Set(ctx, "gifter-v1", "GET#http://origin.test/", item))

	got, err := store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestBasicStoreMiss(t *testing.T) {
	ctx := context.Background()
	store := NewBasicStore()

	_, err := store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)

	require.NoError(t, store.Set(ctx, "gifter-v1", "GET#http://origin.test/", &goofflinecache.CacheItem{}))

	_, err = store.Get(ctx, "gifter-v2", "GET#http://origin.test/")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem, "generations must not see each other's entries")
}

func TestBasicStoreGenerations(t *testing.T) {
	ctx := context.Background()
	store := NewBasicStore()

	names, err := store.Generations(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, store.Set(ctx, "gifter-v1", "a", &goofflinecache.CacheItem{}))
	require.NoError(t, store.Set(ctx, "gifter-v2", "a", &goofflinecache.CacheItem{}))

	names, err = store.Generations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gifter-v1", "gifter-v2"}, names)

	require.NoError(t, store.DeleteGeneration(ctx, "gifter-v1"))

	names, err = store.Generations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gifter-v2"}, names)

	// deleting an unknown generation is not an error
	require.NoError(t, store.DeleteGeneration(ctx, "gifter-v0"))
}
