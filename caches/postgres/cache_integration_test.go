//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

func setup(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("postgres", "postgresql://localhost:5455/postgresDB?user=postgresUser&password=postgresPW&sslmode=disable")
	require.NoError(t, err)

	store, err := New(context.Background(), db, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx := context.Background()
		for _, generation := range []string{"gifter-v1", "gifter-v2"} {
			_ = store.DeleteGeneration(ctx, generation)
		}
		_ = db.Close()
	})

	return store
}

func TestStoreIntegration(t *testing.T) {
	ctx := context.Background()
	store := setup(t)

	item := &goofflinecache.CacheItem{
		Response: []byte("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\nhome"),
		StoredAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.Set(ctx, "gifter-v1", "GET#http://origin.test/", item))
	require.NoError(t, store.Set(ctx, "gifter-v2", "GET#http://origin.test/", item))

	got, err := store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	require.NoError(t, err)
	assert.Equal(t, item.Response, got.Response)
	assert.True(t, item.StoredAt.Equal(got.StoredAt.UTC()))

	// upsert replaces the previous snapshot
	replacement := &goofflinecache.CacheItem{
		Response: []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nfresh"),
		StoredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, store.Set(ctx, "gifter-v1", "GET#http://origin.test/", replacement))

	got, err = store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	require.NoError(t, err)
	assert.Equal(t, replacement.Response, got.Response)

	_, err = store.Get(ctx, "gifter-v1", "GET#http://origin.test/missing")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)

	names, err := store.Generations(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "gifter-v1")
	assert.Contains(t, names, "gifter-v2")

	require.NoError(t, store.DeleteGeneration(ctx, "gifter-v1"))

	_, err = store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)
}
