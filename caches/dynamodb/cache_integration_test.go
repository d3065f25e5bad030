//go:build integration

package dynamodb

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

const testTable = "offline-cache-test"

func setup(t *testing.T) *dynamodb.Client {
	t.Log("setup called")

	awsconfig, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion("local"))
	require.NoError(t, err)

	c := dynamodb.NewFromConfig(awsconfig)

	require.NoError(t, createTable(context.Background(), c, testTable))

	t.Cleanup(func() {
		cleanup(t, c)
	})

	return c
}

func cleanup(t *testing.T, c *dynamodb.Client) {
	t.Log("cleanup called")

	output, err := c.ListTables(context.Background(), &dynamodb.ListTablesInput{})
	if err != nil {
		t.Log(err)
		return
	}

	for _, v := range output.TableNames {
		if _, err := c.DeleteTable(context.Background(), &dynamodb.DeleteTableInput{
			TableName: aws.String(v),
		}); err != nil {
			t.Log(err)
		}
	}
}

func TestStoreIntegration(t *testing.T) {
	ctx := context.Background()
	c := setup(t)

	store, err := New(ctx, c, &Config{
		Table: testTable,

		ItemRetention: 1 * time.Minute,
	})
	require.NoError(t, err)

	item := &goofflinecache.CacheItem{
		Response: []byte("HTTP/1.1 200 OK\r\nContent-Length: 4\r\n\r\nhome"),
		StoredAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, store.Set(ctx, "gifter-v1", "GET#http://origin.test/", item))
	require.NoError(t, store.Set(ctx, "gifter-v2", "GET#http://origin.test/", item))

	got, err := store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	require.NoError(t, err)
	assert.Equal(t, item.Response, got.Response)

	_, err = store.Get(ctx, "gifter-v1", "GET#http://origin.test/missing")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)

	names, err := store.Generations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"gifter-v1", "gifter-v2"}, names)

	require.NoError(t, store.DeleteGeneration(ctx, "gifter-v1"))

	names, err = store.Generations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gifter-v2"}, names)

	_, err = store.Get(ctx, "gifter-v1", "GET#http://origin.test/")
	assert.ErrorIs(t, err, caches.ErrNoCacheItem)
}
