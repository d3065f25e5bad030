package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	goofflinecache "github.com/gifterapp/go-offline-cache"
	"github.com/gifterapp/go-offline-cache/caches"
)

// deleteBatchSize is the BatchWriteItem limit imposed by DynamoDB.
const deleteBatchSize = 25

// Config defines the configuration options for the DynamoDB store implementation.
type Config struct {
	DeleteStaleItems bool // Controls if the expired_at TTL property is put in the database to allow automatic deletion of stale items

	ItemRetention time.Duration // How long an item stays in the database before the TTL removes it. Generation deletes are independent of this.
	Table         string
}

// Store implements the goofflinecache.Store interface using Amazon DynamoDB
// as the storage backend. The generation is the partition key and the cache
// key the sort key, so a generation maps onto a single item collection.
type Store struct {
	client *dynamodb.Client

	table     string
	retention time.Duration
	ttl       bool
	now       func() time.Time
}

type cacheItem struct {
	Generation string `json:"generation" dynamodbav:"generation"`
	URL        string `json:"url" dynamodbav:"url"`
	Response   []byte `json:"response" dynamodbav:"response"`
	CreatedAt  int64  `json:"created_at" dynamodbav:"created_at"`
	ExpiredAt  int64  `json:"expired_at,omitempty" dynamodbav:"expired_at,omitempty"`
}

// Get retrieves a cache item from DynamoDB. Returns caches.ErrNoCacheItem
// when nothing is stored under the generation and key.
func (s *Store) Get(ctx context.Context, generation, key string) (*goofflinecache.CacheItem, error) {
	av, err := itemKey(generation, key)
	if err != nil {
		return nil, err
	}

	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		Key:            av,
		ConsistentRead: aws.Bool(true),
		TableName:      aws.String(s.table),
	})
	if err != nil {
		return nil, err
	}

	if output.Item == nil {
		return nil, caches.ErrNoCacheItem
	}

	var item cacheItem
	if err := attributevalue.UnmarshalMap(output.Item, &item); err != nil {
		return nil, err
	}

	var ci goofflinecache.CacheItem
	if err := gobDecode(item.Response, &ci); err != nil {
		return nil, err
	}

	return &ci, nil
}

// Set stores a cache item in DynamoDB under the provided generation and key.
// It handles the serialization of the cache item and sets the appropriate
// timestamps.
func (s *Store) Set(ctx context.Context, generation, key string, v *goofflinecache.CacheItem) error {
	createdAt := s.now()

	encItem, err := gobEncode(v)
	if err != nil {
		return err
	}

	i := cacheItem{
		Generation: generation,
		URL:        key,
		Response:   encItem,
		CreatedAt:  createdAt.Unix(),
	}
	if s.ttl {
		i.ExpiredAt = createdAt.Add(s.retention).Unix()
	}

	av, err := attributevalue.MarshalMap(i)
	if err != nil {
		return err
	}

	input := dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}

	_, err = s.client.PutItem(ctx, &input)
	return err
}

// Generations scans the table for the distinct set of generation names.
func (s *Store) Generations(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	var startKey map[string]types.AttributeValue
	for {
		output, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                aws.String(s.table),
			ProjectionExpression:     aws.String("#g"),
			ExpressionAttributeNames: map[string]string{"#g": "generation"},
			ExclusiveStartKey:        startKey,
		})
		if err != nil {
			return nil, err
		}

		for _, item := range output.Items {
			var partial struct {
				Generation string `dynamodbav:"generation"`
			}
			if err := attributevalue.UnmarshalMap(item, &partial); err != nil {
				return nil, err
			}
			seen[partial.Generation] = struct{}{}
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	return names, nil
}

// DeleteGeneration queries every key under a generation and removes them in
// batches.
func (s *Store) DeleteGeneration(ctx context.Context, generation string) error {
	gen, err := attributevalue.Marshal(generation)
	if err != nil {
		return err
	}

	var startKey map[string]types.AttributeValue
	for {
		output, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String("#g = :g"),
			ExpressionAttributeNames:  map[string]string{"#g": "generation", "#u": "url"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":g": gen},
			ProjectionExpression:      aws.String("#g, #u"),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return err
		}

		for start := 0; start < len(output.Items); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(output.Items))

			writes := make([]types.WriteRequest, 0, end-start)
			for _, item := range output.Items[start:end] {
				writes = append(writes, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: item},
				})
			}

			if _, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.table: writes},
			}); err != nil {
				return err
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}
		startKey = output.LastEvaluatedKey
	}

	return nil
}

func itemKey(generation, key string) (map[string]types.AttributeValue, error) {
	gen, err := attributevalue.Marshal(generation)
	if err != nil {
		return nil, err
	}

	url, err := attributevalue.Marshal(key)
	if err != nil {
		return nil, err
	}

	return map[string]types.AttributeValue{
		"generation": gen,
		"url":        url,
	}, nil
}

// New creates a new DynamoDB store instance with the provided configuration.
// It validates the configuration and sets default values where appropriate.
// Returns an error if the client is nil or if the configuration is invalid.
func New(ctx context.Context, client *dynamodb.Client, config *Config) (*Store, error) {
	if client == nil {
		return nil, caches.ValidationError{
			Reason: "nil client",
		}
	}

	var retention time.Duration
	if config.ItemRetention == 0 {
		retention = caches.DefaultItemRetention
	} else {
		retention = config.ItemRetention
	}

	return &Store{
		client: client,

		table:     config.Table,
		retention: retention,
		ttl:       config.DeleteStaleItems,
		now:       time.Now,
	}, nil
}
