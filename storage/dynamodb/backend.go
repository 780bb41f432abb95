// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openclaw/openclaw-storage/storage"
)

const (
	sortKeyData = "DATA"

	defaultIndexName  = "NamespaceIndex"
	defaultTTLSeconds = 30 * 24 * 60 * 60

	callTimeout   = 10 * time.Second
	healthTimeout = 2 * time.Second

	// updateRetries bounds the optimistic-concurrency loop in Update.
	updateRetries = 5
)

// Client is the slice of the DynamoDB API the backend uses.
// *dynamodb.Client satisfies it; tests substitute an in-memory table.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Options configures the DynamoDB backend.
type Options struct {
	// TableName is the backing table. Required.
	TableName string

	// Region for the client. Optional; falls back to AWS_REGION.
	Region string

	// TTLSeconds is added to now on every Set as the item's ttl attribute.
	// Negative means the 30-day default; zero disables expiry.
	TTLSeconds int64

	// IndexName is the GSI on (namespace, key). Defaults to NamespaceIndex.
	IndexName string

	// Client overrides the AWS client, for tests.
	Client Client

	Logger *slog.Logger
}

// Backend stores namespaced values as DynamoDB items.
type Backend struct {
	tableName  string
	region     string
	ttlSeconds int64
	indexName  string
	client     Client
	logger     *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// item is the table schema.
type item struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Namespace string `dynamodbav:"namespace"`
	Key       string `dynamodbav:"key"`
	Data      any    `dynamodbav:"data"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	Rev       int64  `dynamodbav:"rev"`
	TTL       int64  `dynamodbav:"ttl,omitempty"`
}

// NewBackend creates a DynamoDB backend over the given table.
func NewBackend(opts Options) (storage.Backend, error) {
	if opts.TableName == "" {
		return nil, fmt.Errorf("%w: dynamodb.tableName is required", storage.ErrInvalidArgument)
	}

	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" && opts.Client == nil {
		return nil, fmt.Errorf("%w: no region configured; set dynamodb.region or AWS_REGION", storage.ErrInvalidArgument)
	}

	ttlSeconds := opts.TTLSeconds
	if ttlSeconds < 0 {
		ttlSeconds = defaultTTLSeconds
	}

	indexName := opts.IndexName
	if indexName == "" {
		indexName = defaultIndexName
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		tableName:  opts.TableName,
		region:     region,
		ttlSeconds: ttlSeconds,
		indexName:  indexName,
		client:     opts.Client,
		logger:     logger,
	}, nil
}

func (b *Backend) Type() string      { return storage.TypeDynamoDB }
func (b *Backend) Distributed() bool { return true }

// Initialize constructs the AWS client unless one was injected.
func (b *Backend) Initialize(ctx context.Context) error {
	if b.client != nil {
		return nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(b.region))
	if err != nil {
		return fmt.Errorf("%w: load aws config: %v", storage.ErrBackendUnavailable, err)
	}
	b.client = dynamodb.NewFromConfig(cfg)
	return nil
}

func (b *Backend) Close() error { return nil }

func partitionKey(ns storage.Namespace, key string) string {
	return string(ns) + "#" + storage.SanitizeKey(key)
}

func itemKey(ns storage.Namespace, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey(ns, key)},
		"SK": &types.AttributeValueMemberS{Value: sortKeyData},
	}
}

// expired reports whether an item's ttl has elapsed. DynamoDB removes
// expired items lazily, so reads must filter them.
func expired(ttl int64, now time.Time) bool {
	return ttl > 0 && ttl <= now.Unix()
}

func (b *Backend) readItem(ctx context.Context, ns storage.Namespace, key string) (*item, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            itemKey(ns, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get item %s: %v", storage.ErrBackendUnavailable, partitionKey(ns, key), err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var record item
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("%w: decode item %s: %v", storage.ErrCorruption, partitionKey(ns, key), err)
	}
	if expired(record.TTL, time.Now()) {
		return nil, nil
	}
	return &record, nil
}

func (b *Backend) Get(ctx context.Context, ns storage.Namespace, key string) (any, bool, error) {
	record, err := b.readItem(ctx, ns, key)
	if err != nil || record == nil {
		return nil, false, err
	}
	return record.Data, true, nil
}

func (b *Backend) Set(ctx context.Context, ns storage.Namespace, key string, value any) error {
	clone, err := storage.CloneValue(value)
	if err != nil {
		return err
	}

	now := time.Now()
	record := item{
		PK:        partitionKey(ns, key),
		SK:        sortKeyData,
		Namespace: string(ns),
		Key:       storage.SanitizeKey(key),
		Data:      clone,
		UpdatedAt: now.UTC().Format(time.RFC3339),
		Rev:       1,
	}
	if b.ttlSeconds > 0 {
		record.TTL = now.Unix() + b.ttlSeconds
	}

	attrs, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("%w: encode item %s: %v", storage.ErrInvalidArgument, record.PK, err)
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if _, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      attrs,
	}); err != nil {
		return fmt.Errorf("%w: put item %s: %v", storage.ErrBackendUnavailable, record.PK, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	out, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(b.tableName),
		Key:          itemKey(ns, key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("%w: delete item %s: %v", storage.ErrBackendUnavailable, partitionKey(ns, key), err)
	}
	return len(out.Attributes) > 0, nil
}

func (b *Backend) List(ctx context.Context, ns storage.Namespace, prefix string) ([]string, error) {
	keyCondition := "#ns = :ns"
	names := map[string]string{"#ns": "namespace", "#key": "key"}
	values := map[string]types.AttributeValue{
		":ns": &types.AttributeValueMemberS{Value: string(ns)},
	}
	if prefix != "" {
		keyCondition += " AND begins_with(#key, :prefix)"
		values[":prefix"] = &types.AttributeValueMemberS{Value: prefix}
	}

	now := time.Now()
	var keys []string
	var startKey map[string]types.AttributeValue
	for {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		out, err := b.client.Query(callCtx, &dynamodb.QueryInput{
			TableName:                 aws.String(b.tableName),
			IndexName:                 aws.String(b.indexName),
			KeyConditionExpression:    aws.String(keyCondition),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: query namespace %s: %v", storage.ErrBackendUnavailable, ns, err)
		}

		for _, attrs := range out.Items {
			var record item
			if err := attributevalue.UnmarshalMap(attrs, &record); err != nil {
				return nil, fmt.Errorf("%w: decode listed item: %v", storage.ErrCorruption, err)
			}
			if expired(record.TTL, now) {
				continue
			}
			keys = append(keys, record.Key)
		}

		startKey = out.LastEvaluatedKey
		if len(startKey) == 0 {
			return keys, nil
		}
	}
}

// Update is an optimistic-concurrency read-modify-write: the UpdateItem
// carries a condition on the rev the read observed, and a conditional
// failure restarts the loop with a fresh read.
func (b *Backend) Update(ctx context.Context, ns storage.Namespace, key string, fn storage.UpdateFunc) (any, bool, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}

		record, err := b.readItem(ctx, ns, key)
		if err != nil {
			return nil, false, err
		}

		var current any
		var prevRev int64
		found := record != nil
		if found {
			current = record.Data
			prevRev = record.Rev
		}

		next, keep, err := fn(current, found)
		if err != nil {
			return nil, false, err
		}

		if !keep {
			if err := b.deleteConditional(ctx, ns, key, found, prevRev); err != nil {
				if errors.Is(err, errRevConflict) {
					continue
				}
				return nil, false, err
			}
			return nil, false, nil
		}

		if err := b.writeConditional(ctx, ns, key, next, found, prevRev); err != nil {
			if errors.Is(err, errRevConflict) {
				continue
			}
			return nil, false, err
		}
		return next, true, nil
	}
	return nil, false, fmt.Errorf("%w: update %s contended beyond %d attempts", storage.ErrBackendUnavailable, partitionKey(ns, key), updateRetries)
}

var errRevConflict = errors.New("rev conflict")

func isConditionalCheckFailed(err error) bool {
	var conditionFailed *types.ConditionalCheckFailedException
	return errors.As(err, &conditionFailed)
}

func (b *Backend) deleteConditional(ctx context.Context, ns storage.Namespace, key string, found bool, prevRev int64) error {
	if !found {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(b.tableName),
		Key:                 itemKey(ns, key),
		ConditionExpression: aws.String("rev = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.FormatInt(prevRev, 10)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return errRevConflict
		}
		return fmt.Errorf("%w: delete item %s: %v", storage.ErrBackendUnavailable, partitionKey(ns, key), err)
	}
	return nil
}

func (b *Backend) writeConditional(ctx context.Context, ns storage.Namespace, key string, value any, found bool, prevRev int64) error {
	clone, err := storage.CloneValue(value)
	if err != nil {
		return err
	}
	data, err := attributevalue.Marshal(clone)
	if err != nil {
		return fmt.Errorf("%w: encode value for %s: %v", storage.ErrInvalidArgument, partitionKey(ns, key), err)
	}

	now := time.Now()
	setExpr := "SET #data = :data, #ns = :ns, #key = :key, updatedAt = :updatedAt, rev = :next"
	names := map[string]string{"#data": "data", "#ns": "namespace", "#key": "key"}
	values := map[string]types.AttributeValue{
		":data":      data,
		":ns":        &types.AttributeValueMemberS{Value: string(ns)},
		":key":       &types.AttributeValueMemberS{Value: storage.SanitizeKey(key)},
		":updatedAt": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		":next":      &types.AttributeValueMemberN{Value: strconv.FormatInt(prevRev+1, 10)},
	}
	if b.ttlSeconds > 0 {
		setExpr += ", #ttl = :ttl"
		names["#ttl"] = "ttl"
		values[":ttl"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix()+b.ttlSeconds, 10)}
	}

	condition := "attribute_not_exists(PK)"
	if found {
		condition = "rev = :prev"
		values[":prev"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(prevRev, 10)}
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	_, err = b.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(b.tableName),
		Key:                       itemKey(ns, key),
		UpdateExpression:          aws.String(setExpr),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return errRevConflict
		}
		return fmt.Errorf("%w: update item %s: %v", storage.ErrBackendUnavailable, partitionKey(ns, key), err)
	}
	return nil
}

// Append is not supported; transcripts live on the event-memory backend.
func (b *Backend) Append(ctx context.Context, ns storage.Namespace, key string, line string) error {
	return fmt.Errorf("%w: append on dynamodb backend", storage.ErrUnsupported)
}

// ReadLines is not supported; transcripts live on the event-memory backend.
func (b *Backend) ReadLines(ctx context.Context, ns storage.Namespace, key string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", fmt.Errorf("%w: readLines on dynamodb backend", storage.ErrUnsupported))
	}
}

// HealthCheck describes the table.
func (b *Backend) HealthCheck(ctx context.Context) storage.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	out, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(b.tableName),
	})
	status := storage.HealthStatus{Latency: time.Since(start)}
	switch {
	case err != nil:
		status.Err = err.Error()
	case out.Table != nil && out.Table.TableStatus != types.TableStatusActive:
		status.Err = "table status " + strings.ToLower(string(out.Table.TableStatus))
	default:
		status.OK = true
	}
	return status
}
