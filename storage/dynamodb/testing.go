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
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/openclaw/openclaw-storage/storage"
)

// ClientMock is an in-memory single-table Client for tests. It understands
// the expressions this backend issues: the rev condition, the
// attribute_not_exists guard, and the SET update expression.
type ClientMock struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // keyed by PK

	// Err, when set, is returned by every call. Simulates an outage.
	Err error
}

var _ Client = (*ClientMock)(nil)

// NewClientMock creates an empty in-memory table.
func NewClientMock() *ClientMock {
	return &ClientMock{items: make(map[string]map[string]types.AttributeValue)}
}

// NewBackendWithMock creates a backend wired to a fresh mock table.
func NewBackendWithMock(ttlSeconds int64) (storage.Backend, *ClientMock, error) {
	mock := NewClientMock()
	backend, err := NewBackend(Options{
		TableName:  "openclaw-test",
		TTLSeconds: ttlSeconds,
		Client:     mock,
	})
	if err != nil {
		return nil, nil, err
	}
	return backend, mock, nil
}

func attrString(attrs map[string]types.AttributeValue, name string) string {
	if s, ok := attrs[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func attrNumber(attrs map[string]types.AttributeValue, name string) string {
	if n, ok := attrs[name].(*types.AttributeValueMemberN); ok {
		return n.Value
	}
	return ""
}

func copyAttrs(attrs map[string]types.AttributeValue) map[string]types.AttributeValue {
	clone := make(map[string]types.AttributeValue, len(attrs))
	for k, v := range attrs {
		clone[k] = v
	}
	return clone
}

func (m *ClientMock) GetItem(ctx context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[attrString(params.Key, "PK")]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyAttrs(item)}, nil
}

func (m *ClientMock) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[attrString(params.Item, "PK")] = copyAttrs(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *ClientMock) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pk := attrString(params.Key, "PK")
	item, exists := m.items[pk]

	if params.ConditionExpression != nil {
		if !exists || attrNumber(item, "rev") != attrNumber(params.ExpressionAttributeValues, ":prev") {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("rev mismatch")}
		}
	}

	out := &dynamodb.DeleteItemOutput{}
	if exists {
		if params.ReturnValues == types.ReturnValueAllOld {
			out.Attributes = copyAttrs(item)
		}
		delete(m.items, pk)
	}
	return out, nil
}

func (m *ClientMock) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pk := attrString(params.Key, "PK")
	item, exists := m.items[pk]

	switch cond := aws.ToString(params.ConditionExpression); {
	case strings.Contains(cond, "attribute_not_exists"):
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("item exists")}
		}
	case strings.Contains(cond, "rev = :prev"):
		if !exists || attrNumber(item, "rev") != attrNumber(params.ExpressionAttributeValues, ":prev") {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("rev mismatch")}
		}
	}

	if !exists {
		item = copyAttrs(params.Key)
	} else {
		item = copyAttrs(item)
	}

	// Apply the backend's SET expression by walking its assignments.
	expr := strings.TrimPrefix(aws.ToString(params.UpdateExpression), "SET ")
	for _, assignment := range strings.Split(expr, ",") {
		parts := strings.SplitN(strings.TrimSpace(assignment), "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if resolved, ok := params.ExpressionAttributeNames[name]; ok {
			name = resolved
		}
		placeholder := strings.TrimSpace(parts[1])
		if value, ok := params.ExpressionAttributeValues[placeholder]; ok {
			item[name] = value
		}
	}

	m.items[pk] = item
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *ClientMock) Query(ctx context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns := attrString(params.ExpressionAttributeValues, ":ns")
	prefix := attrString(params.ExpressionAttributeValues, ":prefix")

	out := &dynamodb.QueryOutput{}
	for _, item := range m.items {
		if attrString(item, "namespace") != ns {
			continue
		}
		if prefix != "" && !strings.HasPrefix(attrString(item, "key"), prefix) {
			continue
		}
		out.Items = append(out.Items, copyAttrs(item))
	}
	return out, nil
}

func (m *ClientMock) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   params.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}
