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


package secrets

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/openclaw/openclaw-storage/storage"
)

type mockSecret struct {
	value    string
	kmsKeyID string
	tags     []types.Tag
}

// ClientMock is an in-memory Client for tests.
type ClientMock struct {
	mu      sync.Mutex
	secrets map[string]*mockSecret

	// Err, when set, is returned by every call. Simulates an outage.
	Err error
}

var _ Client = (*ClientMock)(nil)

// NewClientMock creates an empty in-memory vault.
func NewClientMock() *ClientMock {
	return &ClientMock{secrets: make(map[string]*mockSecret)}
}

// NewBackendWithMock creates a backend wired to a fresh mock vault.
func NewBackendWithMock(kmsKeyID string) (storage.Backend, *ClientMock, error) {
	mock := NewClientMock()
	backend, err := NewBackend(Options{KMSKeyID: kmsKeyID, Client: mock})
	if err != nil {
		return nil, nil, err
	}
	return backend, mock, nil
}

// Secret returns the stored secret for assertions, or nil.
func (m *ClientMock) Secret(name string) *mockSecret {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secrets[name]
}

func (m *ClientMock) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         params.SecretId,
		SecretString: aws.String(secret.value),
	}, nil
}

func (m *ClientMock) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	secret, ok := m.secrets[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	secret.value = aws.ToString(params.SecretString)
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func (m *ClientMock) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.Name)
	if _, exists := m.secrets[name]; exists {
		return nil, &types.ResourceExistsException{Message: aws.String("secret exists")}
	}
	m.secrets[name] = &mockSecret{
		value:    aws.ToString(params.SecretString),
		kmsKeyID: aws.ToString(params.KmsKeyId),
		tags:     params.Tags,
	}
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

func (m *ClientMock) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if _, ok := m.secrets[name]; !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("secret not found")}
	}
	delete(m.secrets, name)
	return &secretsmanager.DeleteSecretOutput{Name: params.SecretId}, nil
}

func (m *ClientMock) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var filter string
	for _, f := range params.Filters {
		if f.Key == types.FilterNameStringTypeName && len(f.Values) > 0 {
			filter = f.Values[0]
		}
	}

	var names []string
	for name := range m.secrets {
		if filter == "" || strings.HasPrefix(name, filter) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := &secretsmanager.ListSecretsOutput{}
	for _, name := range names {
		out.SecretList = append(out.SecretList, types.SecretListEntry{
			Name: aws.String(name),
		})
	}
	return out, nil
}
