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
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/openclaw/openclaw-storage/storage"
)

const (
	namePrefix = "openclaw-auth"

	callTimeout   = 10 * time.Second
	healthTimeout = 2 * time.Second

	listPageSize = 100
)

// Client is the slice of the Secrets Manager API the backend uses.
// *secretsmanager.Client satisfies it; tests substitute an in-memory vault.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// Options configures the secrets backend.
type Options struct {
	// Region for the client. Optional; falls back to AWS_REGION.
	Region string

	// KMSKeyID, when set, is attached to newly created secrets for
	// envelope encryption.
	KMSKeyID string

	// Client overrides the AWS client, for tests.
	Client Client

	Logger *slog.Logger
}

// Backend stores credentials as individual Secrets Manager secrets.
type Backend struct {
	region   string
	kmsKeyID string
	client   Client
	logger   *slog.Logger
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates a secrets backend.
func NewBackend(opts Options) (storage.Backend, error) {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" && opts.Client == nil {
		return nil, fmt.Errorf("%w: no region configured; set secretsManager.region or AWS_REGION", storage.ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		region:   region,
		kmsKeyID: opts.KMSKeyID,
		client:   opts.Client,
		logger:   logger,
	}, nil
}

func (b *Backend) Type() string      { return storage.TypeSecretsManager }
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
	b.client = secretsmanager.NewFromConfig(cfg)
	return nil
}

func (b *Backend) Close() error { return nil }

// sanitizeSecretKey keeps slashes so keys can form secret name hierarchies;
// every other rune outside [A-Za-z0-9_.-] becomes an underscore.
func sanitizeSecretKey(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = storage.SanitizeKey(part)
	}
	return strings.Join(parts, "/")
}

func secretName(ns storage.Namespace, key string) string {
	return namePrefix + "/" + string(ns) + "/" + sanitizeSecretKey(key)
}

func namespacePrefix(ns storage.Namespace) string {
	return namePrefix + "/" + string(ns) + "/"
}

func isNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}

// isPendingDeletion matches the InvalidRequest the service returns for
// reads of a secret scheduled for deletion.
func isPendingDeletion(err error) bool {
	var invalid *types.InvalidRequestException
	return errors.As(err, &invalid)
}

func (b *Backend) Get(ctx context.Context, ns storage.Namespace, key string) (any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	name := secretName(ns, key)
	out, err := b.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		if isNotFound(err) || isPendingDeletion(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: get secret %s: %v", storage.ErrBackendUnavailable, name, err)
	}

	raw := aws.ToString(out.SecretString)
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Not JSON; the secret was stored as a raw string.
		return raw, true, nil
	}
	return value, true, nil
}

// Set updates the secret value, creating the secret on first write with the
// configured KMS key and application tags.
func (b *Backend) Set(ctx context.Context, ns storage.Namespace, key string, value any) error {
	payload, err := secretPayload(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	name := secretName(ns, key)
	_, err = b.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(payload),
	})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("%w: put secret %s: %v", storage.ErrBackendUnavailable, name, err)
	}

	input := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(payload),
		Tags: []types.Tag{
			{Key: aws.String("Application"), Value: aws.String("openclaw")},
			{Key: aws.String("Namespace"), Value: aws.String(string(ns))},
		},
	}
	if b.kmsKeyID != "" {
		input.KmsKeyId = aws.String(b.kmsKeyID)
	}
	if _, err := b.client.CreateSecret(ctx, input); err != nil {
		return fmt.Errorf("%w: create secret %s: %v", storage.ErrBackendUnavailable, name, err)
	}
	return nil
}

// secretPayload stores strings raw and everything else as compact JSON.
func secretPayload(value any) (string, error) {
	if s, ok := value.(string); ok {
		return s, nil
	}
	return storage.CanonicalJSON(value)
}

// Delete forces immediate deletion; credentials must not linger in the
// recovery window once revoked.
func (b *Backend) Delete(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	name := secretName(ns, key)
	_, err := b.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(name),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: delete secret %s: %v", storage.ErrBackendUnavailable, name, err)
	}
	return true, nil
}

func (b *Backend) List(ctx context.Context, ns storage.Namespace, prefix string) ([]string, error) {
	filterPrefix := namespacePrefix(ns)

	var keys []string
	var nextToken *string
	for {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		out, err := b.client.ListSecrets(callCtx, &secretsmanager.ListSecretsInput{
			MaxResults: aws.Int32(listPageSize),
			NextToken:  nextToken,
			Filters: []types.Filter{{
				Key:    types.FilterNameStringTypeName,
				Values: []string{filterPrefix},
			}},
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: list secrets under %s: %v", storage.ErrBackendUnavailable, filterPrefix, err)
		}

		for _, entry := range out.SecretList {
			if entry.DeletedDate != nil {
				continue
			}
			name := aws.ToString(entry.Name)
			if !strings.HasPrefix(name, filterPrefix) {
				continue
			}
			key := strings.TrimPrefix(name, filterPrefix)
			if prefix != "" && !strings.HasPrefix(key, prefix) {
				continue
			}
			keys = append(keys, key)
		}

		nextToken = out.NextToken
		if nextToken == nil {
			return keys, nil
		}
	}
}

// Update is get-apply-set; the vault offers no conditional write to build
// on.
func (b *Backend) Update(ctx context.Context, ns storage.Namespace, key string, fn storage.UpdateFunc) (any, bool, error) {
	current, found, err := b.Get(ctx, ns, key)
	if err != nil {
		return nil, false, err
	}

	next, keep, err := fn(current, found)
	if err != nil {
		return nil, false, err
	}
	if !keep {
		_, err := b.Delete(ctx, ns, key)
		return nil, false, err
	}
	if err := b.Set(ctx, ns, key, next); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

// Append is not supported; the vault stores credentials, not logs.
func (b *Backend) Append(ctx context.Context, ns storage.Namespace, key string, line string) error {
	return fmt.Errorf("%w: append on secrets-manager backend", storage.ErrUnsupported)
}

// ReadLines is not supported.
func (b *Backend) ReadLines(ctx context.Context, ns storage.Namespace, key string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", fmt.Errorf("%w: readLines on secrets-manager backend", storage.ErrUnsupported))
	}
}

// HealthCheck lists at most one secret.
func (b *Backend) HealthCheck(ctx context.Context) storage.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	start := time.Now()
	_, err := b.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		MaxResults: aws.Int32(1),
	})
	status := storage.HealthStatus{OK: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Err = err.Error()
	}
	return status
}
