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


package openclaw

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/openclaw/openclaw-storage/storage"
)

// Mode selects the service-wide storage strategy.
type Mode string

const (
	// ModeFile keeps every namespace on the local filesystem.
	ModeFile Mode = "file"
	// ModeAgentCore routes cloud namespaces to the event-memory service.
	ModeAgentCore Mode = "agentcore"
	// ModeHybrid routes sessions to DynamoDB and transcripts to the
	// event-memory service.
	ModeHybrid Mode = "hybrid"
)

// ParseMode validates s as a service mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFile, ModeAgentCore, ModeHybrid:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: unknown storage type %q (set type to file, agentcore, or hybrid)", storage.ErrInvalidArgument, s)
}

// ClassificationConfig carries per-namespace overrides of the mode's
// default data classification.
type ClassificationConfig struct {
	Sessions    storage.Classification `json:"sessions,omitempty"`
	Transcripts storage.Classification `json:"transcripts,omitempty"`
	Auth        storage.Classification `json:"auth,omitempty"`
	Config      storage.Classification `json:"config,omitempty"`
}

func (c *ClassificationConfig) forNamespace(ns storage.Namespace) storage.Classification {
	if c == nil {
		return ""
	}
	switch ns {
	case storage.NamespaceSessions:
		return c.Sessions
	case storage.NamespaceTranscripts:
		return c.Transcripts
	case storage.NamespaceAuth:
		return c.Auth
	case storage.NamespaceConfig:
		return c.Config
	}
	return ""
}

// AgentCoreConfig configures the event-memory backend.
type AgentCoreConfig struct {
	MemoryARN       string `json:"memoryArn,omitempty"`
	Region          string `json:"region,omitempty"`
	NamespacePrefix string `json:"namespacePrefix,omitempty"`
}

// DynamoDBConfig configures the document-database backend.
type DynamoDBConfig struct {
	TableName          string `json:"tableName,omitempty"`
	Region             string `json:"region,omitempty"`
	TTLSeconds         *int64 `json:"ttlSeconds,omitempty"`
	NamespaceIndexName string `json:"namespaceIndexName,omitempty"`
}

// SecretsManagerConfig configures the credential vault backend.
type SecretsManagerConfig struct {
	SecretARN string `json:"secretArn,omitempty"`
	KMSKeyID  string `json:"kmsKeyId,omitempty"`
	Region    string `json:"region,omitempty"`
}

// Config is the validated service configuration. Unknown keys are rejected
// when decoding.
type Config struct {
	Type               Mode                  `json:"type,omitempty"`
	BaseDir            string                `json:"baseDir,omitempty"`
	DataClassification *ClassificationConfig `json:"dataClassification,omitempty"`
	AgentCore          *AgentCoreConfig      `json:"agentcore,omitempty"`
	DynamoDB           *DynamoDBConfig       `json:"dynamodb,omitempty"`
	SecretsManager     *SecretsManagerConfig `json:"secretsManager,omitempty"`
	CacheEnabled       *bool                 `json:"cacheEnabled,omitempty"`
	CacheTTLMs         int                   `json:"cacheTtlMs,omitempty"`
}

// DefaultConfig returns the file-mode configuration with caching on.
func DefaultConfig() Config {
	enabled := true
	return Config{
		Type:         ModeFile,
		CacheEnabled: &enabled,
		CacheTTLMs:   45000,
	}
}

// ParseConfig strictly decodes a JSON configuration, applying defaults for
// absent keys.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %v", storage.ErrInvalidArgument, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and strictly decodes a JSON configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config %s: %v", storage.ErrInvalidArgument, path, err)
	}
	return ParseConfig(data)
}

// cacheEnabled returns the effective cache switch.
func (c *Config) cacheEnabled() bool {
	return c.CacheEnabled == nil || *c.CacheEnabled
}

// hasSecrets reports whether the auth namespace routes to the vault.
func (c *Config) hasSecrets() bool {
	return c.SecretsManager != nil && c.SecretsManager.SecretARN != ""
}

func (c *Config) hasAgentCore() bool {
	return c.AgentCore != nil && c.AgentCore.MemoryARN != ""
}

func (c *Config) hasDynamoDB() bool {
	return c.DynamoDB != nil && c.DynamoDB.TableName != ""
}

// dynamoTTLSeconds returns the configured item expiry, or -1 when unset so
// the backend applies its 30-day default. Zero disables expiry.
func (c *Config) dynamoTTLSeconds() int64 {
	if c.DynamoDB == nil || c.DynamoDB.TTLSeconds == nil {
		return -1 // backend applies its default
	}
	return *c.DynamoDB.TTLSeconds
}

// Classification resolves the effective classification for a namespace:
// the explicit override when present, else the mode default. In file mode
// everything is local; in agentcore and hybrid modes sessions and
// transcripts are cloud while auth and config stay local.
func (c *Config) Classification(ns storage.Namespace) storage.Classification {
	if override := c.DataClassification.forNamespace(ns); override != "" {
		return override
	}
	if c.Type == ModeAgentCore || c.Type == ModeHybrid {
		if ns == storage.NamespaceSessions || ns == storage.NamespaceTranscripts {
			return storage.ClassificationCloud
		}
	}
	return storage.ClassificationLocal
}

// Validate checks mode, classification overrides, cache bounds, and the
// per-mode required cloud settings. Messages name the config key to fix.
func (c *Config) Validate() error {
	if c.Type == "" {
		c.Type = ModeFile
	}
	if _, err := ParseMode(string(c.Type)); err != nil {
		return err
	}

	if c.DataClassification != nil {
		for _, override := range []storage.Classification{
			c.DataClassification.Sessions,
			c.DataClassification.Transcripts,
			c.DataClassification.Auth,
			c.DataClassification.Config,
		} {
			if override == "" {
				continue
			}
			if _, err := storage.ParseClassification(string(override)); err != nil {
				return err
			}
		}
	}

	if c.CacheTTLMs <= 0 {
		return fmt.Errorf("%w: cacheTtlMs must be positive (got %d)", storage.ErrInvalidArgument, c.CacheTTLMs)
	}

	if c.DynamoDB != nil && c.DynamoDB.TTLSeconds != nil && *c.DynamoDB.TTLSeconds < 0 {
		return fmt.Errorf("%w: dynamodb.ttlSeconds must be >= 0 (got %d)", storage.ErrInvalidArgument, *c.DynamoDB.TTLSeconds)
	}

	switch c.Type {
	case ModeAgentCore:
		cloudUsed := false
		for _, ns := range storage.Namespaces() {
			if c.Classification(ns) == storage.ClassificationCloud {
				cloudUsed = true
			}
		}
		if cloudUsed && !c.hasAgentCore() {
			return fmt.Errorf("%w: agentcore mode needs agentcore.memoryArn", storage.ErrInvalidArgument)
		}
	case ModeHybrid:
		if c.Classification(storage.NamespaceTranscripts) == storage.ClassificationCloud && !c.hasAgentCore() {
			return fmt.Errorf("%w: hybrid mode with cloud transcripts needs agentcore.memoryArn", storage.ErrInvalidArgument)
		}
		if c.Classification(storage.NamespaceSessions) == storage.ClassificationCloud && !c.hasDynamoDB() && !c.hasAgentCore() {
			return fmt.Errorf("%w: hybrid mode with cloud sessions needs dynamodb.tableName or agentcore.memoryArn", storage.ErrInvalidArgument)
		}
	}

	return nil
}
