package openclaw

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-storage/storage"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, ModeFile, cfg.Type)
	assert.True(t, cfg.cacheEnabled())
	assert.Equal(t, 45000, cfg.CacheTTLMs)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := ParseConfig([]byte(`{"typ": "file"}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestParseConfigRejectsUnknownMode(t *testing.T) {
	_, err := ParseConfig([]byte(`{"type": "s3"}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "file, agentcore, or hybrid")
}

func TestParseConfigRejectsBadClassification(t *testing.T) {
	_, err := ParseConfig([]byte(`{"dataClassification": {"sessions": "regional"}}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestParseConfigRejectsNonPositiveCacheTTL(t *testing.T) {
	_, err := ParseConfig([]byte(`{"cacheTtlMs": 0}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "cacheTtlMs")
}

func TestParseConfigRejectsNegativeDynamoTTL(t *testing.T) {
	_, err := ParseConfig([]byte(`{"dynamodb": {"tableName": "T", "ttlSeconds": -5}}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "ttlSeconds")
}

func TestAgentCoreModeRequiresMemoryARN(t *testing.T) {
	_, err := ParseConfig([]byte(`{"type": "agentcore"}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "agentcore.memoryArn")
}

func TestAgentCoreModeAllLocalNeedsNoARN(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"type": "agentcore",
		"dataClassification": {"sessions": "local", "transcripts": "local"}
	}`))
	require.NoError(t, err)
	assert.Equal(t, storage.ClassificationLocal, cfg.Classification(storage.NamespaceSessions))
}

func TestHybridModeRequiresCloudBackends(t *testing.T) {
	_, err := ParseConfig([]byte(`{"type": "hybrid"}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "agentcore.memoryArn")

	_, err = ParseConfig([]byte(`{
		"type": "hybrid",
		"dataClassification": {"transcripts": "local"}
	}`))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "dynamodb.tableName")
}

func TestClassificationModeDefaults(t *testing.T) {
	fileCfg := DefaultConfig()
	for _, ns := range storage.Namespaces() {
		assert.Equal(t, storage.ClassificationLocal, fileCfg.Classification(ns), ns)
	}

	cloudCfg := DefaultConfig()
	cloudCfg.Type = ModeAgentCore
	assert.Equal(t, storage.ClassificationCloud, cloudCfg.Classification(storage.NamespaceSessions))
	assert.Equal(t, storage.ClassificationCloud, cloudCfg.Classification(storage.NamespaceTranscripts))
	assert.Equal(t, storage.ClassificationLocal, cloudCfg.Classification(storage.NamespaceAuth))
	assert.Equal(t, storage.ClassificationLocal, cloudCfg.Classification(storage.NamespaceConfig))
}

func TestClassificationExplicitOverrideWins(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"type": "hybrid",
		"agentcore": {"memoryArn": "arn:aws:bedrock-agentcore:us-east-1:000000000000:memory/m"},
		"dataClassification": {"sessions": "local", "config": "cloud"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, storage.ClassificationLocal, cfg.Classification(storage.NamespaceSessions))
	assert.Equal(t, storage.ClassificationCloud, cfg.Classification(storage.NamespaceConfig))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}
