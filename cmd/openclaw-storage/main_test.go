package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openclaw "github.com/openclaw/openclaw-storage"
	"github.com/openclaw/openclaw-storage/storage"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	err := app.Run(append([]string{"openclaw-storage"}, args...))
	return out.String(), err
}

func writeConfig(t *testing.T, baseDir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storage.json")
	cfg := fmt.Sprintf(`{"type": "file", "baseDir": %q}`, baseDir)
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestStatusShowsAllNamespaces(t *testing.T) {
	out, err := runApp(t, "status", "--config", writeConfig(t, t.TempDir()))
	require.NoError(t, err)

	assert.Contains(t, out, "mode: file")
	for _, ns := range storage.Namespaces() {
		assert.Contains(t, out, string(ns))
	}
}

func TestStatusJSON(t *testing.T) {
	out, err := runApp(t, "status", "--json", "--config", writeConfig(t, t.TempDir()))
	require.NoError(t, err)

	var report struct {
		Mode       string                                         `json:"mode"`
		Namespaces map[storage.Namespace]openclaw.NamespaceStatus `json:"namespaces"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "file", report.Mode)
	assert.Equal(t, storage.TypeFile, report.Namespaces[storage.NamespaceSessions].Backend)
}

func TestStatusHealthProbesBackends(t *testing.T) {
	out, err := runApp(t, "status", "--health", "--config", writeConfig(t, t.TempDir()))
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
}

func TestStatusRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "s3"}`), 0o600))

	_, err := runApp(t, "status", "--config", path)
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestMigrateRequiresTarget(t *testing.T) {
	_, err := runApp(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to")
}

func TestMigrateRejectsUnknownTarget(t *testing.T) {
	_, err := runApp(t, "migrate", "--to", "dynamodb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported migration target")
}

func TestMigrateWithoutYesAborts(t *testing.T) {
	_, err := runApp(t, "migrate", "--to", "file")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestMigrateCopyUnimplemented(t *testing.T) {
	_, err := runApp(t, "migrate", "--to", "file", "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not implemented")
}

func TestMigrateDryRunCountsKeys(t *testing.T) {
	baseDir := t.TempDir()
	configPath := writeConfig(t, baseDir)

	cfg, err := openclaw.LoadConfig(configPath)
	require.NoError(t, err)
	service, err := openclaw.NewService(cfg, nil)
	require.NoError(t, err)
	ctx := context.Background()
	backend, err := service.GetBackend(ctx, storage.NamespaceSessions)
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "s1", map[string]any{"id": "s1"}))
	require.NoError(t, backend.Set(ctx, storage.NamespaceSessions, "s2", map[string]any{"id": "s2"}))
	require.NoError(t, service.Close())

	out, err := runApp(t, "migrate", "--to", "agentcore", "--dry-run", "--namespace", "sessions", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "2 keys")
}

func TestMigrateRejectsUnknownNamespace(t *testing.T) {
	_, err := runApp(t, "migrate", "--to", "file", "--dry-run", "--namespace", "scratch")
	require.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runApp(t, "--log-level", "loud", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}
