package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveStorePath_EnvOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv("DOCS_MCP_STORE_PATH", override)

	config := NewDefaultConfig()
	config.Storage.Path = filepath.Join(t.TempDir(), "ignored")

	path, err := ResolveStorePath(config)
	require.NoError(t, err)
	assert.Equal(t, override, path)
}

func TestResolveStorePath_CreatesConfiguredDirectory(t *testing.T) {
	t.Setenv("DOCS_MCP_STORE_PATH", "")

	config := NewDefaultConfig()
	config.Storage.Path = filepath.Join(t.TempDir(), "nested", "store")

	path, err := ResolveStorePath(config)
	require.NoError(t, err)
	assert.Equal(t, config.Storage.Path, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDatabasePath(t *testing.T) {
	store := t.TempDir()
	assert.Equal(t, filepath.Join(store, "documents.db"), DatabasePath(store))
}

func TestEnsureInstallationID_StableAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first := EnsureInstallationID(dir)
	_, err := uuid.Parse(first)
	require.NoError(t, err, "the installation id is a uuid")

	second := EnsureInstallationID(dir)
	assert.Equal(t, first, second, "the persisted id is reused")

	data, err := os.ReadFile(filepath.Join(dir, "installation.id"))
	require.NoError(t, err)
	assert.Contains(t, string(data), first)
}
