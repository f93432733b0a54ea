package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// DatabaseFileName is the SQLite file inside the store directory.
	DatabaseFileName = "documents.db"

	installationIDFile = "installation.id"
)

// ResolveStorePath returns the directory holding the document database,
// creating it if needed. Precedence: DOCS_MCP_STORE_PATH environment
// variable, then the configured storage path, then a per-user data
// directory.
func ResolveStorePath(config *Config) (string, error) {
	path := os.Getenv("DOCS_MCP_STORE_PATH")
	if path == "" && config != nil {
		path = config.Storage.Path
	}
	if path == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve user config directory: %w", err)
		}
		path = filepath.Join(base, "scriptor")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("failed to create store directory %s: %w", path, err)
	}
	return path, nil
}

// DatabasePath returns the full path of the SQLite database inside the
// store directory.
func DatabasePath(storePath string) string {
	return filepath.Join(storePath, DatabaseFileName)
}

// EnsureInstallationID returns the stable anonymous identifier for this
// installation, generating and persisting a new UUID on first use. A
// read or write failure falls back to an ephemeral ID so startup never
// blocks on it.
func EnsureInstallationID(storePath string) string {
	idPath := filepath.Join(storePath, installationIDFile)

	if data, err := os.ReadFile(idPath); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := uuid.New().String()
	_ = os.WriteFile(idPath, []byte(id+"\n"), 0644)
	return id
}
