package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	_ "modernc.org/sqlite"
)

// SQLiteDB manages the SQLite database connection
type SQLiteDB struct {
	db     *sql.DB
	logger arbor.ILogger
	config *common.StorageConfig
}

// NewSQLiteDB opens (or creates) the document database, applies pragmas
// and brings the schema up to date.
func NewSQLiteDB(logger arbor.ILogger, dbPath string, config *common.StorageConfig) (*SQLiteDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &ConnectionError{Path: dbPath, Err: fmt.Errorf("failed to create database directory: %w", err)}
	}

	// modernc.org/sqlite uses "sqlite" driver name (not "sqlite3")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &ConnectionError{Path: dbPath, Err: err}
	}

	// A single writer keeps chunk inserts and FTS trigger updates ordered.
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{
		db:     db,
		logger: logger,
		config: config,
	}

	if err := s.configure(); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: dbPath, Err: err}
	}

	if err := s.InitSchema(); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: dbPath, Err: err}
	}

	logger.Info().Str("path", dbPath).Msg("SQLite document store initialized")
	return s, nil
}

// configure sets up SQLite pragmas and settings
func (s *SQLiteDB) configure() error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = -%d", s.config.CacheSizeKB), // Negative for KB
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.config.BusyTimeoutMS),
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}

	if s.config.WALEnabled {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

// DB returns the underlying database connection
func (s *SQLiteDB) DB() *sql.DB {
	return s.db
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginTx starts a new transaction
func (s *SQLiteDB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// Ping verifies the database connection
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
