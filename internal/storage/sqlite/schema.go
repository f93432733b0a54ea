package sqlite

const schemaSQL = `
-- Libraries and their versions. The empty-string version name is the
-- canonical unversioned variant, so UNIQUE(library_id, name) holds.
CREATE TABLE IF NOT EXISTS libraries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	library_id INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'not_indexed',
	progress_pages INTEGER NOT NULL DEFAULT 0,
	progress_max_pages INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	source_url TEXT,
	scraper_options TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE,
	UNIQUE(library_id, name)
);

CREATE INDEX IF NOT EXISTS idx_versions_status ON versions(status);
CREATE INDEX IF NOT EXISTS idx_versions_source_url ON versions(source_url);

-- One row per chunk. sort_order is the chunk's position within its page.
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	library_id INTEGER NOT NULL,
	version_id INTEGER NOT NULL,
	url TEXT NOT NULL,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL,
	sort_order INTEGER NOT NULL,
	embedding BLOB,
	indexed_at INTEGER NOT NULL,
	FOREIGN KEY (library_id) REFERENCES libraries(id) ON DELETE CASCADE,
	FOREIGN KEY (version_id) REFERENCES versions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_version ON documents(version_id);
CREATE INDEX IF NOT EXISTS idx_documents_version_url ON documents(version_id, url, sort_order);

-- FTS5 index for full-text search. The table is standalone rather than
-- content-backed because the title column is extracted from metadata JSON,
-- which external-content tables cannot express.
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title,
	url,
	content
);

-- Triggers to keep FTS index in sync
CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, url, content)
	VALUES (new.id, json_extract(new.metadata, '$.title'), new.url, new.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
	UPDATE documents_fts
	SET title = json_extract(new.metadata, '$.title'), url = new.url, content = new.content
	WHERE rowid = new.id;
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
	DELETE FROM documents_fts WHERE rowid = old.id;
END;
`

// InitSchema initializes the database schema
func (s *SQLiteDB) InitSchema() error {
	_, err := s.db.Exec(schemaSQL)
	if err != nil {
		return err
	}

	// Run migrations for schema evolution
	if err := s.runMigrations(); err != nil {
		return err
	}

	s.logger.Debug().Msg("Database schema initialized")
	return nil
}

// runMigrations checks for and applies schema migrations for databases
// created before the pipeline columns existed on versions.
func (s *SQLiteDB) runMigrations() error {
	columns, err := s.tableColumns("versions")
	if err != nil {
		return err
	}

	migrations := []struct {
		column string
		ddl    string
	}{
		{"status", `ALTER TABLE versions ADD COLUMN status TEXT NOT NULL DEFAULT 'not_indexed'`},
		{"progress_pages", `ALTER TABLE versions ADD COLUMN progress_pages INTEGER NOT NULL DEFAULT 0`},
		{"progress_max_pages", `ALTER TABLE versions ADD COLUMN progress_max_pages INTEGER NOT NULL DEFAULT 0`},
		{"error_message", `ALTER TABLE versions ADD COLUMN error_message TEXT`},
		{"source_url", `ALTER TABLE versions ADD COLUMN source_url TEXT`},
		{"scraper_options", `ALTER TABLE versions ADD COLUMN scraper_options TEXT`},
	}

	for _, m := range migrations {
		if columns[m.column] {
			continue
		}
		s.logger.Info().Str("column", m.column).Msg("Running migration: adding versions column")
		if _, err := s.db.Exec(m.ddl); err != nil {
			return err
		}
	}

	docColumns, err := s.tableColumns("documents")
	if err != nil {
		return err
	}
	if !docColumns["embedding"] {
		s.logger.Info().Msg("Running migration: adding embedding column to documents")
		if _, err := s.db.Exec(`ALTER TABLE documents ADD COLUMN embedding BLOB`); err != nil {
			return err
		}
	}

	return nil
}

// tableColumns returns the set of column names for a table.
func (s *SQLiteDB) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(`PRAGMA table_info(` + table + `)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, dfltValue, pk interface{}
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
