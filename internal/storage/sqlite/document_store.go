package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// DocumentStorage implements interfaces.DocumentStorage on SQLite. One
// instance owns the database handle; the embedder is optional and search
// degrades to full-text only when it is absent.
type DocumentStorage struct {
	db       *SQLiteDB
	embedder interfaces.EmbeddingProvider
	splitter interfaces.ContentSplitter
	config   *common.Config
	logger   arbor.ILogger
}

// NewDocumentStorage creates a document storage backed by an open SQLiteDB.
func NewDocumentStorage(db *SQLiteDB, embedder interfaces.EmbeddingProvider, splitter interfaces.ContentSplitter, config *common.Config, logger arbor.ILogger) *DocumentStorage {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &DocumentStorage{
		db:       db,
		embedder: embedder,
		splitter: splitter,
		config:   config,
		logger:   logger,
	}
}

// normalizeName lowercases a library or version name. The empty string is
// the canonical unversioned variant.
func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func timeFromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// ResolveIds upserts the library and version rows and returns their ids.
func (s *DocumentStorage) ResolveIds(ctx context.Context, library, version string) (int64, int64, error) {
	library = normalizeName(library)
	version = normalizeName(version)
	now := time.Now().Unix()

	if _, err := s.db.DB().ExecContext(ctx,
		`INSERT OR IGNORE INTO libraries (name, created_at) VALUES (?, ?)`,
		library, now); err != nil {
		return 0, 0, &StoreError{Op: "ResolveIds", Err: err}
	}

	var libraryID int64
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT id FROM libraries WHERE name = ?`, library).Scan(&libraryID); err != nil {
		return 0, 0, &StoreError{Op: "ResolveIds", Err: err}
	}

	if _, err := s.db.DB().ExecContext(ctx,
		`INSERT OR IGNORE INTO versions (library_id, name, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		libraryID, version, models.VersionStatusNotIndexed, now, now); err != nil {
		return 0, 0, &StoreError{Op: "ResolveIds", Err: err}
	}

	var versionID int64
	if err := s.db.DB().QueryRowContext(ctx,
		`SELECT id FROM versions WHERE library_id = ? AND name = ?`, libraryID, version).Scan(&versionID); err != nil {
		return 0, 0, &StoreError{Op: "ResolveIds", Err: err}
	}

	return libraryID, versionID, nil
}

// lookupVersionID resolves an existing (library, version) pair without
// creating rows. The bool reports whether the pair exists.
func (s *DocumentStorage) lookupVersionID(ctx context.Context, library, version string) (int64, bool, error) {
	var versionID int64
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT v.id FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE l.name = ? AND v.name = ?`,
		normalizeName(library), normalizeName(version)).Scan(&versionID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return versionID, true, nil
}

// AddDocument splits a scraped page into chunks and stores them.
func (s *DocumentStorage) AddDocument(ctx context.Context, library, version string, doc models.Document) error {
	if doc.Metadata.URL == "" {
		return &StoreError{Op: "AddDocument", Err: fmt.Errorf("document has no URL")}
	}
	if s.splitter == nil {
		return &StoreError{Op: "AddDocument", Err: fmt.Errorf("no content splitter configured")}
	}

	chunks, err := s.splitter.Split(doc)
	if err != nil {
		return &StoreError{Op: "AddDocument", Err: fmt.Errorf("failed to split %s: %w", doc.Metadata.URL, err)}
	}

	chunkDocs := make([]models.Document, 0, len(chunks))
	for _, chunk := range chunks {
		chunkDocs = append(chunkDocs, models.Document{
			Content:     chunk.Content,
			ContentType: doc.ContentType,
			Metadata: models.DocumentMetadata{
				Title:    doc.Metadata.Title,
				URL:      doc.Metadata.URL,
				Path:     chunk.Section.Path,
				Level:    chunk.Section.Level,
				MimeType: doc.ContentType,
			},
		})
	}

	return s.AddDocuments(ctx, library, version, chunkDocs)
}

// AddDocuments stores pre-split chunk documents. Existing chunks for each
// URL in the batch are replaced, making re-scrapes idempotent per page.
func (s *DocumentStorage) AddDocuments(ctx context.Context, library, version string, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if doc.Metadata.URL == "" {
			return &StoreError{Op: "AddDocuments", Err: fmt.Errorf("document has no URL")}
		}
	}

	libraryID, versionID, err := s.ResolveIds(ctx, library, version)
	if err != nil {
		return err
	}

	embeddings, err := s.embedBatches(ctx, docs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return &StoreError{Op: "AddDocuments", Err: err}
	}
	defer tx.Rollback()

	// Replace previous chunks for every URL appearing in this batch.
	seen := make(map[string]bool)
	for _, doc := range docs {
		if seen[doc.Metadata.URL] {
			continue
		}
		seen[doc.Metadata.URL] = true
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE version_id = ? AND url = ?`,
			versionID, doc.Metadata.URL); err != nil {
			return &StoreError{Op: "AddDocuments", Err: err}
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO documents (library_id, version_id, url, content, metadata, sort_order, embedding, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &StoreError{Op: "AddDocuments", Err: err}
	}
	defer stmt.Close()

	now := time.Now().Unix()
	sortOrders := make(map[string]int)
	for i, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return &StoreError{Op: "AddDocuments", Err: fmt.Errorf("failed to marshal metadata: %w", err)}
		}

		var embeddingBlob interface{}
		if embeddings != nil {
			embeddingBlob = encodeEmbedding(embeddings[i])
		}

		sortOrder := sortOrders[doc.Metadata.URL]
		sortOrders[doc.Metadata.URL] = sortOrder + 1

		if _, err := stmt.ExecContext(ctx,
			libraryID, versionID, doc.Metadata.URL, doc.Content, string(metadataJSON),
			sortOrder, embeddingBlob, now); err != nil {
			return &StoreError{Op: "AddDocuments", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "AddDocuments", Err: err}
	}

	s.logger.Debug().
		Str("library", normalizeName(library)).
		Str("version", normalizeName(version)).
		Int("chunks", len(docs)).
		Msg("Stored document chunks")
	return nil
}

// embedBatches embeds every chunk's search text, batched by both item count
// and character budget. Returns nil when no embedder is configured.
func (s *DocumentStorage) embedBatches(ctx context.Context, docs []models.Document) ([][]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}

	batchSize := s.config.Embeddings.BatchSize
	if batchSize <= 0 {
		batchSize = common.DefaultBatchSize
	}
	batchChars := s.config.Embeddings.BatchChars
	if batchChars <= 0 {
		batchChars = common.DefaultBatchChars
	}
	storeDim := s.config.Storage.VectorDimension
	if storeDim <= 0 {
		storeDim = common.DefaultVectorDimension
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = embeddingText(doc)
	}

	embeddings := make([][]float32, 0, len(docs))
	start := 0
	for start < len(texts) {
		end := start
		chars := 0
		for end < len(texts) && end-start < batchSize {
			chars += len(texts[end])
			if chars > batchChars && end > start {
				break
			}
			end++
		}

		batch, err := s.embedder.EmbedDocuments(ctx, texts[start:end])
		if err != nil {
			return nil, &StoreError{Op: "AddDocuments", Err: fmt.Errorf("embedding failed: %w", err)}
		}
		if len(batch) != end-start {
			return nil, &StoreError{Op: "AddDocuments", Err: fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)}
		}

		for _, vector := range batch {
			if len(vector) > storeDim {
				return nil, &DimensionError{
					Model:          s.embedder.Model(),
					ModelDimension: len(vector),
					StoreDimension: storeDim,
				}
			}
			embeddings = append(embeddings, padEmbedding(vector, storeDim))
		}
		start = end
	}

	return embeddings, nil
}

// embeddingText builds the text sent to the embedding model: a short header
// carrying title, URL and section path, then the chunk content.
func embeddingText(doc models.Document) string {
	var b strings.Builder
	b.WriteString("<title>")
	b.WriteString(doc.Metadata.Title)
	b.WriteString("</title>\n<url>")
	b.WriteString(doc.Metadata.URL)
	b.WriteString("</url>\n<path>")
	b.WriteString(strings.Join(doc.Metadata.Path, " / "))
	b.WriteString("</path>\n")
	b.WriteString(doc.Content)
	return b.String()
}

// DeleteDocuments removes all chunks for a (library, version) pair.
func (s *DocumentStorage) DeleteDocuments(ctx context.Context, library, version string) (int64, error) {
	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil {
		return 0, &StoreError{Op: "DeleteDocuments", Err: err}
	}
	if !ok {
		return 0, nil
	}

	result, err := s.db.DB().ExecContext(ctx,
		`DELETE FROM documents WHERE version_id = ?`, versionID)
	if err != nil {
		return 0, &StoreError{Op: "DeleteDocuments", Err: err}
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// DeleteDocumentsByURL removes the chunks of a single page.
func (s *DocumentStorage) DeleteDocumentsByURL(ctx context.Context, library, version, url string) (int64, error) {
	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil {
		return 0, &StoreError{Op: "DeleteDocumentsByURL", Err: err}
	}
	if !ok {
		return 0, nil
	}

	result, err := s.db.DB().ExecContext(ctx,
		`DELETE FROM documents WHERE version_id = ? AND url = ?`, versionID, url)
	if err != nil {
		return 0, &StoreError{Op: "DeleteDocumentsByURL", Err: err}
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// RemoveVersion deletes a version's chunks and its row, and optionally the
// library row once no versions remain.
func (s *DocumentStorage) RemoveVersion(ctx context.Context, library, version string, removeLibraryIfEmpty bool) (models.RemovalReport, error) {
	var report models.RemovalReport

	library = normalizeName(library)
	version = normalizeName(version)

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return report, &StoreError{Op: "RemoveVersion", Err: err}
	}
	defer tx.Rollback()

	var libraryID, versionID int64
	err = tx.QueryRowContext(ctx,
		`SELECT l.id, v.id FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE l.name = ? AND v.name = ?`, library, version).Scan(&libraryID, &versionID)
	if err == sql.ErrNoRows {
		return report, nil
	}
	if err != nil {
		return report, &StoreError{Op: "RemoveVersion", Err: err}
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE version_id = ?`, versionID)
	if err != nil {
		return report, &StoreError{Op: "RemoveVersion", Err: err}
	}
	report.DocumentsDeleted, _ = result.RowsAffected()

	result, err = tx.ExecContext(ctx, `DELETE FROM versions WHERE id = ?`, versionID)
	if err != nil {
		return report, &StoreError{Op: "RemoveVersion", Err: err}
	}
	if n, _ := result.RowsAffected(); n > 0 {
		report.VersionDeleted = true
	}

	if removeLibraryIfEmpty {
		var remaining int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM versions WHERE library_id = ?`, libraryID).Scan(&remaining); err != nil {
			return report, &StoreError{Op: "RemoveVersion", Err: err}
		}
		if remaining == 0 {
			result, err = tx.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, libraryID)
			if err != nil {
				return report, &StoreError{Op: "RemoveVersion", Err: err}
			}
			if n, _ := result.RowsAffected(); n > 0 {
				report.LibraryDeleted = true
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return report, &StoreError{Op: "RemoveVersion", Err: err}
	}

	s.logger.Info().
		Str("library", library).
		Str("version", version).
		Int64("documents_deleted", report.DocumentsDeleted).
		Bool("library_deleted", report.LibraryDeleted).
		Msg("Removed version")
	return report, nil
}

// CheckDocumentExists reports whether a (library, version) pair has at
// least one stored chunk.
func (s *DocumentStorage) CheckDocumentExists(ctx context.Context, library, version string) (bool, error) {
	var exists bool
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM documents d
			JOIN versions v ON d.version_id = v.id
			JOIN libraries l ON v.library_id = l.id
			WHERE l.name = ? AND v.name = ?)`,
		normalizeName(library), normalizeName(version)).Scan(&exists)
	if err != nil {
		return false, &StoreError{Op: "CheckDocumentExists", Err: err}
	}
	return exists, nil
}

// QueryUniqueVersions lists version names of a library that have at least
// one stored chunk. The unversioned variant appears as the empty string.
func (s *DocumentStorage) QueryUniqueVersions(ctx context.Context, library string) ([]string, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT v.name FROM versions v
		 JOIN libraries l ON v.library_id = l.id
		 WHERE l.name = ?
		   AND EXISTS (SELECT 1 FROM documents d WHERE d.version_id = v.id)
		 ORDER BY v.name`,
		normalizeName(library))
	if err != nil {
		return nil, &StoreError{Op: "QueryUniqueVersions", Err: err}
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &StoreError{Op: "QueryUniqueVersions", Err: err}
		}
		versions = append(versions, name)
	}
	return versions, rows.Err()
}

// Close closes the underlying database.
func (s *DocumentStorage) Close() error {
	return s.db.Close()
}
