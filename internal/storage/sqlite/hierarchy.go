package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
)

// Hierarchy navigation. Chunks of one page form a tree through their
// section paths; relations are computed over the page's chunk list in Go
// because JSON path comparison inside SQLite is not canonical across
// writers. Pages hold at most a few hundred chunks, so loading one URL
// group is cheap.

// GetByID returns a single chunk scoped to the version, or nil.
func (s *DocumentStorage) GetByID(ctx context.Context, library, version string, id int64) (*models.StoredDocument, error) {
	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil {
		return nil, &StoreError{Op: "GetByID", Err: err}
	}
	if !ok {
		return nil, nil
	}

	row := s.db.DB().QueryRowContext(ctx,
		`SELECT id, url, content, metadata, sort_order, indexed_at
		 FROM documents WHERE id = ? AND version_id = ?`, id, versionID)
	chunk, err := scanStoredDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "GetByID", Err: err}
	}
	return &chunk, nil
}

// FindChildChunks returns up to limit chunks one level below the reference
// chunk on the same page, in document order.
func (s *DocumentStorage) FindChildChunks(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error) {
	ref, siblingsPage, err := s.referenceAndPage(ctx, library, version, id)
	if err != nil || ref == nil {
		return nil, err
	}

	var children []models.StoredDocument
	for _, chunk := range siblingsPage {
		if len(chunk.Metadata.Path) == len(ref.Metadata.Path)+1 &&
			pathHasPrefix(chunk.Metadata.Path, ref.Metadata.Path) {
			children = append(children, chunk)
			if len(children) == limit {
				break
			}
		}
	}
	return children, nil
}

// FindPrecedingSiblings returns up to limit chunks immediately before the
// reference chunk at the same section path, in document order.
func (s *DocumentStorage) FindPrecedingSiblings(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error) {
	ref, siblingsPage, err := s.referenceAndPage(ctx, library, version, id)
	if err != nil || ref == nil {
		return nil, err
	}

	var preceding []models.StoredDocument
	for _, chunk := range siblingsPage {
		if chunk.SortOrder < ref.SortOrder && pathEqual(chunk.Metadata.Path, ref.Metadata.Path) {
			preceding = append(preceding, chunk)
		}
	}
	if len(preceding) > limit {
		preceding = preceding[len(preceding)-limit:]
	}
	return preceding, nil
}

// FindSubsequentSiblings returns up to limit chunks immediately after the
// reference chunk at the same section path, in document order.
func (s *DocumentStorage) FindSubsequentSiblings(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error) {
	ref, siblingsPage, err := s.referenceAndPage(ctx, library, version, id)
	if err != nil || ref == nil {
		return nil, err
	}

	var subsequent []models.StoredDocument
	for _, chunk := range siblingsPage {
		if chunk.SortOrder > ref.SortOrder && pathEqual(chunk.Metadata.Path, ref.Metadata.Path) {
			subsequent = append(subsequent, chunk)
			if len(subsequent) == limit {
				break
			}
		}
	}
	return subsequent, nil
}

// FindParentChunk returns the chunk whose section path is the reference
// chunk's path minus its last element, or nil at the top level.
func (s *DocumentStorage) FindParentChunk(ctx context.Context, library, version string, id int64) (*models.StoredDocument, error) {
	ref, siblingsPage, err := s.referenceAndPage(ctx, library, version, id)
	if err != nil || ref == nil {
		return nil, err
	}
	if len(ref.Metadata.Path) == 0 {
		return nil, nil
	}

	parentPath := ref.Metadata.Path[:len(ref.Metadata.Path)-1]
	for _, chunk := range siblingsPage {
		if pathEqual(chunk.Metadata.Path, parentPath) {
			c := chunk
			return &c, nil
		}
	}
	return nil, nil
}

// FindChunksByIds loads chunks scoped to the version, ordered by page and
// document order.
func (s *DocumentStorage) FindChunksByIds(ctx context.Context, library, version string, ids []int64) ([]models.StoredDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil {
		return nil, &StoreError{Op: "FindChunksByIds", Err: err}
	}
	if !ok {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, versionID)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	rows, err := s.db.DB().QueryContext(ctx, fmt.Sprintf(
		`SELECT id, url, content, metadata, sort_order, indexed_at
		 FROM documents
		 WHERE version_id = ? AND id IN (%s)
		 ORDER BY url, sort_order`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, &StoreError{Op: "FindChunksByIds", Err: err}
	}
	defer rows.Close()

	var chunks []models.StoredDocument
	for rows.Next() {
		chunk, err := scanStoredDocument(rows)
		if err != nil {
			return nil, &StoreError{Op: "FindChunksByIds", Err: err}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// referenceAndPage loads the reference chunk and every chunk sharing its
// URL, in document order. A missing reference yields (nil, nil, nil).
func (s *DocumentStorage) referenceAndPage(ctx context.Context, library, version string, id int64) (*models.StoredDocument, []models.StoredDocument, error) {
	ref, err := s.GetByID(ctx, library, version, id)
	if err != nil || ref == nil {
		return nil, nil, err
	}

	versionID, ok, err := s.lookupVersionID(ctx, library, version)
	if err != nil || !ok {
		return nil, nil, err
	}

	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, url, content, metadata, sort_order, indexed_at
		 FROM documents
		 WHERE version_id = ? AND url = ?
		 ORDER BY sort_order`, versionID, ref.URL)
	if err != nil {
		return nil, nil, &StoreError{Op: "FindChunks", Err: err}
	}
	defer rows.Close()

	var page []models.StoredDocument
	for rows.Next() {
		chunk, err := scanStoredDocument(rows)
		if err != nil {
			return nil, nil, &StoreError{Op: "FindChunks", Err: err}
		}
		page = append(page, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &StoreError{Op: "FindChunks", Err: err}
	}
	return ref, page, nil
}

func pathEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pathHasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return pathEqual(path[:len(prefix)], prefix)
}
