package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// DocumentStorage is the versioned chunk store: library/version identity,
// chunk persistence with embeddings, hybrid search and hierarchy navigation.
// Library and version names are lowercased throughout; the empty string is
// the canonical unversioned variant.
type DocumentStorage interface {
	// ResolveIds upserts the library and version rows and returns their ids.
	ResolveIds(ctx context.Context, library, version string) (libraryID, versionID int64, err error)

	// AddDocument splits a page into chunks and stores them via AddDocuments.
	AddDocument(ctx context.Context, library, version string, doc models.Document) error

	// AddDocuments stores pre-split chunk documents atomically. Existing
	// chunks are replaced per URL group, making the call idempotent at URL
	// granularity.
	AddDocuments(ctx context.Context, library, version string, docs []models.Document) error

	DeleteDocuments(ctx context.Context, library, version string) (int64, error)
	DeleteDocumentsByURL(ctx context.Context, library, version, url string) (int64, error)
	RemoveVersion(ctx context.Context, library, version string, removeLibraryIfEmpty bool) (models.RemovalReport, error)
	CheckDocumentExists(ctx context.Context, library, version string) (bool, error)

	QueryUniqueVersions(ctx context.Context, library string) ([]string, error)
	QueryLibraryVersions(ctx context.Context) (map[string][]models.VersionSummary, error)

	// FindByContent runs hybrid vector + full-text search fused by
	// reciprocal rank fusion, scoped to one (library, version).
	FindByContent(ctx context.Context, library, version, query string, limit int) ([]models.SearchResult, error)

	// Hierarchy navigation, all scoped to the reference chunk's URL.
	GetByID(ctx context.Context, library, version string, id int64) (*models.StoredDocument, error)
	FindChildChunks(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error)
	FindPrecedingSiblings(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error)
	FindSubsequentSiblings(ctx context.Context, library, version string, id int64, limit int) ([]models.StoredDocument, error)
	FindParentChunk(ctx context.Context, library, version string, id int64) (*models.StoredDocument, error)
	FindChunksByIds(ctx context.Context, library, version string, ids []int64) ([]models.StoredDocument, error)

	// Version state and stored scrape configuration.
	UpdateVersionStatus(ctx context.Context, versionID int64, status models.VersionStatus, errorMessage string) error
	UpdateVersionProgress(ctx context.Context, versionID int64, pages, maxPages int) error
	GetVersionsByStatus(ctx context.Context, statuses []models.VersionStatus) ([]models.VersionRecord, error)
	GetVersionByID(ctx context.Context, versionID int64) (*models.VersionRecord, error)
	StoreScraperOptions(ctx context.Context, versionID int64, opts models.ScraperOptions) error
	GetScraperOptions(ctx context.Context, versionID int64) (*models.StoredScraperOptions, error)
	FindVersionsBySourceURL(ctx context.Context, url string) ([]models.VersionRecord, error)

	Close() error
}
