package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// DocumentService is the management surface over the store: listings,
// version selection, existence validation and removal.
type DocumentService interface {
	// ListLibraries returns every library with its version summaries.
	ListLibraries(ctx context.Context) ([]models.LibrarySummary, error)

	// FindBestVersion picks the indexed version best satisfying the target
	// expression, tracking whether unversioned documents exist as fallback.
	FindBestVersion(ctx context.Context, library, targetVersion string) (models.VersionMatch, error)

	// ValidateLibraryExists fails with suggestions when the library is
	// unknown.
	ValidateLibraryExists(ctx context.Context, library string) error

	// SearchStore searches one (library, version) scope.
	SearchStore(ctx context.Context, library, version, query string, limit int) ([]models.StoreSearchResult, error)

	// RemoveVersion deletes a version and its documents, removing the
	// library too once its last version is gone.
	RemoveVersion(ctx context.Context, library, version string) (models.RemovalReport, error)

	// RemoveAllDocuments clears the chunks of one (library, version) while
	// keeping the version row.
	RemoveAllDocuments(ctx context.Context, library, version string) (int64, error)
}
