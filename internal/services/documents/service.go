package documents

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/services/search"
)

// Service is the management surface over the document store: library
// listing, fuzzy existence checks, best-version selection, search and
// removal.
type Service struct {
	store     interfaces.DocumentStorage
	retriever *search.Retriever
	logger    arbor.ILogger
}

func NewService(logger arbor.ILogger, store interfaces.DocumentStorage, retriever *search.Retriever) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Service{
		store:     store,
		retriever: retriever,
		logger:    logger,
	}
}

// ListLibraries returns every indexed library with its versions, sorted by
// library name. Version order within a library comes from the store:
// unversioned first, then ascending semver.
func (s *Service) ListLibraries(ctx context.Context) ([]models.LibrarySummary, error) {
	byLibrary, err := s.store.QueryLibraryVersions(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(byLibrary))
	for name := range byLibrary {
		names = append(names, name)
	}
	sort.Strings(names)

	libraries := make([]models.LibrarySummary, 0, len(names))
	for _, name := range names {
		libraries = append(libraries, models.LibrarySummary{
			Name:     name,
			Versions: byLibrary[name],
		})
	}
	return libraries, nil
}

// ValidateLibraryExists returns LibraryNotFoundError with up to three
// closest known names when the library has never been indexed.
func (s *Service) ValidateLibraryExists(ctx context.Context, library string) error {
	library = normalizeName(library)
	byLibrary, err := s.store.QueryLibraryVersions(ctx)
	if err != nil {
		return err
	}
	if _, ok := byLibrary[library]; ok {
		return nil
	}

	known := make([]string, 0, len(byLibrary))
	for name := range byLibrary {
		known = append(known, name)
	}
	return &LibraryNotFoundError{
		Library:     library,
		Suggestions: suggestLibraries(library, known),
	}
}

// SearchStore runs hybrid search against one library version and returns
// context-expanded excerpts. The version must already be resolved; pass the
// empty string for unversioned documents.
func (s *Service) SearchStore(ctx context.Context, library, version, query string, limit int) ([]models.StoreSearchResult, error) {
	return s.retriever.Search(ctx, normalizeName(library), normalizeName(version), query, limit)
}

// RemoveVersion deletes a version's documents and row, dropping the library
// once it has no versions left. A version with an active indexing job is
// refused; cancel the job first.
func (s *Service) RemoveVersion(ctx context.Context, library, version string) (models.RemovalReport, error) {
	library = normalizeName(library)
	version = normalizeName(version)

	byLibrary, err := s.store.QueryLibraryVersions(ctx)
	if err != nil {
		return models.RemovalReport{}, err
	}
	for _, summary := range byLibrary[library] {
		if summary.Version != version {
			continue
		}
		switch summary.Status {
		case models.VersionStatusQueued, models.VersionStatusRunning, models.VersionStatusUpdating:
			return models.RemovalReport{}, &VersionActiveError{Library: library, Version: version, Status: summary.Status}
		}
	}

	report, err := s.store.RemoveVersion(ctx, library, version, true)
	if err != nil {
		return report, err
	}
	s.logger.Info().
		Str("library", library).
		Str("version", displayVersion(version)).
		Int64("documents", report.DocumentsDeleted).
		Bool("library_deleted", report.LibraryDeleted).
		Msg("Version removed")
	return report, nil
}

// RemoveAllDocuments clears a version's documents but keeps the version row
// and its stored scrape configuration for later re-indexing.
func (s *Service) RemoveAllDocuments(ctx context.Context, library, version string) (int64, error) {
	return s.store.DeleteDocuments(ctx, normalizeName(library), normalizeName(version))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func displayVersion(version string) string {
	if version == "" {
		return "unversioned"
	}
	return version
}
