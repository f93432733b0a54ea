package documents

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/services/search"
	"github.com/ternarybob/scriptor/internal/services/splitter"
	"github.com/ternarybob/scriptor/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.DocumentStorage) {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Storage.WALEnabled = false
	config.Search.ExpandContext = false
	logger := arbor.NewLogger()

	db, err := sqlite.NewSQLiteDB(logger, filepath.Join(t.TempDir(), "documents.db"), &config.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewDocumentStorage(db, nil, splitter.NewService(config.Splitter, logger), config, logger)
	return NewService(logger, store, search.NewRetriever(logger, config, store)), store
}

func seedChunk(t *testing.T, store *sqlite.DocumentStorage, library, version, url, content string) {
	t.Helper()
	require.NoError(t, store.AddDocuments(context.Background(), library, version, []models.Document{{
		Content:     content,
		ContentType: "text/markdown",
		Metadata:    models.DocumentMetadata{URL: url, Title: "Doc"},
	}}))
}

func TestFindBestVersion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, version := range []string{"", "1.0.0", "1.1.0", "2.0.0"} {
		seedChunk(t, store, "react", version, "file:///"+version+"/index.md", "body for "+version)
	}

	tests := []struct {
		name   string
		target string
		want   models.VersionMatch
	}{
		{"exact match", "1.0.0", models.VersionMatch{BestMatch: "1.0.0", HasUnversioned: true}},
		{"exact above all falls back to highest", "3.0.0", models.VersionMatch{BestMatch: "2.0.0", HasUnversioned: true}},
		{"x-range", "1.x", models.VersionMatch{BestMatch: "1.1.0", HasUnversioned: true}},
		{"bare major widens to tilde", "1", models.VersionMatch{BestMatch: "1.1.0", HasUnversioned: true}},
		{"major.minor widens to tilde", "1.0", models.VersionMatch{BestMatch: "1.0.0", HasUnversioned: true}},
		{"empty means latest", "", models.VersionMatch{BestMatch: "2.0.0", HasUnversioned: true}},
		{"latest keyword", "latest", models.VersionMatch{BestMatch: "2.0.0", HasUnversioned: true}},
		{"no satisfying version falls back to unversioned", "0.5.0", models.VersionMatch{HasUnversioned: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := svc.FindBestVersion(ctx, "react", tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, match)
		})
	}
}

func TestFindBestVersion_NoMatchWithoutUnversioned(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "vue", "2.0.0", "file:///vue/index.md", "vue body")

	_, err := svc.FindBestVersion(ctx, "vue", ">=9")
	var notFound *VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "vue", notFound.Library)
	assert.Equal(t, ">=9", notFound.Requested)
	require.Len(t, notFound.Available, 1)
	assert.Equal(t, "2.0.0", notFound.Available[0].Version)
	assert.Contains(t, err.Error(), "available: 2.0.0")
}

func TestFindBestVersion_UnknownLibrary(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.FindBestVersion(context.Background(), "ghost", "1.0.0")
	var notFound *VersionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "no versions indexed")
}

func TestValidateLibraryExists(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, library := range []string{"react", "redux", "vue"} {
		seedChunk(t, store, library, "", "file:///"+library+"/index.md", library+" body")
	}

	require.NoError(t, svc.ValidateLibraryExists(ctx, "React"), "lookup is case-insensitive")

	err := svc.ValidateLibraryExists(ctx, "raect")
	var notFound *LibraryNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "raect", notFound.Library)
	require.NotEmpty(t, notFound.Suggestions)
	assert.Equal(t, "react", notFound.Suggestions[0], "the closest name comes first")
	assert.Contains(t, err.Error(), "did you mean")

	err = svc.ValidateLibraryExists(ctx, "zzzz")
	require.ErrorAs(t, err, &notFound)
	assert.Empty(t, notFound.Suggestions, "far-off names are not suggested")
}

func TestRemoveVersion_RefusesActiveVersion(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "react", "18.2.0", "file:///index.md", "react body")
	_, versionID, err := store.ResolveIds(ctx, "react", "18.2.0")
	require.NoError(t, err)
	require.NoError(t, store.UpdateVersionStatus(ctx, versionID, models.VersionStatusRunning, ""))

	_, err = svc.RemoveVersion(ctx, "react", "18.2.0")
	var active *VersionActiveError
	require.ErrorAs(t, err, &active)
	assert.Equal(t, models.VersionStatusRunning, active.Status)
	assert.Contains(t, err.Error(), "cancel the job first")

	exists, err := store.CheckDocumentExists(ctx, "react", "18.2.0")
	require.NoError(t, err)
	assert.True(t, exists, "a refused removal leaves the documents alone")
}

func TestRemoveVersion_LastVersionDropsLibrary(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "react", "18.2.0", "file:///index.md", "react body")

	report, err := svc.RemoveVersion(ctx, "react", "18.2.0")
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.DocumentsDeleted)
	assert.True(t, report.VersionDeleted)
	assert.True(t, report.LibraryDeleted)

	libraries, err := svc.ListLibraries(ctx)
	require.NoError(t, err)
	assert.Empty(t, libraries)
}

func TestRemoveVersion_KeepsLibraryWithRemainingVersions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "react", "17.0.0", "file:///17/index.md", "seventeen")
	seedChunk(t, store, "react", "18.2.0", "file:///18/index.md", "eighteen")

	report, err := svc.RemoveVersion(ctx, "react", "17.0.0")
	require.NoError(t, err)
	assert.True(t, report.VersionDeleted)
	assert.False(t, report.LibraryDeleted)

	libraries, err := svc.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libraries, 1)
	require.Len(t, libraries[0].Versions, 1)
	assert.Equal(t, "18.2.0", libraries[0].Versions[0].Version)
}

func TestRemoveAllDocuments_KeepsVersionRow(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "react", "18.2.0", "file:///index.md", "react body")
	_, versionID, err := store.ResolveIds(ctx, "react", "18.2.0")
	require.NoError(t, err)
	require.NoError(t, store.StoreScraperOptions(ctx, versionID, models.ScraperOptions{
		URL:      "file:///docs",
		MaxPages: 25,
	}))

	deleted, err := svc.RemoveAllDocuments(ctx, "React", "18.2.0")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	exists, err := store.CheckDocumentExists(ctx, "react", "18.2.0")
	require.NoError(t, err)
	assert.False(t, exists)

	// The version row and its scrape configuration survive for re-indexing.
	libraries, err := svc.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libraries, 1)
	stored, err := store.GetScraperOptions(ctx, versionID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "file:///docs", stored.SourceURL)
}

func TestListLibraries_SortedByName(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, library := range []string{"vue", "angular", "react"} {
		seedChunk(t, store, library, "1.0.0", "file:///"+library+"/index.md", library+" body")
	}

	libraries, err := svc.ListLibraries(ctx)
	require.NoError(t, err)
	require.Len(t, libraries, 3)
	assert.Equal(t, "angular", libraries[0].Name)
	assert.Equal(t, "react", libraries[1].Name)
	assert.Equal(t, "vue", libraries[2].Name)
}

func TestSearchStore_NormalizesNames(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	seedChunk(t, store, "react", "18.2.0", "file:///hooks.md", "everything about hooks")

	results, err := svc.SearchStore(ctx, " React ", " 18.2.0 ", "hooks", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "file:///hooks.md", results[0].URL)
	assert.Contains(t, results[0].Content, "hooks")
}

func TestVersionRange(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"", "*"},
		{"latest", "*"},
		{"2", "~2"},
		{"2.1", "~2.1"},
		{"2.1.3", "2.1.3 || <=2.1.3"},
		{"1.x", "1.x"},
		{">=1.2 <2", ">=1.2 <2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, versionRange(tt.target), "target %q", tt.target)
	}
}
