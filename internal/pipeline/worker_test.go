package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// failingStore fails AddDocument for matching URLs and delegates everything
// else to the wrapped store.
type failingStore struct {
	interfaces.DocumentStorage
	failSubstring string
}

func (s *failingStore) AddDocument(ctx context.Context, library, version string, doc models.Document) error {
	if strings.Contains(doc.Metadata.URL, s.failSubstring) {
		return errors.New("disk full")
	}
	return s.DocumentStorage.AddDocument(ctx, library, version, doc)
}

func TestScrapeContinuesPastBadPage(t *testing.T) {
	store := newTestStore(t)
	failing := &failingStore{DocumentStorage: store, failSubstring: "page-2"}
	scraper := &fakeScraper{pages: []models.Document{
		pageDoc("file:///docs/page-1.md", "One", "first page body"),
		pageDoc("file:///docs/page-2.md", "Two", "second page body"),
		pageDoc("file:///docs/page-3.md", "Three", "third page body"),
	}}
	manager := newTestManager(t, failing, scraper)

	var mu sync.Mutex
	var failedURLs []string
	rawDocuments := 0
	leakedPayload := false
	manager.SetCallbacks(interfaces.PipelineCallbacks{
		OnJobProgress: func(job *models.Job, progress models.ScraperProgress) {
			mu.Lock()
			defer mu.Unlock()
			if progress.Document != nil {
				rawDocuments++
			}
			if job.Progress != nil && job.Progress.Document != nil {
				leakedPayload = true
			}
		},
		OnJobError: func(job *models.Job, err error, doc *models.Document) {
			mu.Lock()
			defer mu.Unlock()
			url := "<nil>"
			if doc != nil {
				url = doc.Metadata.URL
			}
			failedURLs = append(failedURLs, url)
		},
	})

	ctx := waitCtx(t)
	id, err := manager.EnqueueJob(ctx, "react", "", &models.ScraperOptions{URL: "file:///docs"})
	require.NoError(t, err)
	require.NoError(t, manager.WaitForJobCompletion(ctx, id), "one bad page must not fail the job")

	job, err := manager.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"file:///docs/page-2.md"}, failedURLs)
	assert.Equal(t, 3, rawDocuments, "the raw progress event carries each page")
	assert.False(t, leakedPayload, "job snapshots never carry page payloads")

	libraries, err := store.QueryLibraryVersions(ctx)
	require.NoError(t, err)
	require.Len(t, libraries["react"], 1)
	summary := libraries["react"][0]
	assert.EqualValues(t, 2, summary.UniqueURLCount, "the two good pages are stored")
	assert.EqualValues(t, 2, summary.DocumentCount)

	record, err := store.GetVersionByID(ctx, job.VersionID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 3, record.ProgressPages, "progress counts every scraped page, stored or not")
}

func TestWorkerPanicFailsJobAndFreesSlot(t *testing.T) {
	store := newTestStore(t)
	scraper := &fakeScraper{
		panicURL: "file:///boom",
		pages:    []models.Document{pageDoc("file:///ok.md", "OK", "fine body")},
	}
	manager := newTestManager(t, store, scraper)
	ctx := waitCtx(t)

	broken, err := manager.EnqueueJob(ctx, "react", "", &models.ScraperOptions{URL: "file:///boom"})
	require.NoError(t, err)

	err = manager.WaitForJobCompletion(ctx, broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job panicked")

	job, err := manager.GetJob(ctx, broken)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "scraper blew up")

	// The worker slot survives the panic.
	next, err := manager.EnqueueJob(ctx, "vue", "", &models.ScraperOptions{URL: "file:///fine"})
	require.NoError(t, err)
	require.NoError(t, manager.WaitForJobCompletion(ctx, next))
}

func TestReindexClearsExistingDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := waitCtx(t)

	require.NoError(t, store.AddDocuments(ctx, "react", "", []models.Document{
		{
			Content:     "stale zebra paragraph",
			ContentType: "text/markdown",
			Metadata:    models.DocumentMetadata{URL: "file:///old.md", Title: "Old"},
		},
	}))

	scraper := &fakeScraper{pages: []models.Document{
		pageDoc("file:///new.md", "New", "fresh walrus paragraph"),
	}}
	manager := newTestManager(t, store, scraper)

	id, err := manager.EnqueueJob(ctx, "react", "", &models.ScraperOptions{URL: "file:///docs"})
	require.NoError(t, err)
	require.NoError(t, manager.WaitForJobCompletion(ctx, id))

	stale, err := store.FindByContent(ctx, "react", "", "zebra", 5)
	require.NoError(t, err)
	assert.Empty(t, stale, "re-indexing drops the previous corpus")

	fresh, err := store.FindByContent(ctx, "react", "", "walrus", 5)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, "file:///new.md", fresh[0].URL)
}
