package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/models"
)

func TestAddDocuments_ReplacesChunksPerURL(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	pageA := "file:///docs/a.md"
	pageB := "file:///docs/b.md"

	err := store.AddDocuments(ctx, "react", "18.2.0", []models.Document{
		chunkDoc(pageA, "Page A", "first chunk of a"),
		chunkDoc(pageA, "Page A", "second chunk of a"),
		chunkDoc(pageA, "Page A", "third chunk of a"),
		chunkDoc(pageB, "Page B", "only chunk of b"),
	})
	require.NoError(t, err)

	// Re-adding page A with fewer chunks must leave exactly the new set.
	err = store.AddDocuments(ctx, "react", "18.2.0", []models.Document{
		chunkDoc(pageA, "Page A", "rewritten first"),
		chunkDoc(pageA, "Page A", "rewritten second"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, countRows(t, store, `SELECT COUNT(*) FROM documents WHERE url = ?`, pageA))
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM documents WHERE url = ?`, pageB))

	rows, err := store.db.DB().Query(
		`SELECT content, sort_order FROM documents WHERE url = ? ORDER BY sort_order`, pageA)
	require.NoError(t, err)
	defer rows.Close()

	var contents []string
	var orders []int
	for rows.Next() {
		var content string
		var order int
		require.NoError(t, rows.Scan(&content, &order))
		contents = append(contents, content)
		orders = append(orders, order)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"rewritten first", "rewritten second"}, contents)
	assert.Equal(t, []int{0, 1}, orders)

	// FTS shadow rows follow through the triggers.
	assert.Equal(t,
		countRows(t, store, `SELECT COUNT(*) FROM documents`),
		countRows(t, store, `SELECT COUNT(*) FROM documents_fts`))
}

func TestAddDocuments_SortOrderCountsPerURL(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	// Interleaved URLs in one batch each get their own 0-based sequence.
	err := store.AddDocuments(ctx, "lib", "", []models.Document{
		chunkDoc("file:///a.md", "A", "a zero"),
		chunkDoc("file:///b.md", "B", "b zero"),
		chunkDoc("file:///a.md", "A", "a one"),
		chunkDoc("file:///b.md", "B", "b one"),
	})
	require.NoError(t, err)

	for _, url := range []string{"file:///a.md", "file:///b.md"} {
		var minOrder, maxOrder int
		require.NoError(t, store.db.DB().QueryRow(
			`SELECT MIN(sort_order), MAX(sort_order) FROM documents WHERE url = ?`, url).
			Scan(&minOrder, &maxOrder))
		assert.Equal(t, 0, minOrder, url)
		assert.Equal(t, 1, maxOrder, url)
	}
}

func TestAddDocuments_EmptyBatchIsNoop(t *testing.T) {
	store := setupTestStore(t, nil)

	require.NoError(t, store.AddDocuments(context.Background(), "lib", "", nil))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM libraries`))
}

func TestAddDocument_SplitsPageIntoChunks(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	page := models.Document{
		Content:     "# Guide\n\nIntro text for the guide.\n\n## Install\n\nRun the installer and follow the prompts.\n",
		ContentType: "text/markdown",
		Metadata: models.DocumentMetadata{
			Title: "Guide",
			URL:   "file:///docs/guide.md",
		},
	}
	require.NoError(t, store.AddDocument(ctx, "lib", "1.0.0", page))

	rows, err := store.db.DB().Query(
		`SELECT metadata, sort_order FROM documents WHERE url = ? ORDER BY sort_order`, page.Metadata.URL)
	require.NoError(t, err)
	defer rows.Close()

	var paths [][]string
	for rows.Next() {
		var metadataJSON string
		var order int
		require.NoError(t, rows.Scan(&metadataJSON, &order))
		var meta models.DocumentMetadata
		require.NoError(t, json.Unmarshal([]byte(metadataJSON), &meta))
		paths = append(paths, meta.Path)
	}
	require.NoError(t, rows.Err())

	require.Len(t, paths, 2)
	assert.Equal(t, []string{"Guide"}, paths[0])
	assert.Equal(t, []string{"Guide", "Install"}, paths[1])
}

func TestAddDocument_RequiresURL(t *testing.T) {
	store := setupTestStore(t, nil)

	err := store.AddDocument(context.Background(), "lib", "", models.Document{Content: "text"})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "AddDocument", storeErr.Op)
}

func TestAddDocuments_RequiresURLOnEveryChunk(t *testing.T) {
	store := setupTestStore(t, nil)

	err := store.AddDocuments(context.Background(), "lib", "", []models.Document{
		chunkDoc("file:///a.md", "A", "has a url"),
		{Content: "missing url"},
	})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "AddDocuments", storeErr.Op)

	// The batch is rejected before any row is written.
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM documents`))
}

func TestAddDocuments_BatchBudgets(t *testing.T) {
	t.Run("item count", func(t *testing.T) {
		embedder := newStubEmbedder()
		store := setupTestStore(t, embedder, func(c *common.Config) {
			c.Embeddings.BatchSize = 3
			c.Embeddings.BatchChars = 1 << 20
		})

		docs := make([]models.Document, 7)
		for i := range docs {
			docs[i] = chunkDoc(fmt.Sprintf("file:///p%d.md", i), "P", fmt.Sprintf("chunk %d", i))
		}
		require.NoError(t, store.AddDocuments(context.Background(), "lib", "", docs))

		batches := embedder.recordedBatches()
		require.Len(t, batches, 3)
		assert.Len(t, batches[0], 3)
		assert.Len(t, batches[1], 3)
		assert.Len(t, batches[2], 1)
	})

	t.Run("character budget", func(t *testing.T) {
		embedder := newStubEmbedder()
		budget := 400
		store := setupTestStore(t, embedder, func(c *common.Config) {
			c.Embeddings.BatchSize = 100
			c.Embeddings.BatchChars = budget
		})

		docs := make([]models.Document, 6)
		for i := range docs {
			docs[i] = chunkDoc(fmt.Sprintf("file:///p%d.md", i), "P",
				fmt.Sprintf("chunk %d %s", i, strings.Repeat("x", 150)))
		}
		require.NoError(t, store.AddDocuments(context.Background(), "lib", "", docs))

		batches := embedder.recordedBatches()
		require.Greater(t, len(batches), 1, "character budget should force multiple batches")

		total := 0
		for _, batch := range batches {
			chars := 0
			for _, text := range batch {
				chars += len(text)
			}
			// A batch may exceed the budget only when a single text does.
			if len(batch) > 1 {
				assert.LessOrEqual(t, chars, budget)
			}
			total += len(batch)
		}
		assert.Equal(t, len(docs), total, "every chunk embedded exactly once")
	})
}

func TestAddDocuments_RejectsWideEmbeddings(t *testing.T) {
	store := setupTestStore(t, &wideEmbedder{width: testDimension + 4})

	err := store.AddDocuments(context.Background(), "lib", "", []models.Document{
		chunkDoc("file:///a.md", "A", "content"),
	})

	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, testDimension+4, dimErr.ModelDimension)
	assert.Equal(t, testDimension, dimErr.StoreDimension)
	assert.Equal(t, "wide-stub", dimErr.Model)

	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM documents`))
}

func TestAddDocuments_PadsNarrowEmbeddings(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.fallback = []float32{0.5, 0.5}
	store := setupTestStore(t, embedder)

	require.NoError(t, store.AddDocuments(context.Background(), "lib", "", []models.Document{
		chunkDoc("file:///a.md", "A", "content"),
	}))

	var blobLen int
	require.NoError(t, store.db.DB().QueryRow(
		`SELECT LENGTH(embedding) FROM documents LIMIT 1`).Scan(&blobLen))
	assert.Equal(t, testDimension*4, blobLen, "vectors are zero-padded to the store width")
}

func TestAddDocuments_EmbedderFailureAborts(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.fail = errors.New("upstream unavailable")
	store := setupTestStore(t, embedder)

	err := store.AddDocuments(context.Background(), "lib", "", []models.Document{
		chunkDoc("file:///a.md", "A", "content"),
	})
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Contains(t, err.Error(), "upstream unavailable")
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM documents`))
}

func TestRemoveVersion_CascadeDeletesLastVersion(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, "react", "18.2.0", []models.Document{
		chunkDoc("file:///a.md", "A", "alpha"),
		chunkDoc("file:///b.md", "B", "beta"),
	}))

	report, err := store.RemoveVersion(ctx, "react", "18.2.0", true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), report.DocumentsDeleted)
	assert.True(t, report.VersionDeleted)
	assert.True(t, report.LibraryDeleted)

	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM documents`))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM documents_fts`))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM versions`))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM libraries`))
}

func TestRemoveVersion_KeepsLibraryWithOtherVersions(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, "react", "17.0.0", []models.Document{
		chunkDoc("file:///old.md", "Old", "previous docs"),
	}))
	require.NoError(t, store.AddDocuments(ctx, "react", "18.2.0", []models.Document{
		chunkDoc("file:///new.md", "New", "current docs"),
	}))

	report, err := store.RemoveVersion(ctx, "react", "17.0.0", true)
	require.NoError(t, err)
	assert.True(t, report.VersionDeleted)
	assert.False(t, report.LibraryDeleted)

	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM libraries`))
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM versions`))
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM documents`))
}

func TestRemoveVersion_KeepLibraryWhenAsked(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, "react", "18.2.0", []models.Document{
		chunkDoc("file:///a.md", "A", "alpha"),
	}))

	report, err := store.RemoveVersion(ctx, "react", "18.2.0", false)
	require.NoError(t, err)
	assert.True(t, report.VersionDeleted)
	assert.False(t, report.LibraryDeleted)
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM libraries`))
}

func TestRemoveVersion_MissingIsNoop(t *testing.T) {
	store := setupTestStore(t, nil)

	report, err := store.RemoveVersion(context.Background(), "ghost", "1.0.0", true)
	require.NoError(t, err)
	assert.Equal(t, models.RemovalReport{}, report)
}

func TestDeleteDocumentsByURL(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, "lib", "", []models.Document{
		chunkDoc("file:///keep.md", "Keep", "keep me"),
		chunkDoc("file:///drop.md", "Drop", "drop me"),
		chunkDoc("file:///drop.md", "Drop", "drop me too"),
	}))

	deleted, err := store.DeleteDocumentsByURL(ctx, "lib", "", "file:///drop.md")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM documents`))

	// Unknown scope deletes nothing and is not an error.
	deleted, err = store.DeleteDocumentsByURL(ctx, "ghost", "", "file:///drop.md")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestQueryUniqueVersions_OnlyListsVersionsWithDocuments(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.AddDocuments(ctx, "lib", "1.0.0", []models.Document{
		chunkDoc("file:///a.md", "A", "alpha"),
	}))
	require.NoError(t, store.AddDocuments(ctx, "lib", "", []models.Document{
		chunkDoc("file:///u.md", "U", "unversioned"),
	}))
	// Version row without documents, as EnqueueJob leaves behind before the
	// first page lands.
	_, _, err := store.ResolveIds(ctx, "lib", "2.0.0")
	require.NoError(t, err)

	versions, err := store.QueryUniqueVersions(ctx, "lib")
	require.NoError(t, err)
	assert.Equal(t, []string{"", "1.0.0"}, versions)

	exists, err := store.CheckDocumentExists(ctx, "lib", "2.0.0")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.CheckDocumentExists(ctx, "lib", "1.0.0")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestResolveIds_NormalizesNames(t *testing.T) {
	store := setupTestStore(t, nil)
	ctx := context.Background()

	lib1, ver1, err := store.ResolveIds(ctx, "React", " 18.2.0 ")
	require.NoError(t, err)
	lib2, ver2, err := store.ResolveIds(ctx, "react", "18.2.0")
	require.NoError(t, err)

	assert.Equal(t, lib1, lib2)
	assert.Equal(t, ver1, ver2)
}

func TestEmbeddingText_Layout(t *testing.T) {
	doc := chunkDoc("file:///guide.md", "Guide", "Install the package.", "Guide", "Install")

	text := embeddingText(doc)
	assert.Equal(t,
		"<title>Guide</title>\n<url>file:///guide.md</url>\n<path>Guide / Install</path>\nInstall the package.",
		text)
}
