package sqlite

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
	"github.com/ternarybob/scriptor/internal/services/splitter"
)

// testDimension keeps test vectors small enough to reason about by hand.
const testDimension = 4

// setupTestStore creates a document store over a fresh database in a temp
// directory. Config mutators run before the database is opened.
func setupTestStore(t *testing.T, embedder interfaces.EmbeddingProvider, mutate ...func(*common.Config)) *DocumentStorage {
	t.Helper()

	config := common.NewDefaultConfig()
	config.Storage.VectorDimension = testDimension
	config.Storage.WALEnabled = false // simpler cleanup
	config.Search.ExpandContext = false
	for _, m := range mutate {
		m(config)
	}

	logger := arbor.NewLogger()
	dbPath := filepath.Join(t.TempDir(), "documents.db")
	db, err := NewSQLiteDB(logger, dbPath, &config.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewDocumentStorage(db, embedder, splitter.NewService(config.Splitter, logger), config, logger)
}

// chunkDoc builds a pre-split chunk document for AddDocuments.
func chunkDoc(url, title, content string, path ...string) models.Document {
	return models.Document{
		Content:     content,
		ContentType: "text/markdown",
		Metadata: models.DocumentMetadata{
			Title: title,
			URL:   url,
			Path:  path,
			Level: len(path),
		},
	}
}

func countRows(t *testing.T, store *DocumentStorage, query string, args ...interface{}) int {
	t.Helper()
	var n int
	require.NoError(t, store.db.DB().QueryRow(query, args...).Scan(&n))
	return n
}

// stubEmbedder returns canned vectors keyed by substring of the embedding
// text, recording every EmbedDocuments batch. Keys are checked in sorted
// order so overlapping fixtures stay deterministic.
type stubEmbedder struct {
	mu       sync.Mutex
	byKey    map[string][]float32
	fallback []float32
	queryVec []float32
	batches  [][]string
	fail     error
}

var _ interfaces.EmbeddingProvider = (*stubEmbedder)(nil)

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{
		byKey:    make(map[string][]float32),
		fallback: []float32{0, 0, 0, 1},
	}
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	if e.queryVec != nil {
		return e.queryVec, nil
	}
	return e.vectorFor(text), nil
}

func (e *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.mu.Lock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	e.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vectorFor(text)
	}
	return vectors, nil
}

func (e *stubEmbedder) vectorFor(text string) []float32 {
	keys := make([]string, 0, len(e.byKey))
	for key := range e.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.Contains(text, key) {
			return e.byKey[key]
		}
	}
	return e.fallback
}

func (e *stubEmbedder) recordedBatches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.batches))
	copy(out, e.batches)
	return out
}

func (e *stubEmbedder) Dimension() int { return testDimension }
func (e *stubEmbedder) Model() string  { return "stub" }
func (e *stubEmbedder) Close() error   { return nil }

// wideEmbedder always returns vectors wider than the store column.
type wideEmbedder struct {
	width int
}

var _ interfaces.EmbeddingProvider = (*wideEmbedder)(nil)

func (e *wideEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, e.width), nil
}

func (e *wideEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = make([]float32, e.width)
	}
	return vectors, nil
}

func (e *wideEmbedder) Dimension() int { return e.width }
func (e *wideEmbedder) Model() string  { return "wide-stub" }
func (e *wideEmbedder) Close() error   { return nil }
