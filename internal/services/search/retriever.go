package search

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Context expansion widths around each hit. A handful of neighbours is
// enough to rehydrate a readable excerpt without ballooning the response.
const (
	precedingSiblingLimit  = 2
	subsequentSiblingLimit = 2
	childChunkLimit        = 5
)

// Retriever turns raw hybrid-search hits into per-URL excerpts by merging
// each hit with the chunks around it in the page hierarchy.
type Retriever struct {
	store  interfaces.DocumentStorage
	config *common.Config
	logger arbor.ILogger
}

func NewRetriever(logger arbor.ILogger, config *common.Config, store interfaces.DocumentStorage) *Retriever {
	if logger == nil {
		logger = common.GetLogger()
	}
	if config == nil {
		config = common.NewDefaultConfig()
	}
	return &Retriever{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Search runs hybrid search and groups the hits by URL. Hits arrive in
// fused-score order, so the first hit seen for a URL is its representative
// and result order follows the best score per page.
func (r *Retriever) Search(ctx context.Context, library, version, query string, limit int) ([]models.StoreSearchResult, error) {
	if limit <= 0 {
		limit = r.config.Search.DefaultLimit
	}

	hits, err := r.store.FindByContent(ctx, library, version, query, limit)
	if err != nil {
		return nil, err
	}

	type excerpt struct {
		score  float64
		chunks map[int64]models.StoredDocument
	}
	pages := make(map[string]*excerpt)
	var order []string

	for _, hit := range hits {
		page, ok := pages[hit.URL]
		if !ok {
			page = &excerpt{score: hit.Score, chunks: make(map[int64]models.StoredDocument)}
			pages[hit.URL] = page
			order = append(order, hit.URL)
		}
		page.chunks[hit.ID] = hit.StoredDocument

		if r.config.Search.ExpandContext {
			for _, chunk := range r.contextFor(ctx, library, version, hit.ID) {
				page.chunks[chunk.ID] = chunk
			}
		}
	}

	results := make([]models.StoreSearchResult, 0, len(order))
	for _, url := range order {
		page := pages[url]
		results = append(results, models.StoreSearchResult{
			URL:     url,
			Content: joinChunks(page.chunks),
			Score:   page.score,
		})
	}
	return results, nil
}

// contextFor fetches the chunks surrounding a hit: parent, nearest siblings
// on both sides, and the first children. Expansion is best effort; a failed
// lookup degrades the excerpt, never the search.
func (r *Retriever) contextFor(ctx context.Context, library, version string, id int64) []models.StoredDocument {
	var chunks []models.StoredDocument

	parent, err := r.store.FindParentChunk(ctx, library, version, id)
	if err != nil {
		r.logger.Warn().Err(err).Int64("id", id).Msg("Parent chunk lookup failed")
	} else if parent != nil {
		chunks = append(chunks, *parent)
	}

	preceding, err := r.store.FindPrecedingSiblings(ctx, library, version, id, precedingSiblingLimit)
	if err != nil {
		r.logger.Warn().Err(err).Int64("id", id).Msg("Preceding sibling lookup failed")
	} else {
		chunks = append(chunks, preceding...)
	}

	children, err := r.store.FindChildChunks(ctx, library, version, id, childChunkLimit)
	if err != nil {
		r.logger.Warn().Err(err).Int64("id", id).Msg("Child chunk lookup failed")
	} else {
		chunks = append(chunks, children...)
	}

	subsequent, err := r.store.FindSubsequentSiblings(ctx, library, version, id, subsequentSiblingLimit)
	if err != nil {
		r.logger.Warn().Err(err).Int64("id", id).Msg("Subsequent sibling lookup failed")
	} else {
		chunks = append(chunks, subsequent...)
	}

	return chunks
}

// joinChunks assembles an excerpt in document order, deduplicated by id.
func joinChunks(chunks map[int64]models.StoredDocument) string {
	ordered := make([]models.StoredDocument, 0, len(chunks))
	for _, chunk := range chunks {
		ordered = append(ordered, chunk)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].SortOrder == ordered[j].SortOrder {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].SortOrder < ordered[j].SortOrder
	})

	parts := make([]string, 0, len(ordered))
	for _, chunk := range ordered {
		if text := strings.TrimSpace(chunk.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
