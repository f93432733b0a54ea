package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// SearchService answers library documentation queries. Implementations wrap
// the store's hybrid search and may expand hits with hierarchical context.
type SearchService interface {
	Search(ctx context.Context, library, version, query string, limit int) ([]models.StoreSearchResult, error)
}
