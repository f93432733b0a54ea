package interfaces

import (
	"github.com/ternarybob/scriptor/internal/models"
)

// ContentSplitter turns one page into ordered chunks carrying section
// hierarchy. Implementations pick a strategy from the document's MIME type.
type ContentSplitter interface {
	Split(doc models.Document) ([]models.ContentChunk, error)
}
