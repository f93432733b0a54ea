package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// CancellationToken is the cooperative cancel signal a scraper polls between
// units of work. The pipeline owns the concrete token; scrapers only read it.
type CancellationToken interface {
	IsCancelled() bool
	Done() <-chan struct{}
}

// Scraper streams progress events, each optionally carrying a processed
// document, to the callback in emission order. A callback error aborts the
// scrape and is returned as-is.
type Scraper interface {
	Scrape(ctx context.Context, opts models.ScraperOptions, onProgress models.ProgressCallback, cancel CancellationToken) error
}
