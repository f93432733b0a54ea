package models

// Scraper option defaults applied by WithDefaults.
const (
	DefaultMaxPages       = 1000
	DefaultMaxDepth       = 3
	DefaultMaxConcurrency = 3
	DefaultScope          = "subpages"
	DefaultScrapeMode     = "auto"
)

// ScraperOptions configures one scrape run. URL, Library and Version are
// runtime fields injected by the pipeline for each job; they are stripped
// before the options are persisted on the version row.
type ScraperOptions struct {
	URL     string `json:"url,omitempty" validate:"omitempty,min=1"`
	Library string `json:"library,omitempty"`
	Version string `json:"version,omitempty"`

	MaxPages         int               `json:"maxPages,omitempty" validate:"omitempty,min=1"`
	MaxDepth         int               `json:"maxDepth,omitempty" validate:"omitempty,min=0"`
	MaxConcurrency   int               `json:"maxConcurrency,omitempty" validate:"omitempty,min=1"`
	Scope            string            `json:"scope,omitempty" validate:"omitempty,oneof=subpages hostname domain"`
	FollowRedirects  *bool             `json:"followRedirects,omitempty"`
	IgnoreErrors     *bool             `json:"ignoreErrors,omitempty"`
	IncludePatterns  []string          `json:"includePatterns,omitempty"`
	ExcludePatterns  []string          `json:"excludePatterns,omitempty"`
	ExcludeSelectors []string          `json:"excludeSelectors,omitempty"`
	Headers          map[string]string `json:"headers,omitempty"`
	ScrapeMode       string            `json:"scrapeMode,omitempty" validate:"omitempty,oneof=fetch playwright auto"`
}

// WithDefaults returns a copy with unset fields replaced by their defaults.
func (o ScraperOptions) WithDefaults() ScraperOptions {
	out := o
	if out.MaxPages == 0 {
		out.MaxPages = DefaultMaxPages
	}
	if out.MaxDepth == 0 {
		out.MaxDepth = DefaultMaxDepth
	}
	if out.MaxConcurrency == 0 {
		out.MaxConcurrency = DefaultMaxConcurrency
	}
	if out.Scope == "" {
		out.Scope = DefaultScope
	}
	if out.ScrapeMode == "" {
		out.ScrapeMode = DefaultScrapeMode
	}
	if out.FollowRedirects == nil {
		out.FollowRedirects = boolPtr(true)
	}
	if out.IgnoreErrors == nil {
		out.IgnoreErrors = boolPtr(true)
	}
	return out
}

// ForStorage returns a copy with the runtime fields cleared, suitable for
// persisting on the version row for reproducible re-indexing.
func (o ScraperOptions) ForStorage() ScraperOptions {
	out := o
	out.URL = ""
	out.Library = ""
	out.Version = ""
	return out
}

func boolPtr(b bool) *bool { return &b }

// StoredScraperOptions is the persisted scrape configuration for a version:
// the original source URL plus the options minus runtime fields.
type StoredScraperOptions struct {
	SourceURL string         `json:"sourceUrl"`
	Options   ScraperOptions `json:"options"`
}

// ScraperProgress is one progress event emitted by a scraper. Document is
// set when the event carries a freshly processed page.
type ScraperProgress struct {
	PagesScraped    int       `json:"pagesScraped"`
	TotalPages      int       `json:"totalPages"`
	TotalDiscovered int       `json:"totalDiscovered"`
	CurrentURL      string    `json:"currentUrl"`
	Depth           int       `json:"depth"`
	MaxDepth        int       `json:"maxDepth"`
	Document        *Document `json:"document,omitempty"`
}

// ProgressCallback receives scraper progress events in emission order.
// Returning an error aborts the scrape and propagates to the caller.
type ProgressCallback func(progress ScraperProgress) error
