package splitter

import (
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Service splits documents into chunks sized for embedding, choosing a
// strategy from the document's MIME type. Splitting is deterministic:
// identical input yields identical chunks.
type Service struct {
	config common.SplitterConfig
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ContentSplitter = (*Service)(nil)

// NewService creates a content splitter with the given size configuration.
func NewService(config common.SplitterConfig, logger arbor.ILogger) *Service {
	if logger == nil {
		logger = common.GetLogger()
	}
	if config.PreferredChunkSize <= 0 {
		config.PreferredChunkSize = 1500
	}
	if config.MaxChunkSize < config.PreferredChunkSize {
		config.MaxChunkSize = config.PreferredChunkSize * 3
	}
	if config.MinChunkSize <= 0 || config.MinChunkSize > config.PreferredChunkSize {
		config.MinChunkSize = config.PreferredChunkSize / 3
	}
	return &Service{config: config, logger: logger}
}

// Split turns one document into ordered chunks. Markdown is sectioned along
// its heading hierarchy, source code is kept as fenced blocks, and anything
// else falls back to plain text packing.
func (s *Service) Split(doc models.Document) ([]models.ContentChunk, error) {
	content := strings.TrimSpace(doc.Content)
	if content == "" {
		return nil, nil
	}

	mimeType := doc.ContentType
	if mimeType == "" {
		mimeType = doc.Metadata.MimeType
	}

	switch {
	case isMarkdownMime(mimeType):
		return s.splitMarkdown(content)
	case isSourceCodeMime(mimeType):
		return s.splitCode(content, languageFromMime(mimeType)), nil
	default:
		return s.splitText(content), nil
	}
}

func isMarkdownMime(mimeType string) bool {
	switch baseMime(mimeType) {
	case "", "text/markdown", "text/x-markdown", "text/html", "application/xhtml+xml":
		// HTML reaches the splitter already converted to markdown by the
		// scrape pipeline; an absent type is treated as markdown too.
		return true
	}
	return false
}

func isSourceCodeMime(mimeType string) bool {
	base := baseMime(mimeType)
	if base == "application/json" || base == "text/javascript" || base == "application/javascript" {
		return true
	}
	if strings.HasPrefix(base, "text/x-") || strings.HasPrefix(base, "application/x-") {
		return true
	}
	return false
}

// languageFromMime derives a fence label like "go" or "json" from a code
// MIME type, or the empty string when none applies.
func languageFromMime(mimeType string) string {
	base := baseMime(mimeType)
	switch base {
	case "application/json":
		return "json"
	case "text/javascript", "application/javascript":
		return "javascript"
	}
	for _, prefix := range []string{"text/x-", "application/x-"} {
		if strings.HasPrefix(base, prefix) {
			return strings.TrimPrefix(base, prefix)
		}
	}
	return ""
}

func baseMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
