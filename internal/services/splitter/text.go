package splitter

import (
	"strings"

	"github.com/ternarybob/scriptor/internal/models"
)

// splitText packs plain text paragraphs toward the preferred size with the
// hard cap enforced. Used for any MIME type without a dedicated strategy.
func (s *Service) splitText(content string) []models.ContentChunk {
	var chunks []models.ContentChunk
	var buf strings.Builder

	flush := func() {
		if c := strings.TrimSpace(buf.String()); c != "" {
			chunks = append(chunks, models.ContentChunk{Content: c})
		}
		buf.Reset()
	}

	for _, paragraph := range strings.Split(content, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for _, part := range splitOversize(paragraph, s.config.MaxChunkSize) {
			if buf.Len() > 0 && buf.Len()+len(part)+2 > s.config.PreferredChunkSize {
				flush()
			}
			if buf.Len() > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(part)
		}
	}
	flush()

	return s.mergeSmallChunks(chunks)
}
