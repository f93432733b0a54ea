package splitter

import "github.com/ternarybob/scriptor/internal/models"

// splitCode keeps a source file as fenced blocks: one chunk when it fits,
// line-grouped fenced chunks otherwise. Code chunks carry no section path.
func (s *Service) splitCode(content, language string) []models.ContentChunk {
	var chunks []models.ContentChunk
	for _, fenced := range s.fenceCode(content, language) {
		chunks = append(chunks, models.ContentChunk{Content: fenced})
	}
	return chunks
}
