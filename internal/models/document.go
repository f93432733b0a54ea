package models

import "time"

// Section describes where a chunk sits in the document's heading hierarchy.
// Path lists heading titles from the outermost section down to the chunk's
// own; Level is the depth of the innermost heading (0 for preamble text).
type Section struct {
	Level int      `json:"level"`
	Path  []string `json:"path"`
}

// ContentChunk is a single splitter output unit. Chunks preserve input text
// order; Section carries the hierarchical position used for navigation.
type ContentChunk struct {
	Content string  `json:"content"`
	Section Section `json:"section"`
}

// DocumentMetadata carries the descriptive fields stored alongside a chunk.
// URL is required and groups all chunks that originate from one source page.
type DocumentMetadata struct {
	Title    string   `json:"title"`
	URL      string   `json:"url"`
	Path     []string `json:"path,omitempty"`
	Level    int      `json:"level,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
}

// Document is a unit of content flowing through the indexing pipeline.
// Scrapers emit whole pages (Path/Level unset); splitting turns a page into
// per-chunk Documents which the store persists.
type Document struct {
	Content     string           `json:"content"`
	ContentType string           `json:"contentType,omitempty"`
	Metadata    DocumentMetadata `json:"metadata"`
}

// StoredDocument is a chunk row as persisted in the document store.
// SortOrder is the splitter emission order within the document's URL group.
type StoredDocument struct {
	ID        int64            `json:"id"`
	URL       string           `json:"url"`
	Content   string           `json:"content"`
	Metadata  DocumentMetadata `json:"metadata"`
	SortOrder int              `json:"sortOrder"`
	IndexedAt time.Time        `json:"indexedAt"`
}
