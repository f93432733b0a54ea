package interfaces

import "context"

// EmbeddingProvider maps text to fixed-width dense vectors. Implementations
// cover one upstream service each; batching policy belongs to the caller
// (the document store), never to the provider.
type EmbeddingProvider interface {
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments embeds a batch of document texts, preserving order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the provider's native output width.
	Dimension() int

	// Model is the configured model identifier.
	Model() string

	Close() error
}
