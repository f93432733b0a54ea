package embeddings

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// geminiProvider embeds through the Gemini API.
type geminiProvider struct {
	client  *genai.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
	model   string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*geminiProvider)(nil)

func newGeminiProvider(model string, limiter *rate.Limiter, logger arbor.ILogger) (*geminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, &ConfigError{Provider: "gemini", Message: "GEMINI_API_KEY (or GOOGLE_API_KEY) is not set"}
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, &ConfigError{Provider: "gemini", Message: fmt.Sprintf("failed to create client: %v", err)}
	}

	return &geminiProvider{
		client:  client,
		limiter: limiter,
		logger:  logger,
		model:   model,
	}, nil
}

func (p *geminiProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "gemini", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *geminiProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (p *geminiProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}

	config := &genai.EmbedContentConfig{TaskType: taskType}
	if dim := knownDimension(p.model); dim > 0 {
		config.OutputDimensionality = genai.Ptr(int32(dim))
	}

	result, err := p.client.Models.EmbedContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Err: err}
	}
	if len(result.Embeddings) != len(texts) {
		return nil, &ProviderError{Provider: "gemini",
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(result.Embeddings), len(texts))}
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, embedding := range result.Embeddings {
		vectors[i] = embedding.Values
	}
	return vectors, nil
}

func (p *geminiProvider) Dimension() int {
	return knownDimension(p.model)
}

func (p *geminiProvider) Model() string {
	return p.model
}

func (p *geminiProvider) Close() error {
	return nil
}
