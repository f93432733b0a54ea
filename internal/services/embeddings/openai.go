package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
)

// openAIProvider talks to the OpenAI embeddings API or any compatible
// endpoint named by OPENAI_API_BASE.
type openAIProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
	apiKey  string
	orgID   string
	baseURL string
	model   string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*openAIProvider)(nil)

// openAIRequest is the embeddings API payload. Dimensions applies only to
// text-embedding-3 models, which support reduced output widths.
type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions *int     `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func newOpenAIProvider(model string, limiter *rate.Limiter, logger arbor.ILogger) (*openAIProvider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &ConfigError{Provider: "openai", Message: "OPENAI_API_KEY is not set"}
	}

	baseURL := strings.TrimRight(os.Getenv("OPENAI_API_BASE"), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &openAIProvider{
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
		logger:  logger,
		apiKey:  apiKey,
		orgID:   os.Getenv("OPENAI_ORG_ID"),
		baseURL: baseURL,
		model:   model,
	}, nil
}

func (p *openAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *openAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := openAIRequest{Model: p.model, Input: texts}
	if dim := reducedDimension(p.model); dim > 0 {
		req.Dimensions = &dim
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if p.orgID != "" {
		httpReq.Header.Set("OpenAI-Organization", p.orgID)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp openAIErrorResponse
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error.Message != "" {
			return nil, &ProviderError{Provider: "openai",
				Err: fmt.Errorf("%s (type: %s, code: %s)", errorResp.Error.Message, errorResp.Error.Type, errorResp.Error.Code)}
		}
		return nil, &ProviderError{Provider: "openai",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &ProviderError{Provider: "openai", Err: err}
	}

	// Order embeddings by index to match input order
	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, &ProviderError{Provider: "openai", Err: fmt.Errorf("missing embedding for input %d", i)}
		}
	}
	return vectors, nil
}

func (p *openAIProvider) Dimension() int {
	return knownDimension(p.model)
}

func (p *openAIProvider) Model() string {
	return p.model
}

func (p *openAIProvider) Close() error {
	return nil
}

// reducedDimension returns the dimensions request parameter for models that
// support width reduction, keeping their native output within the store.
func reducedDimension(model string) int {
	if model == "text-embedding-3-large" {
		return 1536
	}
	return 0
}
