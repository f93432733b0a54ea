package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
)

// azureProvider targets Azure OpenAI deployments. The wire format matches
// OpenAI's embeddings API; only endpoint shape and auth header differ.
type azureProvider struct {
	client     *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
	apiKey     string
	endpoint   string
	model      string
	deployment string
	apiVersion string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*azureProvider)(nil)

func newAzureProvider(model string, limiter *rate.Limiter, logger arbor.ILogger) (*azureProvider, error) {
	apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
	if apiKey == "" {
		return nil, &ConfigError{Provider: "microsoft", Message: "AZURE_OPENAI_API_KEY is not set"}
	}
	instance := os.Getenv("AZURE_OPENAI_API_INSTANCE_NAME")
	if instance == "" {
		return nil, &ConfigError{Provider: "microsoft", Message: "AZURE_OPENAI_API_INSTANCE_NAME is not set"}
	}

	deployment := os.Getenv("AZURE_OPENAI_API_DEPLOYMENT_NAME")
	if deployment == "" {
		deployment = model
	}
	apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
	if apiVersion == "" {
		apiVersion = "2024-02-01"
	}

	return &azureProvider{
		client:     &http.Client{Timeout: 60 * time.Second},
		limiter:    limiter,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   fmt.Sprintf("https://%s.openai.azure.com", instance),
		model:      model,
		deployment: deployment,
		apiVersion: apiVersion,
	}, nil
}

func (p *azureProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "microsoft", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *azureProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
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
		return nil, &ProviderError{Provider: "microsoft", Err: err}
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s",
		p.endpoint, p.deployment, p.apiVersion)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: "microsoft", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "microsoft", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "microsoft", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var errorResp openAIErrorResponse
		if json.Unmarshal(respBody, &errorResp) == nil && errorResp.Error.Message != "" {
			return nil, &ProviderError{Provider: "microsoft", Err: fmt.Errorf("%s", errorResp.Error.Message)}
		}
		return nil, &ProviderError{Provider: "microsoft",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var response openAIResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &ProviderError{Provider: "microsoft", Err: err}
	}

	vectors := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, &ProviderError{Provider: "microsoft", Err: fmt.Errorf("missing embedding for input %d", i)}
		}
	}
	return vectors, nil
}

func (p *azureProvider) Dimension() int {
	return knownDimension(p.model)
}

func (p *azureProvider) Model() string {
	return p.model
}

func (p *azureProvider) Close() error {
	return nil
}
