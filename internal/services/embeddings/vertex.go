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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
)

// vertexBatchLimit is the instances-per-request cap of the Vertex AI text
// embedding endpoint.
const vertexBatchLimit = 250

// vertexProvider calls the Vertex AI prediction endpoint with application
// default credentials.
type vertexProvider struct {
	client   *http.Client
	limiter  *rate.Limiter
	logger   arbor.ILogger
	tokens   oauth2.TokenSource
	project  string
	location string
	model    string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*vertexProvider)(nil)

type vertexInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type,omitempty"`
}

type vertexRequest struct {
	Instances []vertexInstance `json:"instances"`
}

type vertexResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float64 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

func newVertexProvider(model string, limiter *rate.Limiter, logger arbor.ILogger) (*vertexProvider, error) {
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		return nil, &ConfigError{Provider: "vertex", Message: "GOOGLE_CLOUD_PROJECT is not set"}
	}
	location := os.Getenv("GOOGLE_CLOUD_LOCATION")
	if location == "" {
		location = "us-central1"
	}

	tokens, err := google.DefaultTokenSource(context.Background(), "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, &ConfigError{Provider: "vertex", Message: fmt.Sprintf("no application default credentials: %v", err)}
	}

	return &vertexProvider{
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  limiter,
		logger:   logger,
		tokens:   tokens,
		project:  project,
		location: location,
		model:    model,
	}, nil
}

func (p *vertexProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "vertex", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *vertexProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (p *vertexProvider) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += vertexBatchLimit {
		end := start + vertexBatchLimit
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embedBatch(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (p *vertexProvider) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := vertexRequest{Instances: make([]vertexInstance, len(texts))}
	for i, text := range texts {
		req.Instances[i] = vertexInstance{Content: text, TaskType: taskType}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: err}
	}

	token, err := p.tokens.Token()
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: fmt.Errorf("failed to obtain access token: %w", err)}
	}

	url := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		p.location, p.project, p.location, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "vertex",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var response vertexResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, &ProviderError{Provider: "vertex", Err: err}
	}
	if len(response.Predictions) != len(texts) {
		return nil, &ProviderError{Provider: "vertex",
			Err: fmt.Errorf("got %d predictions for %d inputs", len(response.Predictions), len(texts))}
	}

	vectors := make([][]float32, len(response.Predictions))
	for i, prediction := range response.Predictions {
		vector := make([]float32, len(prediction.Embeddings.Values))
		for j, v := range prediction.Embeddings.Values {
			vector[j] = float32(v)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (p *vertexProvider) Dimension() int {
	return knownDimension(p.model)
}

func (p *vertexProvider) Model() string {
	return p.model
}

func (p *vertexProvider) Close() error {
	return nil
}
