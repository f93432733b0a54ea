package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
)

// bedrockProvider invokes embedding models on Amazon Bedrock. Titan models
// take one text per request; Cohere models accept batches with an input
// type distinguishing documents from queries.
type bedrockProvider struct {
	client  *bedrockruntime.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
	model   string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*bedrockProvider)(nil)

type titanRequest struct {
	InputText string `json:"inputText"`
}

type titanResponse struct {
	Embedding []float64 `json:"embedding"`
}

type cohereRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func newBedrockProvider(model string, limiter *rate.Limiter, logger arbor.ILogger) (*bedrockProvider, error) {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("BEDROCK_AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &ConfigError{Provider: "aws", Message: fmt.Sprintf("failed to load AWS configuration: %v", err)}
	}
	if cfg.Region == "" {
		return nil, &ConfigError{Provider: "aws", Message: "no AWS region configured (set AWS_REGION or BEDROCK_AWS_REGION)"}
	}

	return &bedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		limiter: limiter,
		logger:  logger,
		model:   model,
	}, nil
}

func (p *bedrockProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text}, "search_query")
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "aws", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *bedrockProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embed(ctx, texts, "search_document")
}

func (p *bedrockProvider) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if strings.HasPrefix(p.model, "cohere.") {
		return p.embedCohere(ctx, texts, inputType)
	}
	return p.embedTitan(ctx, texts)
}

func (p *bedrockProvider) embedTitan(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := json.Marshal(titanRequest{InputText: text})
		if err != nil {
			return nil, &ProviderError{Provider: "aws", Err: err}
		}
		output, err := p.invoke(ctx, body)
		if err != nil {
			return nil, err
		}

		var response titanResponse
		if err := json.Unmarshal(output, &response); err != nil {
			return nil, &ProviderError{Provider: "aws", Err: err}
		}
		vectors = append(vectors, toFloat32(response.Embedding))
	}
	return vectors, nil
}

func (p *bedrockProvider) embedCohere(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(cohereRequest{Texts: texts, InputType: inputType})
	if err != nil {
		return nil, &ProviderError{Provider: "aws", Err: err}
	}
	output, err := p.invoke(ctx, body)
	if err != nil {
		return nil, err
	}

	var response cohereResponse
	if err := json.Unmarshal(output, &response); err != nil {
		return nil, &ProviderError{Provider: "aws", Err: err}
	}
	if len(response.Embeddings) != len(texts) {
		return nil, &ProviderError{Provider: "aws",
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(response.Embeddings), len(texts))}
	}

	vectors := make([][]float32, len(response.Embeddings))
	for i, embedding := range response.Embeddings {
		vectors[i] = toFloat32(embedding)
	}
	return vectors, nil
}

func (p *bedrockProvider) invoke(ctx context.Context, body []byte) ([]byte, error) {
	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "aws", Err: err}
	}
	return output.Body, nil
}

func (p *bedrockProvider) Dimension() int {
	return knownDimension(p.model)
}

func (p *bedrockProvider) Model() string {
	return p.model
}

func (p *bedrockProvider) Close() error {
	return nil
}

func toFloat32(values []float64) []float32 {
	vector := make([]float32, len(values))
	for i, v := range values {
		vector[i] = float32(v)
	}
	return vector
}
