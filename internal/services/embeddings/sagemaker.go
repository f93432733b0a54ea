package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
)

// sageMakerProvider invokes a self-hosted embedding endpoint on SageMaker.
// The model part of the configuration names the endpoint. The endpoint is
// expected to speak the text-embeddings-inference contract: a JSON body
// {"inputs": [...]} answered by a float matrix, either bare or wrapped in
// an "embeddings" field.
type sageMakerProvider struct {
	client   *sagemakerruntime.Client
	limiter  *rate.Limiter
	logger   arbor.ILogger
	endpoint string
}

// Compile-time assertion
var _ interfaces.EmbeddingProvider = (*sageMakerProvider)(nil)

type sageMakerRequest struct {
	Inputs []string `json:"inputs"`
}

func newSageMakerProvider(endpoint string, limiter *rate.Limiter, logger arbor.ILogger) (*sageMakerProvider, error) {
	ctx := context.Background()

	var opts []func(*awsconfig.LoadOptions) error
	if region := os.Getenv("SAGEMAKER_AWS_REGION"); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &ConfigError{Provider: "sagemaker", Message: fmt.Sprintf("failed to load AWS configuration: %v", err)}
	}
	if cfg.Region == "" {
		return nil, &ConfigError{Provider: "sagemaker", Message: "no AWS region configured (set AWS_REGION or SAGEMAKER_AWS_REGION)"}
	}

	return &sageMakerProvider{
		client:   sagemakerruntime.NewFromConfig(cfg),
		limiter:  limiter,
		logger:   logger,
		endpoint: endpoint,
	}, nil
}

func (p *sageMakerProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &ProviderError{Provider: "sagemaker", Err: fmt.Errorf("empty embedding response")}
	}
	return vectors[0], nil
}

func (p *sageMakerProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(sageMakerRequest{Inputs: texts})
	if err != nil {
		return nil, &ProviderError{Provider: "sagemaker", Err: err}
	}

	output, err := p.client.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(p.endpoint),
		ContentType:  aws.String("application/json"),
		Accept:       aws.String("application/json"),
		Body:         body,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "sagemaker", Err: err}
	}

	matrix, err := decodeEmbeddingMatrix(output.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "sagemaker", Err: err}
	}
	if len(matrix) != len(texts) {
		return nil, &ProviderError{Provider: "sagemaker",
			Err: fmt.Errorf("got %d embeddings for %d inputs", len(matrix), len(texts))}
	}

	vectors := make([][]float32, len(matrix))
	for i, row := range matrix {
		vectors[i] = toFloat32(row)
	}
	return vectors, nil
}

// decodeEmbeddingMatrix accepts both a bare [[...]] matrix and the wrapped
// {"embeddings": [[...]]} form.
func decodeEmbeddingMatrix(body []byte) ([][]float64, error) {
	var bare [][]float64
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}
	var wrapped struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Embeddings != nil {
		return wrapped.Embeddings, nil
	}
	return nil, fmt.Errorf("unrecognized endpoint response shape")
}

func (p *sageMakerProvider) Dimension() int {
	return 0
}

func (p *sageMakerProvider) Model() string {
	return p.endpoint
}

func (p *sageMakerProvider) Close() error {
	return nil
}
