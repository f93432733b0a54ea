package embeddings

import (
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"golang.org/x/time/rate"
)

// NewProvider builds the embedding provider named by the configuration's
// "provider:model" pair. A bare model name defaults to the openai provider.
// An empty model or "none" disables embeddings entirely and returns nil,
// leaving the store in full-text-only mode.
func NewProvider(config *common.Config, logger arbor.ILogger) (interfaces.EmbeddingProvider, error) {
	if logger == nil {
		logger = common.GetLogger()
	}

	spec := strings.TrimSpace(config.Embeddings.Model)
	if spec == "" || strings.EqualFold(spec, "none") {
		logger.Warn().Msg("No embedding model configured; search will use full-text ranking only")
		return nil, nil
	}

	provider := "openai"
	model := spec
	if i := strings.Index(spec, ":"); i >= 0 {
		provider = strings.ToLower(spec[:i])
		model = spec[i+1:]
	}
	if model == "" {
		return nil, &ConfigError{Provider: provider, Message: "model name is empty"}
	}

	limiter := newLimiter(config.Embeddings.RequestsPerSecond)

	switch provider {
	case "openai":
		return newOpenAIProvider(model, limiter, logger)
	case "microsoft":
		return newAzureProvider(model, limiter, logger)
	case "vertex":
		return newVertexProvider(model, limiter, logger)
	case "gemini":
		return newGeminiProvider(model, limiter, logger)
	case "aws":
		return newBedrockProvider(model, limiter, logger)
	case "sagemaker":
		return newSageMakerProvider(model, limiter, logger)
	default:
		return nil, &ConfigError{Provider: provider, Message: "unknown provider (expected openai, microsoft, vertex, gemini, aws or sagemaker)"}
	}
}

// newLimiter converts a requests-per-second setting into a limiter. Zero or
// negative disables throttling.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
