package embeddings

import "fmt"

// ConfigError reports an unusable embedding configuration, typically a
// missing credential or an unknown provider prefix.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("embedding provider %s is misconfigured: %s", e.Provider, e.Message)
}

// ProviderError wraps an upstream embedding service failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
