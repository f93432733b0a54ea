package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// newTestOpenAI points the provider at a local httptest server through
// OPENAI_API_BASE so no request ever leaves the process.
func newTestOpenAI(t *testing.T, model string, handler http.HandlerFunc) *openAIProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_ORG_ID", "")
	t.Setenv("OPENAI_API_BASE", srv.URL)

	provider, err := newOpenAIProvider(model, newLimiter(0), arbor.NewLogger())
	require.NoError(t, err)
	return provider
}

func TestOpenAIProvider_EmbedDocuments(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotOrg  string
		gotReq  openAIRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("OpenAI-Organization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		// Data arrives out of order; the provider must reorder by index.
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":[{"embedding":[0,1],"index":1},{"embedding":[1,0],"index":0}]}`)
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_ORG_ID", "org-42")
	t.Setenv("OPENAI_API_BASE", srv.URL+"/")

	provider, err := newOpenAIProvider("text-embedding-3-small", newLimiter(0), arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, srv.URL, provider.baseURL)

	vectors, err := provider.EmbedDocuments(context.Background(), []string{"first chunk", "second chunk"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])

	assert.Equal(t, "/embeddings", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "org-42", gotOrg)
	assert.Equal(t, "text-embedding-3-small", gotReq.Model)
	assert.Equal(t, []string{"first chunk", "second chunk"}, gotReq.Input)
	assert.Nil(t, gotReq.Dimensions)
}

func TestOpenAIProvider_EmbedQuery(t *testing.T) {
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[0.5,0.25],"index":0}]}`)
	})

	vector, err := provider.EmbedQuery(context.Background(), "what is a goroutine")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vector)
}

func TestOpenAIProvider_LargeModelRequestsReducedWidth(t *testing.T) {
	var gotReq openAIRequest
	provider := newTestOpenAI(t, "text-embedding-3-large", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"data":[{"embedding":[1,2,3],"index":0}]}`)
	})

	_, err := provider.EmbedDocuments(context.Background(), []string{"text"})
	require.NoError(t, err)

	require.NotNil(t, gotReq.Dimensions)
	assert.Equal(t, 1536, *gotReq.Dimensions)
}

func TestOpenAIProvider_StructuredErrorResponse(t *testing.T) {
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"tokens","code":"rate_limit_exceeded"}}`)
	})

	_, err := provider.EmbedDocuments(context.Background(), []string{"text"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "openai", provErr.Provider)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
}

func TestOpenAIProvider_OpaqueErrorResponse(t *testing.T) {
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream gateway exploded")
	})

	_, err := provider.EmbedDocuments(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "upstream gateway exploded")
}

func TestOpenAIProvider_MissingEmbedding(t *testing.T) {
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[1,0],"index":0}]}`)
	})

	_, err := provider.EmbedDocuments(context.Background(), []string{"first", "second"})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, err.Error(), "missing embedding for input 1")
}

func TestOpenAIProvider_EmptyInputSkipsRequest(t *testing.T) {
	calls := 0
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"data":[]}`)
	})

	vectors, err := provider.EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, calls)
}

func TestOpenAIProvider_CancelledContext(t *testing.T) {
	provider := newTestOpenAI(t, "text-embedding-3-small", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"embedding":[1],"index":0}]}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.EmbedDocuments(ctx, []string{"text"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIProvider_TransportErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_ORG_ID", "")
	t.Setenv("OPENAI_API_BASE", base)

	provider, err := newOpenAIProvider("text-embedding-3-small", newLimiter(0), arbor.NewLogger())
	require.NoError(t, err)

	_, err = provider.EmbedDocuments(context.Background(), []string{"text"})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "openai", provErr.Provider)
}
