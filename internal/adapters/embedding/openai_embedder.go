package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/nahid2887/today/internal/domain/providers"
)

// VectorClient is the subset of an OpenAI-compatible client used for embeddings.
type VectorClient interface {
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}

// OpenAIEmbedder embeds text through a hosted embeddings endpoint. Vectors are
// L2-normalized and checked against the configured dimensionality.
type OpenAIEmbedder struct {
	client VectorClient
	model  string
	dims   int
}

var _ providers.EmbeddingProvider = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder for model producing dims-length vectors.
func NewOpenAIEmbedder(client VectorClient, model string, dims int) *OpenAIEmbedder {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{client: client, model: model, dims: dims}
}

// Dimensions implements providers.EmbeddingProvider.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }

// Version implements providers.EmbeddingProvider.
func (e *OpenAIEmbedder) Version() string { return fmt.Sprintf("openai-%s-%d", e.model, e.dims) }

// Embed implements providers.EmbeddingProvider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.client.Embed(ctx, e.model, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), e.dims)
		}
		normalize(v)
	}
	return vectors, nil
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}
