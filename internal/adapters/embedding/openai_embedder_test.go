package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVectorClient struct {
	vectors [][]float32
	err     error
	model   string
}

func (s *stubVectorClient) Embed(_ context.Context, model string, _ []string) ([][]float32, error) {
	s.model = model
	return s.vectors, s.err
}

func TestOpenAIEmbedder_NormalizesVectors(t *testing.T) {
	client := &stubVectorClient{vectors: [][]float32{{3, 4}}}
	e := NewOpenAIEmbedder(client, "", 2)

	vecs, err := e.Embed(context.Background(), []string{"pool"})
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", client.model)
	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
	assert.Equal(t, "openai-text-embedding-3-small-2", e.Version())
}

func TestOpenAIEmbedder_RejectsWrongDimensions(t *testing.T) {
	e := NewOpenAIEmbedder(&stubVectorClient{vectors: [][]float32{{1, 0, 0}}}, "m", 2)
	_, err := e.Embed(context.Background(), []string{"pool"})
	require.Error(t, err)
}

func TestOpenAIEmbedder_PropagatesClientError(t *testing.T) {
	e := NewOpenAIEmbedder(&stubVectorClient{err: errors.New("boom")}, "m", 2)
	_, err := e.Embed(context.Background(), []string{"pool"})
	require.Error(t, err)
}
