package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewHashingEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"beach resort with pool", "beach resort with pool"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	assert.Equal(t, vecs[0], vecs[1])
	assert.Len(t, vecs[0], 64)
	assert.InDelta(t, 1.0, Cosine(vecs[0], vecs[1]), 1e-6)
}

func TestHashingEmbedder_SimilarTextScoresHigher(t *testing.T) {
	e := NewHashingEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"hotel with pool and spa",
		"Hotel: Blue Lagoon in sydney. Resort with a heated pool and full spa. Features: pool, spa",
		"Hotel: Transit Inn in sydney. Budget rooms next to the station. Features: parking",
	})
	require.NoError(t, err)

	assert.Greater(t, Cosine(vecs[0], vecs[1]), Cosine(vecs[0], vecs[2]))
}

func TestHashingEmbedder_EmptyTextYieldsZeroSimilarity(t *testing.T) {
	e := NewHashingEmbedder(32)
	vecs, err := e.Embed(context.Background(), []string{"", "pool"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, Cosine(vecs[0], vecs[1]))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"cheap", "pool", "dhaka"}, Tokenize("Show me cheap hotels with POOLS in Dhaka!"))
}
