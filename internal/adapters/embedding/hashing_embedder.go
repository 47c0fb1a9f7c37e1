package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/nahid2887/today/internal/domain/providers"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "for": {}, "in": {}, "me": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "with": {}, "is": {},
	"are": {}, "show": {}, "find": {}, "want": {}, "i": {}, "some": {},
	"please": {}, "can": {}, "you": {}, "hotel": {}, "hotels": {},
}

// HashingEmbedder is an offline embedder built on feature hashing of word
// unigrams and bigrams. Vectors are non-negative and L2-normalized, so cosine
// similarity falls in [0,1].
type HashingEmbedder struct {
	dims int
}

var _ providers.EmbeddingProvider = (*HashingEmbedder)(nil)

// NewHashingEmbedder creates an embedder producing dims-length vectors.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &HashingEmbedder{dims: dims}
}

// Dimensions implements providers.EmbeddingProvider.
func (e *HashingEmbedder) Dimensions() int { return e.dims }

// Version implements providers.EmbeddingProvider.
func (e *HashingEmbedder) Version() string { return fmt.Sprintf("hashing-v1-%d", e.dims) }

// Embed implements providers.EmbeddingProvider.
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	vec := make([]float64, e.dims)
	tokens := Tokenize(text)
	for i, tok := range tokens {
		vec[e.bucket(tok)] += 1
		if i+1 < len(tokens) {
			vec[e.bucket(tok+" "+tokens[i+1])] += 0.5
		}
	}

	var norm float64
	for i, v := range vec {
		if v > 0 {
			vec[i] = 1 + math.Log(v)
		}
		norm += vec[i] * vec[i]
	}

	out := make([]float32, e.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashingEmbedder) bucket(feature string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	return int(h.Sum32() % uint32(e.dims))
}

// Tokenize lowercases text, splits on non-alphanumerics, drops stopwords and
// folds simple plurals.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}

// Cosine returns the cosine similarity of a and b clamped to [0,1].
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, sim))
}
