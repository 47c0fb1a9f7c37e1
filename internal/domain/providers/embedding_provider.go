package providers

import "context"

// EmbeddingProvider turns text into fixed-length vectors.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every returned vector.
	Dimensions() int

	// Version identifies the model so indexes can detect incompatible vectors.
	Version() string
}
