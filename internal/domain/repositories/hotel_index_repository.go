package repositories

import (
	"context"

	"github.com/nahid2887/today/internal/domain/entities"
)

// IndexSearchParams narrows a similarity search.
type IndexSearchParams struct {
	// Query is embedded and compared with every candidate.
	Query string
	// City is an exact-match filter on the normalized city. Empty means global.
	City string
	// MinRating drops candidates rated below it.
	MinRating *float64
	// Exclude lists hotel ids to leave out of the results.
	Exclude entities.HotelIDSet
	// K caps the number of hits.
	K int
}

// IndexStats summarizes index contents.
type IndexStats struct {
	Documents    int      `json:"documents"`
	Cities       []string `json:"cities"`
	EmbeddingVer string   `json:"embedding_version"`
}

// HotelIndex is the embedding index over hotel documents. It exclusively owns
// document embeddings.
type HotelIndex interface {
	// Upsert embeds doc and replaces any entry with the same id. Readers see
	// either the old or the new document, never a partial one.
	Upsert(ctx context.Context, doc entities.HotelDocument) error

	// Search returns hits ordered by similarity, then average rating, then id.
	// An empty or unsynced index yields no hits and no error.
	Search(ctx context.Context, params IndexSearchParams) ([]entities.ScoredHotel, error)

	// Remove evicts a document. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// IDs lists every indexed hotel id.
	IDs(ctx context.Context) ([]string, error)

	// Stats reports document count and the distinct cities indexed.
	Stats(ctx context.Context) (IndexStats, error)
}
