package search

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nahid2887/today/internal/adapters/embedding"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/domain/repositories"
)

type memoryEntry struct {
	doc  entities.HotelDocument
	text string
}

// MemoryIndex is an in-process embedding index. Each document lives behind its
// own map slot and is replaced whole, so readers never see a partial upsert
// and writers never block readers of other documents.
type MemoryIndex struct {
	embedder providers.EmbeddingProvider
	entries  sync.Map // id -> *memoryEntry
	now      func() time.Time
}

var _ repositories.HotelIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index that embeds with embedder.
func NewMemoryIndex(embedder providers.EmbeddingProvider) *MemoryIndex {
	return &MemoryIndex{embedder: embedder, now: time.Now}
}

// Upsert implements repositories.HotelIndex.
func (m *MemoryIndex) Upsert(ctx context.Context, doc entities.HotelDocument) error {
	doc.Normalize()
	if doc.ID == "" {
		return fmt.Errorf("hotel document without id")
	}
	text := doc.CanonicalText()

	var vector []float32
	if prev, ok := m.entries.Load(doc.ID); ok {
		if e := prev.(*memoryEntry); e.text == text && len(e.doc.Embedding) == m.embedder.Dimensions() {
			vector = e.doc.Embedding
		}
	}
	if vector == nil {
		vectors, err := m.embedder.Embed(ctx, []string{text})
		if err != nil {
			return fmt.Errorf("failed to embed hotel %s: %w", doc.ID, err)
		}
		if len(vectors) != 1 {
			return fmt.Errorf("embedder returned %d vectors for 1 text", len(vectors))
		}
		vector = vectors[0]
	}

	doc.Embedding = vector
	if doc.LastSyncedAt.IsZero() {
		doc.LastSyncedAt = m.now()
	}
	m.entries.Store(doc.ID, &memoryEntry{doc: doc, text: text})
	return nil
}

// Search implements repositories.HotelIndex.
func (m *MemoryIndex) Search(ctx context.Context, params repositories.IndexSearchParams) ([]entities.ScoredHotel, error) {
	if params.K <= 0 || m.isEmpty() {
		return nil, nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{params.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	query := vectors[0]
	city := entities.NormalizeCity(params.City)

	var hits []entities.ScoredHotel
	m.entries.Range(func(_, value any) bool {
		e := value.(*memoryEntry)
		if city != "" && e.doc.City != city {
			return true
		}
		if !(entities.QueryFilters{MinRating: params.MinRating}).AcceptsRating(e.doc.AverageRating) {
			return true
		}
		if params.Exclude.Has(e.doc.ID) {
			return true
		}
		hits = append(hits, entities.ScoredHotel{
			Hotel:      e.doc.WithoutEmbedding(),
			Similarity: embedding.Cosine(query, e.doc.Embedding),
		})
		return true
	})

	entities.SortScoredHotels(hits)
	if len(hits) > params.K {
		hits = hits[:params.K]
	}
	return hits, nil
}

// Remove implements repositories.HotelIndex.
func (m *MemoryIndex) Remove(_ context.Context, id string) error {
	m.entries.Delete(id)
	return nil
}

// IDs implements repositories.HotelIndex.
func (m *MemoryIndex) IDs(_ context.Context) ([]string, error) {
	var ids []string
	m.entries.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return entities.CompareHotelIDs(ids[i], ids[j]) < 0 })
	return ids, nil
}

// Stats implements repositories.HotelIndex.
func (m *MemoryIndex) Stats(_ context.Context) (repositories.IndexStats, error) {
	stats := repositories.IndexStats{EmbeddingVer: m.embedder.Version()}
	cities := make(map[string]struct{})
	m.entries.Range(func(_, value any) bool {
		stats.Documents++
		cities[value.(*memoryEntry).doc.City] = struct{}{}
		return true
	})
	for c := range cities {
		if c != "" {
			stats.Cities = append(stats.Cities, c)
		}
	}
	sort.Strings(stats.Cities)
	return stats, nil
}

func (m *MemoryIndex) isEmpty() bool {
	empty := true
	m.entries.Range(func(_, _ any) bool {
		empty = false
		return false
	})
	return empty
}
