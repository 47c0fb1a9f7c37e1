package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/domain/repositories"
	tsclient "github.com/nahid2887/today/internal/infrastructure/clients/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
)

const pageSize = 250

// TypesenseAdapter implements the hotel embedding index on a Typesense
// collection with a float[] vector field. Typesense replaces documents
// atomically, so upserts are safe alongside concurrent searches.
type TypesenseAdapter struct {
	client     *tsclient.Client
	embedder   providers.EmbeddingProvider
	collection string
	now        func() time.Time
}

var _ repositories.HotelIndex = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client, embedder providers.EmbeddingProvider, collection string) *TypesenseAdapter {
	return &TypesenseAdapter{
		client:     client,
		embedder:   embedder,
		collection: collection,
		now:        time.Now,
	}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.EnsureCollection(ctx, a.collection, a.embedder.Dimensions())
}

// Upsert implements repositories.HotelIndex. The stored text hash lets an
// unchanged document keep its existing vector.
func (a *TypesenseAdapter) Upsert(ctx context.Context, doc entities.HotelDocument) error {
	doc.Normalize()
	if doc.ID == "" {
		return fmt.Errorf("hotel document without id")
	}
	hash := textHash(doc.CanonicalText())

	existing, err := a.client.Client().Collection(a.collection).Document(doc.ID).Retrieve(ctx)
	if err == nil && stringField(existing, "text_hash") == hash &&
		stringField(existing, "embedding_version") == a.embedder.Version() {
		doc.Embedding = floatSliceField(existing, "embedding")
	}
	if len(doc.Embedding) != a.embedder.Dimensions() {
		vectors, err := a.embedder.Embed(ctx, []string{doc.CanonicalText()})
		if err != nil {
			return fmt.Errorf("failed to embed hotel %s: %w", doc.ID, err)
		}
		doc.Embedding = vectors[0]
	}
	if doc.LastSyncedAt.IsZero() {
		doc.LastSyncedAt = a.now()
	}

	document := documentFromHotel(doc, hash, a.embedder.Version())
	if _, err := a.client.Client().Collection(a.collection).Documents().Upsert(ctx, document); err != nil {
		return fmt.Errorf("failed to index hotel %s: %w", doc.ID, err)
	}
	return nil
}

// Search implements repositories.HotelIndex.
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.IndexSearchParams) ([]entities.ScoredHotel, error) {
	if params.K <= 0 {
		return nil, nil
	}

	vectors, err := a.embedder.Embed(ctx, []string{params.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Typesense serves at most pageSize hits per page; shown ids are excluded
	// server side so a long session never grows the page.
	k := min(params.K, pageSize)
	searchParams := &api.SearchCollectionParams{
		Q:             pointer.String("*"),
		VectorQuery:   pointer.String(vectorQuery(vectors[0], k)),
		PerPage:       pointer.Int(k),
		ExcludeFields: pointer.String("embedding"),
	}
	if filter := buildFilter(params); filter != "" {
		searchParams.FilterBy = pointer.String(filter)
	}

	result, err := a.client.Client().Collection(a.collection).Documents().Search(ctx, searchParams)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search hotels: %w", err)
	}
	if result.Hits == nil {
		return nil, nil
	}

	hits := make([]entities.ScoredHotel, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		hotel := hotelFromDocument(*hit.Document)
		if params.Exclude.Has(hotel.ID) {
			continue
		}
		var similarity float64
		if hit.VectorDistance != nil {
			similarity = distanceToSimilarity(float64(*hit.VectorDistance))
		}
		hits = append(hits, entities.ScoredHotel{Hotel: hotel, Similarity: similarity})
	}

	entities.SortScoredHotels(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Remove implements repositories.HotelIndex.
func (a *TypesenseAdapter) Remove(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(a.collection).Document(id).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete hotel %s from index: %w", id, err)
	}
	return nil
}

// IDs implements repositories.HotelIndex.
func (a *TypesenseAdapter) IDs(ctx context.Context) ([]string, error) {
	var ids []string
	for page := 1; ; page++ {
		result, err := a.client.Client().Collection(a.collection).Documents().Search(ctx, &api.SearchCollectionParams{
			Q:             pointer.String("*"),
			IncludeFields: pointer.String("id"),
			Page:          pointer.Int(page),
			PerPage:       pointer.Int(pageSize),
		})
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to list hotel ids: %w", err)
		}
		if result.Hits == nil || len(*result.Hits) == 0 {
			break
		}
		for _, hit := range *result.Hits {
			if hit.Document != nil {
				ids = append(ids, stringField(*hit.Document, "id"))
			}
		}
		if len(*result.Hits) < pageSize {
			break
		}
	}
	sort.Slice(ids, func(i, j int) bool { return entities.CompareHotelIDs(ids[i], ids[j]) < 0 })
	return ids, nil
}

// Stats implements repositories.HotelIndex.
func (a *TypesenseAdapter) Stats(ctx context.Context) (repositories.IndexStats, error) {
	stats := repositories.IndexStats{EmbeddingVer: a.embedder.Version()}
	result, err := a.client.Client().Collection(a.collection).Documents().Search(ctx, &api.SearchCollectionParams{
		Q:              pointer.String("*"),
		FacetBy:        pointer.String("city"),
		MaxFacetValues: pointer.Int(1000),
		PerPage:        pointer.Int(0),
	})
	if err != nil {
		if isNotFound(err) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to read index stats: %w", err)
	}
	if result.Found != nil {
		stats.Documents = *result.Found
	}
	if result.FacetCounts != nil {
		for _, facet := range *result.FacetCounts {
			if facet.Counts == nil {
				continue
			}
			for _, c := range *facet.Counts {
				if c.Value != nil {
					stats.Cities = append(stats.Cities, *c.Value)
				}
			}
		}
	}
	sort.Strings(stats.Cities)
	return stats, nil
}

func documentFromHotel(doc entities.HotelDocument, hash, version string) map[string]interface{} {
	amenities := doc.Amenities
	if amenities == nil {
		amenities = []string{}
	}
	return map[string]interface{}{
		"id":                doc.ID,
		"name":              doc.Name,
		"city":              doc.City,
		"country":           doc.Country,
		"description":       doc.Description,
		"amenities":         amenities,
		"average_rating":    doc.AverageRating,
		"total_ratings":     doc.TotalRatings,
		"text_hash":         hash,
		"embedding_version": version,
		"last_synced_at":    doc.LastSyncedAt.Unix(),
		"embedding":         doc.Embedding,
	}
}

func hotelFromDocument(doc map[string]interface{}) entities.HotelDocument {
	hotel := entities.HotelDocument{
		ID:            stringField(doc, "id"),
		Name:          stringField(doc, "name"),
		City:          stringField(doc, "city"),
		Country:       stringField(doc, "country"),
		Description:   stringField(doc, "description"),
		AverageRating: floatField(doc, "average_rating"),
		TotalRatings:  int(floatField(doc, "total_ratings")),
	}
	if raw, ok := doc["amenities"].([]interface{}); ok {
		for _, v := range raw {
			if s, ok := v.(string); ok {
				hotel.Amenities = append(hotel.Amenities, s)
			}
		}
	}
	if ts := floatField(doc, "last_synced_at"); ts > 0 {
		hotel.LastSyncedAt = time.Unix(int64(ts), 0).UTC()
	}
	return hotel
}

func buildFilter(params repositories.IndexSearchParams) string {
	var clauses []string
	if city := entities.NormalizeCity(params.City); city != "" {
		clauses = append(clauses, "city:=`"+strings.ReplaceAll(city, "`", "")+"`")
	}
	if params.MinRating != nil {
		clauses = append(clauses, "average_rating:>="+strconv.FormatFloat(*params.MinRating, 'f', 2, 64))
	}
	if len(params.Exclude) > 0 {
		ids := params.Exclude.Sorted()
		for i, id := range ids {
			ids[i] = "`" + strings.ReplaceAll(id, "`", "") + "`"
		}
		clauses = append(clauses, "id:!=["+strings.Join(ids, ",")+"]")
	}
	return strings.Join(clauses, " && ")
}

func vectorQuery(vector []float32, k int) string {
	var b strings.Builder
	b.WriteString("embedding:([")
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', 5, 32))
	}
	b.WriteString("], k:")
	b.WriteString(strconv.Itoa(k))
	b.WriteString(")")
	return b.String()
}

// distanceToSimilarity maps Typesense cosine distance in [0,2] to [0,1].
func distanceToSimilarity(d float64) float64 {
	s := 1 - d
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}

func stringField(doc map[string]interface{}, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

func floatField(doc map[string]interface{}, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func floatSliceField(doc map[string]interface{}, key string) []float32 {
	raw, ok := doc[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}
