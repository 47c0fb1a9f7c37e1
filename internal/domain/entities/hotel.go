package entities

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// HotelDocument is the indexed form of one catalog hotel.
type HotelDocument struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Country       string    `json:"country"`
	Description   string    `json:"description"`
	Amenities     []string  `json:"amenities"`
	AverageRating float64   `json:"average_rating"`
	TotalRatings  int       `json:"total_ratings"`
	Embedding     []float32 `json:"-"`
	LastSyncedAt  time.Time `json:"last_synced_at"`
}

// Normalize lowercases the city filter key and turns amenities into a sorted set.
func (h *HotelDocument) Normalize() {
	h.ID = strings.TrimSpace(h.ID)
	h.Name = strings.TrimSpace(h.Name)
	h.City = NormalizeCity(h.City)
	h.Country = strings.TrimSpace(h.Country)
	h.Description = strings.TrimSpace(h.Description)
	h.Amenities = NormalizeAmenities(h.Amenities)
	if h.AverageRating < 0 {
		h.AverageRating = 0
	}
	if h.AverageRating > 5 {
		h.AverageRating = 5
	}
	if h.TotalRatings < 0 {
		h.TotalRatings = 0
	}
}

// CanonicalText is the text the embedding is derived from.
func (h *HotelDocument) CanonicalText() string {
	return "Hotel: " + h.Name + " in " + h.City + ". " + h.Description +
		". Features: " + strings.Join(h.Amenities, ", ")
}

// HasAmenity reports whether the hotel lists the amenity (case-insensitive).
func (h *HotelDocument) HasAmenity(amenity string) bool {
	amenity = strings.ToLower(strings.TrimSpace(amenity))
	for _, a := range h.Amenities {
		if strings.Contains(a, amenity) {
			return true
		}
	}
	return false
}

// WithoutEmbedding returns a copy safe to hand across component boundaries.
func (h HotelDocument) WithoutEmbedding() HotelDocument {
	h.Embedding = nil
	h.Amenities = append([]string(nil), h.Amenities...)
	return h
}

// NormalizeCity produces the exact-match filter key for a city name.
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToLower(city)), " ")
}

// NormalizeAmenities lowercases, trims, dedupes and sorts amenity names.
func NormalizeAmenities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.Join(strings.Fields(strings.ToLower(a)), " ")
		if a == "" {
			continue
		}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// CompareHotelIDs orders ids numerically when both are integers and
// lexically otherwise. It returns -1, 0 or 1.
func CompareHotelIDs(a, b string) int {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// ScoredHotel is a retrieval hit: a hotel and its similarity to the query in [0,1].
type ScoredHotel struct {
	Hotel      HotelDocument `json:"hotel"`
	Similarity float64       `json:"similarity"`
}

// SortScoredHotels orders hits by similarity, then rating, then id.
func SortScoredHotels(hits []ScoredHotel) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		if hits[i].Hotel.AverageRating != hits[j].Hotel.AverageRating {
			return hits[i].Hotel.AverageRating > hits[j].Hotel.AverageRating
		}
		return CompareHotelIDs(hits[i].Hotel.ID, hits[j].Hotel.ID) < 0
	})
}
