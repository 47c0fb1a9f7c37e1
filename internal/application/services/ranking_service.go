package services

import (
	"sort"

	"github.com/nahid2887/today/internal/domain/entities"
)

const (
	ratingWeight     = 0.6
	similarityWeight = 0.4
)

// RankingService scores candidates with the composite formula and orders
// them deterministically.
type RankingService struct {
	topK int
}

// NewRankingService creates a rank node returning at most topK hotels.
func NewRankingService(topK int) *RankingService {
	if topK < 1 {
		topK = 3
	}
	return &RankingService{topK: topK}
}

// TopK returns the configured result size.
func (s *RankingService) TopK() int { return s.topK }

// Score computes 0.6 × rating/5 + 0.4 × similarity.
func (s *RankingService) Score(hit entities.ScoredHotel) entities.RankedHotel {
	normalizedRating := clamp01(hit.Hotel.AverageRating / 5.0)
	similarity := clamp01(hit.Similarity)
	return entities.RankedHotel{
		HotelID:          hit.Hotel.ID,
		CompositeScore:   ratingWeight*normalizedRating + similarityWeight*similarity,
		SimilarityScore:  similarity,
		NormalizedRating: normalizedRating,
		Hotel:            hit.Hotel.WithoutEmbedding(),
	}
}

// Order scores every candidate not in shown, drops duplicate ids and sorts
// by composite score, then total ratings, then id.
func (s *RankingService) Order(candidates []entities.ScoredHotel, shown entities.HotelIDSet) []entities.RankedHotel {
	seen := make(map[string]struct{}, len(candidates))
	ranked := make([]entities.RankedHotel, 0, len(candidates))
	for _, c := range candidates {
		if shown.Has(c.Hotel.ID) {
			continue
		}
		if _, dup := seen[c.Hotel.ID]; dup {
			continue
		}
		seen[c.Hotel.ID] = struct{}{}
		ranked = append(ranked, s.Score(c))
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.CompositeScore != b.CompositeScore {
			return a.CompositeScore > b.CompositeScore
		}
		if a.Hotel.TotalRatings != b.Hotel.TotalRatings {
			return a.Hotel.TotalRatings > b.Hotel.TotalRatings
		}
		return entities.CompareHotelIDs(a.HotelID, b.HotelID) < 0
	})
	return ranked
}

// Rank returns the top K of Order.
func (s *RankingService) Rank(candidates []entities.ScoredHotel, shown entities.HotelIDSet) []entities.RankedHotel {
	ranked := s.Order(candidates, shown)
	if len(ranked) > s.topK {
		ranked = ranked[:s.topK]
	}
	return ranked
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
