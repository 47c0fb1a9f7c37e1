package services

import (
	"context"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/repositories"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SearchOutcome is the candidate pool handed to ranking.
type SearchOutcome struct {
	Candidates []entities.ScoredHotel
	Scope      entities.SearchScope
}

// SearchService retrieves candidates from the embedding index, combining the
// exact city filter with semantic similarity.
type SearchService struct {
	index     repositories.HotelIndex
	overfetch int
	minViable int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

// NewSearchService creates a search node over index.
func NewSearchService(index repositories.HotelIndex, overfetchK, minViable int, logger zerolog.Logger) *SearchService {
	if minViable <= 0 {
		minViable = 1
	}
	return &SearchService{
		index:     index,
		overfetch: overfetchK,
		minViable: minViable,
		logger:    logger,
	}
}

// SetMetrics sets the metrics sink.
func (s *SearchService) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Search returns at most the overfetch count of candidates, none of them in
// shown. Refinements stay inside the carried city. A city search that finds
// fewer than the minimum viable count is topped up from a global search,
// city matches first.
func (s *SearchService) Search(ctx context.Context, qc entities.QueryContext, shown entities.HotelIDSet) (SearchOutcome, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.search")
	defer span.End()
	start := time.Now()
	defer func() { observability.RecordStage(ctx, s.metrics, "search", time.Since(start)) }()

	params := repositories.IndexSearchParams{
		Query:     qc.SemanticQuery,
		City:      qc.Filters.City,
		MinRating: qc.Filters.MinRating,
		Exclude:   shown,
		K:         s.overfetch,
	}
	if params.Query == "" {
		params.Query = qc.RawQuery
	}

	if qc.IsRefinement {
		hits, err := s.index.Search(ctx, params)
		if err != nil {
			observability.RecordError(span, err)
			return SearchOutcome{Scope: entities.SearchScopeRefinement}, apperrors.NewExternalError("index search failed", err)
		}
		return SearchOutcome{Candidates: hits, Scope: entities.SearchScopeRefinement}, nil
	}

	if params.City == "" {
		hits, err := s.index.Search(ctx, params)
		if err != nil {
			observability.RecordError(span, err)
			return SearchOutcome{Scope: entities.SearchScopeGlobal}, apperrors.NewExternalError("index search failed", err)
		}
		return SearchOutcome{Candidates: hits, Scope: entities.SearchScopeGlobal}, nil
	}

	cityHits, err := s.index.Search(ctx, params)
	if err != nil {
		observability.RecordError(span, err)
		return SearchOutcome{Scope: entities.SearchScopeCity}, apperrors.NewExternalError("index search failed", err)
	}
	if len(cityHits) >= s.minViable || len(cityHits) >= s.overfetch {
		return SearchOutcome{Candidates: cityHits, Scope: entities.SearchScopeCity}, nil
	}

	s.logger.Warn().
		Str("city", params.City).
		Int("city_hits", len(cityHits)).
		Int("min_viable", s.minViable).
		Msg("city search below viable count, widening to global")
	span.SetAttributes(attribute.Bool("search.global_fallback", true))

	exclude := make(entities.HotelIDSet, len(shown)+len(cityHits))
	for id := range shown {
		exclude.Add(id)
	}
	for _, h := range cityHits {
		exclude.Add(h.Hotel.ID)
	}
	global := params
	global.City = ""
	global.Exclude = exclude
	global.K = s.overfetch - len(cityHits)

	globalHits, err := s.index.Search(ctx, global)
	if err != nil {
		s.logger.Warn().Err(err).Msg("global fallback search failed, keeping city results")
		return SearchOutcome{Candidates: cityHits, Scope: entities.SearchScopeCity}, nil
	}
	if len(globalHits) == 0 {
		return SearchOutcome{Candidates: cityHits, Scope: entities.SearchScopeCity}, nil
	}

	merged := make([]entities.ScoredHotel, 0, len(cityHits)+len(globalHits))
	merged = append(merged, cityHits...)
	merged = append(merged, globalHits...)
	scope := entities.SearchScopeCityGlobal
	if len(cityHits) == 0 {
		scope = entities.SearchScopeGlobal
	}
	return SearchOutcome{Candidates: merged, Scope: scope}, nil
}
