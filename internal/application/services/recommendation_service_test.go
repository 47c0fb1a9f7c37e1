package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nahid2887/today/internal/adapters/cache"
	"github.com/nahid2887/today/internal/adapters/session"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/domain/repositories"
	"github.com/nahid2887/today/pkg/config"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	svc     *RecommendationService
	pricing *fakePricing
	primary *fakeLLM
}

type pipelineParts struct {
	index    repositories.HotelIndex
	sessions repositories.SessionStore
	fallback providers.LLMProvider
	timeout  time.Duration
}

type fixtureOption func(*pipelineParts)

func withIndex(idx repositories.HotelIndex) fixtureOption {
	return func(p *pipelineParts) { p.index = idx }
}

func withSessions(store repositories.SessionStore) fixtureOption {
	return func(p *pipelineParts) { p.sessions = store }
}

func withFallback(llm providers.LLMProvider) fixtureOption {
	return func(p *pipelineParts) { p.fallback = llm }
}

func withPriceTimeout(d time.Duration) fixtureOption {
	return func(p *pipelineParts) { p.timeout = d }
}

func newPipeline(t *testing.T, opts ...fixtureOption) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		pricing: newFakePricing(fixturePrices()),
		primary: &fakeLLM{name: "primary", text: "Here you go."},
	}
	t.Cleanup(f.pricing.release)
	parts := &pipelineParts{
		index:    newFixtureIndex(t),
		sessions: session.NewMemoryStore(10, 0),
		timeout:  time.Second,
	}
	for _, opt := range opts {
		opt(parts)
	}

	logger := zerolog.Nop()
	f.svc = NewRecommendationService(
		NewQueryInterpreterService(config.PipelineConfig{}, logger),
		NewSearchService(parts.index, 10, 5, logger),
		NewRankingService(3),
		NewHydrationService(f.pricing, cache.NewLRUAdapter(100, time.Hour), HydrationOptions{
			Timeout:            parts.timeout,
			Concurrency:        8,
			LastKnownTTL:       time.Hour,
			MaxPromotionRounds: 2,
		}, logger),
		NewResponseService(f.primary, parts.fallback, time.Second, logger),
		parts.sessions,
		10,
		logger,
	)
	return f
}

func (f *pipelineFixture) ask(t *testing.T, sessionID, query string) *entities.RecommendationResult {
	t.Helper()
	res, err := f.svc.Recommend(context.Background(), entities.RecommendationRequest{Query: query, SessionID: sessionID})
	require.NoError(t, err)
	require.Equal(t, entities.StatusSuccess, res.Status)
	return res
}

type brokenStore struct {
	repositories.SessionStore
}

func (brokenStore) GetOrCreate(context.Context, string) (*entities.SessionState, error) {
	return nil, errors.New("redis: connection refused")
}

func TestRecommend_CityQuery(t *testing.T) {
	f := newPipeline(t)

	res := f.ask(t, "s1", "Hotels in Sydney")

	assert.ElementsMatch(t, []string{"1", "2", "3"}, idsOf(res.RecommendedHotels))
	assert.Equal(t, "Here you go.", res.NaturalLanguageResponse)
	assert.Equal(t, entities.QueryTypeLocationSearch, res.Metadata.QueryType)
	assert.Equal(t, entities.SearchScopeCity, res.Metadata.SearchScope)
	assert.Equal(t, entities.ResponseSourcePrimary, res.Metadata.ResponseSource)
	assert.Equal(t, "s1", res.Metadata.SessionID)
	assert.Equal(t, 6, res.Metadata.TotalFound)
	assert.Equal(t, 3, res.Metadata.Hydration[entities.HydrationOK])
	assert.Empty(t, res.Metadata.Degradations)
	assert.Equal(t, []string{"1", "2", "3"}, res.ShownHotelIDs)
	assert.Len(t, res.LastHotels, 3)
	for _, h := range res.RecommendedHotels {
		assert.Equal(t, "sydney", h.Hotel.City)
		require.NotNil(t, h.CurrentPrice)
	}
}

func TestRecommend_NeverRepeatsWithinSession(t *testing.T) {
	f := newPipeline(t)

	first := f.ask(t, "s1", "Hotels in Sydney")
	second := f.ask(t, "s1", "Hotels in Sydney")

	assert.ElementsMatch(t, []string{"4", "5", "6"}, idsOf(second.RecommendedHotels))
	for _, id := range idsOf(first.RecommendedHotels) {
		assert.NotContains(t, idsOf(second.RecommendedHotels), id)
	}
	assert.Len(t, second.ShownHotelIDs, 6)
}

func TestRecommend_CheaperRefinement(t *testing.T) {
	f := newPipeline(t)

	f.ask(t, "s1", "Hotels in Sydney")
	res := f.ask(t, "s1", "show me cheaper ones")

	assert.True(t, res.Metadata.IsRefinement)
	assert.Equal(t, entities.SearchScopeRefinement, res.Metadata.SearchScope)
	assert.Equal(t, "sydney", res.Metadata.FiltersApplied.City)
	require.NotEmpty(t, res.RecommendedHotels)
	assert.Subset(t, []string{"4", "5"}, idsOf(res.RecommendedHotels))
	for _, h := range res.RecommendedHotels {
		require.NotNil(t, h.CurrentPrice)
		assert.Less(t, *h.CurrentPrice, 220.0)
	}
	assert.Contains(t, res.Metadata.Degradations, DegradedInsufficient)
}

func TestRecommend_UnknownCitySearchesGlobally(t *testing.T) {
	f := newPipeline(t)

	res := f.ask(t, "s1", "hotels in Nowhereville")

	assert.Equal(t, entities.SearchScopeGlobal, res.Metadata.SearchScope)
	assert.Empty(t, res.Metadata.FiltersApplied.City)
	assert.Len(t, res.RecommendedHotels, 3)
}

func TestRecommend_LLMOutageFallsBackToTemplate(t *testing.T) {
	f := newPipeline(t, withFallback(&fakeLLM{name: "fallback", err: errProviderDown}))
	f.primary.err = errProviderDown

	res := f.ask(t, "s1", "Hotels in Sydney")

	assert.Equal(t, entities.ResponseSourceTemplate, res.Metadata.ResponseSource)
	assert.Contains(t, res.Metadata.Degradations, DegradedTemplateResponse)
	assert.NotEmpty(t, res.NaturalLanguageResponse)
	assert.Len(t, res.RecommendedHotels, 3)
}

func TestRecommend_PricingTimeoutIsBounded(t *testing.T) {
	f := newPipeline(t, withPriceTimeout(100*time.Millisecond))
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		f.pricing.hang[id] = true
	}

	start := time.Now()
	res := f.ask(t, "s1", "Hotels in Sydney")

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, res.RecommendedHotels, 3)
	for _, h := range res.RecommendedHotels {
		assert.Equal(t, entities.HydrationStale, h.HydrationStatus)
	}
	assert.Contains(t, res.Metadata.Degradations, DegradedHydrationPartial)
}

func TestRecommend_PriceFilterDropsUnpricedCandidates(t *testing.T) {
	f := newPipeline(t, withPriceTimeout(100*time.Millisecond))
	f.pricing.hang["4"] = true

	res := f.ask(t, "s1", "Sydney hotels under $150")

	assert.Equal(t, []string{"5"}, idsOf(res.RecommendedHotels))
	assert.Equal(t, len(res.RecommendedHotels), res.Metadata.Hydration[entities.HydrationOK])
	assert.Positive(t, res.Metadata.Hydration[entities.HydrationFiltered])
	assert.Contains(t, res.Metadata.Degradations, DegradedHydrationPartial)
	assert.Contains(t, res.Metadata.Degradations, DegradedInsufficient)
}

func TestRecommend_UnmatchedAmenities(t *testing.T) {
	f := newPipeline(t)

	res := f.ask(t, "s1", "hotels in Sydney with a gym")

	assert.Equal(t, entities.QueryTypeAmenitySearch, res.Metadata.QueryType)
	assert.Equal(t, []string{"gym"}, res.Metadata.UnmatchedAmenities)
}

func TestRecommend_SessionIntegrity(t *testing.T) {
	f := newPipeline(t, withSessions(brokenStore{}))

	_, err := f.svc.Recommend(context.Background(), entities.RecommendationRequest{Query: "Hotels in Sydney", SessionID: "s1"})

	require.Error(t, err)
	assert.True(t, apperrors.IsSessionIntegrity(err))
}

func TestRecommend_EphemeralSession(t *testing.T) {
	f := newPipeline(t)

	first := f.ask(t, "", "Hotels in Sydney")
	second := f.ask(t, "", "Hotels in Sydney")

	assert.Empty(t, first.Metadata.SessionID)
	assert.Len(t, first.ShownHotelIDs, 3)
	assert.ElementsMatch(t, idsOf(first.RecommendedHotels), idsOf(second.RecommendedHotels))
}

func TestRecommend_EmptyQuery(t *testing.T) {
	f := newPipeline(t)

	res := f.ask(t, "s1", "   ")

	assert.Equal(t, emptyQueryResponse, res.NaturalLanguageResponse)
	assert.Empty(t, res.RecommendedHotels)
	assert.NotNil(t, res.RecommendedHotels)
	assert.Zero(t, f.pricing.calls)
}

func TestRecommend_Reset(t *testing.T) {
	f := newPipeline(t)

	first := f.ask(t, "s1", "Hotels in Sydney")
	require.NoError(t, f.svc.ResetSession(context.Background(), "s1"))
	again := f.ask(t, "s1", "Hotels in Sydney")
	assert.ElementsMatch(t, idsOf(first.RecommendedHotels), idsOf(again.RecommendedHotels))

	res, err := f.svc.Recommend(context.Background(), entities.RecommendationRequest{
		Query: "Hotels in Sydney", SessionID: "s1", ResetSession: true,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, idsOf(first.RecommendedHotels), idsOf(res.RecommendedHotels))

	err = f.svc.ResetSession(context.Background(), " ")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestRecommend_ConcurrentTurnsOnOneSession(t *testing.T) {
	f := newPipeline(t)

	var wg sync.WaitGroup
	results := make([]*entities.RecommendationResult, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Recommend(context.Background(), entities.RecommendationRequest{Query: "Hotels in Sydney", SessionID: "s1"})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	all := append(idsOf(results[0].RecommendedHotels), idsOf(results[1].RecommendedHotels)...)
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5", "6"}, all)
}

func TestRecommend_UnsyncedIndex(t *testing.T) {
	idx := newFixtureIndexEmpty()
	f := newPipeline(t, withIndex(idx))
	catalog := NewCatalogSyncService(&fakeFeed{}, idx, zerolog.Nop())
	var fired int32
	f.svc.SetIndexMonitor(catalog.Unsynced, func() { atomic.AddInt32(&fired, 1) })

	res := f.ask(t, "s1", "Hotels in Sydney")

	assert.Empty(t, res.RecommendedHotels)
	assert.Contains(t, res.Metadata.Degradations, DegradedIndexUnsynced)
	assert.Contains(t, res.Metadata.Degradations, DegradedRetrievalEmpty)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fired))
}

func TestRecommend_SearchUnavailable(t *testing.T) {
	f := newPipeline(t, withIndex(&failingIndex{HotelIndex: newFixtureIndexEmpty()}))

	res := f.ask(t, "s1", "Hotels in Sydney")

	assert.Contains(t, res.Metadata.Degradations, DegradedSearchUnavailable)
	assert.Empty(t, res.RecommendedHotels)
	assert.NotEmpty(t, res.NaturalLanguageResponse)
}
