package services

import (
	"context"
	"testing"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	"github.com/nahid2887/today/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestInterpreter() *QueryInterpreterService {
	return NewQueryInterpreterService(config.PipelineConfig{}, zerolog.Nop())
}

func pricedResult(id string, price, rating float64) entities.HydratedHotel {
	return entities.HydratedHotel{
		RankedHotel: entities.RankedHotel{
			HotelID: id,
			Hotel:   entities.HotelDocument{ID: id, City: "sydney", AverageRating: rating},
		},
		CurrentPrice:    entities.Float64(price),
		HydrationStatus: entities.HydrationOK,
	}
}

func sydneySession() *entities.SessionState {
	s := entities.NewSessionState("s", time.Now())
	s.ApplyTurn(entities.TurnUpdate{
		Query:    "hotels in Sydney",
		Response: "here are some",
		Hydrated: []entities.HydratedHotel{
			pricedResult("1", 300, 5.0),
			pricedResult("2", 250, 4.9),
			pricedResult("3", 220, 4.8),
		},
		Filters: entities.QueryFilters{City: "sydney"},
	}, 10, time.Now())
	return s
}

func TestInterpret_FiltersAndType(t *testing.T) {
	svc := newTestInterpreter()

	tests := []struct {
		name      string
		query     string
		queryType entities.QueryType
		city      string
		minPrice  *float64
		maxPrice  *float64
		minRating *float64
		amenities []string
	}{
		{
			name:      "price with amenity",
			query:     "Hotels in Sydney under $200 with a pool",
			queryType: entities.QueryTypeBudgetSearch,
			city:      "sydney",
			maxPrice:  entities.Float64(200),
			amenities: []string{"pool"},
		},
		{
			name:      "star rating",
			query:     "4-star hotels in Melbourne",
			queryType: entities.QueryTypeQualitySearch,
			city:      "melbourne",
			minRating: entities.Float64(4),
		},
		{
			name:      "budget words",
			query:     "cheap hotels in Sydney",
			queryType: entities.QueryTypeBudgetSearch,
			city:      "sydney",
			maxPrice:  entities.Float64(budgetMaxPrice),
		},
		{
			name:      "luxury words",
			query:     "luxury stay in Perth",
			queryType: entities.QueryTypeBudgetSearch,
			city:      "perth",
			minPrice:  entities.Float64(luxuryMinPrice),
		},
		{
			name:      "between range",
			query:     "rooms between $100 and $200",
			queryType: entities.QueryTypeBudgetSearch,
			minPrice:  entities.Float64(100),
			maxPrice:  entities.Float64(200),
		},
		{
			name:      "thousands separator",
			query:     "suites under $1,500 in London",
			queryType: entities.QueryTypeBudgetSearch,
			city:      "london",
			maxPrice:  entities.Float64(1500),
		},
		{
			name:      "rating is not a price",
			query:     "rating above 4.5 under $150",
			queryType: entities.QueryTypeBudgetSearch,
			maxPrice:  entities.Float64(150),
			minRating: entities.Float64(4.5),
		},
		{
			name:      "amenity synonyms",
			query:     "somewhere with wi-fi that is pet-friendly",
			queryType: entities.QueryTypeAmenitySearch,
			amenities: []string{"wifi", "pet friendly"},
		},
		{
			name:      "city only",
			query:     "Gold Coast hotels",
			queryType: entities.QueryTypeLocationSearch,
			city:      "gold coast",
		},
		{
			name:      "top rated",
			query:     "top rated places",
			queryType: entities.QueryTypeQualitySearch,
			minRating: entities.Float64(topRatedFloor),
		},
		{
			name:      "general",
			query:     "somewhere quiet",
			queryType: entities.QueryTypeGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qc := svc.Interpret(tt.query, nil)

			assert.Equal(t, tt.queryType, qc.QueryType)
			assert.False(t, qc.IsRefinement)
			assert.Equal(t, tt.city, qc.Filters.City)
			assert.Equal(t, tt.minPrice, qc.Filters.MinPrice)
			assert.Equal(t, tt.maxPrice, qc.Filters.MaxPrice)
			assert.Equal(t, tt.minRating, qc.Filters.MinRating)
			assert.ElementsMatch(t, tt.amenities, qc.Filters.Amenities)
			assert.NotEmpty(t, qc.SemanticQuery)
		})
	}
}

func TestInterpret_SemanticQueryDropsPricePhrase(t *testing.T) {
	qc := newTestInterpreter().Interpret("Hotels in Sydney under $200 with a pool", nil)

	assert.Equal(t, "hotels in sydney with a pool", qc.SemanticQuery)
	assert.Equal(t, "Hotels in Sydney under $200 with a pool", qc.RawQuery)
}

func TestInterpret_EmptyQuery(t *testing.T) {
	qc := newTestInterpreter().Interpret("   ", nil)

	assert.Equal(t, entities.QueryTypeGeneral, qc.QueryType)
	assert.Empty(t, qc.SemanticQuery)
	assert.True(t, qc.Filters.IsZero())
}

func TestInterpret_UnknownCity(t *testing.T) {
	svc := newTestInterpreter()

	qc := svc.Interpret("hotels in Nowhereville", nil)
	assert.Empty(t, qc.Filters.City)
	assert.Equal(t, "nowhereville", qc.UnresolvedCity)
	assert.Equal(t, entities.QueryTypeGeneral, qc.QueryType)

	svc.SetIndexedCities([]string{"Nowhereville"})
	qc = svc.Interpret("hotels in Nowhereville", nil)
	assert.Equal(t, "nowhereville", qc.Filters.City)
	assert.Empty(t, qc.UnresolvedCity)
	assert.True(t, svc.KnownCity("NOWHEREVILLE"))
}

func TestInterpret_UnknownCityIsCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	metrics, err := observability.InitMetrics()
	require.NoError(t, err)
	svc := newTestInterpreter()
	svc.SetMetrics(metrics)

	svc.Interpret("hotels in Nowhereville", nil)
	svc.Interpret("hotels in Nowhereville", nil)
	svc.Interpret("hotels in Sydney", nil)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var points []metricdata.DataPoint[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "query.city_unresolved.count" {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				points = sum.DataPoints
			}
		}
	}
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Value)
	city, ok := points[0].Attributes.Value("query.city")
	require.True(t, ok)
	assert.Equal(t, "nowhereville", city.AsString())
}

func TestInterpret_CheaperRefinement(t *testing.T) {
	qc := newTestInterpreter().Interpret("show me cheaper ones", sydneySession())

	require.True(t, qc.IsRefinement)
	assert.Equal(t, entities.QueryTypeRefinement, qc.QueryType)
	assert.Equal(t, entities.RefinementCheaper, qc.Refinement)
	assert.Equal(t, "sydney", qc.Filters.City)
	require.NotNil(t, qc.Filters.MaxPrice)
	assert.Less(t, *qc.Filters.MaxPrice, 220.0)
	assert.Greater(t, *qc.Filters.MaxPrice, 219.99)
	assert.Equal(t, "hotels in Sydney show me cheaper ones", qc.SemanticQuery)
}

func TestInterpret_BudgetWordInRefinementIsTheDelta(t *testing.T) {
	qc := newTestInterpreter().Interpret("anything more affordable?", sydneySession())

	require.True(t, qc.IsRefinement)
	assert.Equal(t, entities.RefinementCheaper, qc.Refinement)
	require.NotNil(t, qc.Filters.MaxPrice)
	assert.Less(t, *qc.Filters.MaxPrice, 220.0)
	assert.Greater(t, *qc.Filters.MaxPrice, float64(budgetMaxPrice))
}

func TestInterpret_PricierAndBetterRated(t *testing.T) {
	svc := newTestInterpreter()

	qc := svc.Interpret("something more expensive", sydneySession())
	require.True(t, qc.IsRefinement)
	assert.Equal(t, entities.RefinementPricier, qc.Refinement)
	require.NotNil(t, qc.Filters.MinPrice)
	assert.Greater(t, *qc.Filters.MinPrice, 300.0)

	qc = svc.Interpret("any better rated ones?", sydneySession())
	require.True(t, qc.IsRefinement)
	assert.Equal(t, entities.RefinementBetterRated, qc.Refinement)
	require.NotNil(t, qc.Filters.MinRating)
	assert.LessOrEqual(t, *qc.Filters.MinRating, 5.0)
	assert.Greater(t, *qc.Filters.MinRating, 4.99)
}

func TestInterpret_MoreOptionsKeepsFilters(t *testing.T) {
	session := sydneySession()
	session.LastFilters.Amenities = []string{"pool"}

	qc := newTestInterpreter().Interpret("show more", session)

	require.True(t, qc.IsRefinement)
	assert.Equal(t, entities.RefinementMoreOptions, qc.Refinement)
	assert.Equal(t, session.LastFilters, qc.Filters)
}

func TestInterpret_DifferentCityStartsNewTopic(t *testing.T) {
	qc := newTestInterpreter().Interpret("cheaper hotels in Melbourne", sydneySession())

	assert.False(t, qc.IsRefinement)
	assert.Equal(t, "melbourne", qc.Filters.City)
	assert.Nil(t, qc.Filters.MaxPrice)
}

func TestInterpret_CueWithoutHistoryIsNotRefinement(t *testing.T) {
	svc := newTestInterpreter()

	assert.False(t, svc.Interpret("cheaper ones", nil).IsRefinement)
	assert.False(t, svc.Interpret("cheaper ones", entities.NewSessionState("s", time.Now())).IsRefinement)
}

func TestInterpret_ConfiguredCues(t *testing.T) {
	svc := NewQueryInterpreterService(config.PipelineConfig{RefinementCues: []string{"Nah"}}, zerolog.Nop())

	assert.True(t, svc.Interpret("nah, try again", sydneySession()).IsRefinement)
	assert.False(t, svc.Interpret("cheaper ones", sydneySession()).IsRefinement)
}

func TestHotelProvidesAmenity(t *testing.T) {
	h := entities.HotelDocument{Amenities: []string{"free wi-fi", "valet"}}

	assert.True(t, HotelProvidesAmenity(h, "wifi"))
	assert.True(t, HotelProvidesAmenity(h, "parking"))
	assert.False(t, HotelProvidesAmenity(h, "pool"))
}
