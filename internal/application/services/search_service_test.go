package services

import (
	"context"
	"errors"
	"testing"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/repositories"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIndex struct {
	repositories.HotelIndex
	failGlobal bool
	calls      []repositories.IndexSearchParams
}

func (f *failingIndex) Search(ctx context.Context, params repositories.IndexSearchParams) ([]entities.ScoredHotel, error) {
	f.calls = append(f.calls, params)
	if params.City != "" && !f.failGlobal {
		return nil, errors.New("index offline")
	}
	if params.City == "" && f.failGlobal {
		return nil, errors.New("index offline")
	}
	return f.HotelIndex.Search(ctx, params)
}

func hitIDs(hits []entities.ScoredHotel) []string {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Hotel.ID
	}
	return ids
}

func TestSearchService_CityScope(t *testing.T) {
	svc := NewSearchService(newFixtureIndex(t), 10, 5, zerolog.Nop())

	out, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in sydney",
		Filters:       entities.QueryFilters{City: "sydney"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.SearchScopeCity, out.Scope)
	assert.Len(t, out.Candidates, 6)
	for _, h := range out.Candidates {
		assert.Equal(t, "sydney", h.Hotel.City)
	}
}

func TestSearchService_ThinCityWidensCityFirst(t *testing.T) {
	svc := NewSearchService(newFixtureIndex(t), 10, 5, zerolog.Nop())

	out, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in melbourne",
		Filters:       entities.QueryFilters{City: "melbourne"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.SearchScopeCityGlobal, out.Scope)
	require.Len(t, out.Candidates, 10)
	for i, h := range out.Candidates {
		if i < 4 {
			assert.Equal(t, "melbourne", h.Hotel.City)
		} else {
			assert.NotEqual(t, "melbourne", h.Hotel.City)
		}
	}
}

func TestSearchService_NoCityIsGlobal(t *testing.T) {
	svc := NewSearchService(newFixtureIndex(t), 10, 5, zerolog.Nop())

	out, err := svc.Search(context.Background(), entities.QueryContext{SemanticQuery: "hotels in nowhereville"}, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.SearchScopeGlobal, out.Scope)
	assert.Len(t, out.Candidates, 10)
}

func TestSearchService_RefinementStaysInCity(t *testing.T) {
	svc := NewSearchService(newFixtureIndex(t), 10, 5, zerolog.Nop())

	out, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in melbourne cheaper",
		IsRefinement:  true,
		Filters:       entities.QueryFilters{City: "melbourne"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.SearchScopeRefinement, out.Scope)
	assert.Len(t, out.Candidates, 4)
}

func TestSearchService_ExcludesShownAndRating(t *testing.T) {
	svc := NewSearchService(newFixtureIndex(t), 10, 1, zerolog.Nop())
	shown := entities.HotelIDSet{}
	shown.Add("1", "2")

	out, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in sydney",
		Filters:       entities.QueryFilters{City: "sydney", MinRating: entities.Float64(2.0)},
	}, shown)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"3", "4", "5"}, hitIDs(out.Candidates))
}

func TestSearchService_IndexError(t *testing.T) {
	idx := &failingIndex{HotelIndex: newFixtureIndex(t)}
	svc := NewSearchService(idx, 10, 5, zerolog.Nop())

	_, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in sydney",
		Filters:       entities.QueryFilters{City: "sydney"},
	}, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
}

func TestSearchService_GlobalFallbackFailureKeepsCityHits(t *testing.T) {
	idx := &failingIndex{HotelIndex: newFixtureIndex(t), failGlobal: true}
	svc := NewSearchService(idx, 10, 5, zerolog.Nop())

	out, err := svc.Search(context.Background(), entities.QueryContext{
		SemanticQuery: "hotels in melbourne",
		Filters:       entities.QueryFilters{City: "melbourne"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, entities.SearchScopeCity, out.Scope)
	assert.Len(t, out.Candidates, 4)
	require.Len(t, idx.calls, 2)
	assert.True(t, idx.calls[1].Exclude.Has("7"))
	assert.Equal(t, 6, idx.calls[1].K)
}
