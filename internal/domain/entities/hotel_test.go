package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotelDocument_NormalizeAndCanonicalText(t *testing.T) {
	doc := HotelDocument{
		ID:          " 12 ",
		Name:        "Harbour View",
		City:        "  New   York ",
		Description: "Rooftop bar overlooking the river",
		Amenities:   []string{"Pool", "wifi", " pool ", ""},
	}
	doc.Normalize()

	assert.Equal(t, "12", doc.ID)
	assert.Equal(t, "new york", doc.City)
	assert.Equal(t, []string{"pool", "wifi"}, doc.Amenities)
	assert.Equal(t,
		"Hotel: Harbour View in new york. Rooftop bar overlooking the river. Features: pool, wifi",
		doc.CanonicalText())
}

func TestCompareHotelIDs(t *testing.T) {
	assert.Equal(t, -1, CompareHotelIDs("9", "10"))
	assert.Equal(t, 1, CompareHotelIDs("b", "a"))
	assert.Equal(t, 0, CompareHotelIDs("7", "7"))
}

func TestSortScoredHotels_TieBreaks(t *testing.T) {
	hits := []ScoredHotel{
		{Hotel: HotelDocument{ID: "3", AverageRating: 4.0}, Similarity: 0.8},
		{Hotel: HotelDocument{ID: "2", AverageRating: 4.5}, Similarity: 0.8},
		{Hotel: HotelDocument{ID: "10", AverageRating: 4.5}, Similarity: 0.8},
		{Hotel: HotelDocument{ID: "1", AverageRating: 3.0}, Similarity: 0.9},
	}
	SortScoredHotels(hits)

	ids := []string{hits[0].Hotel.ID, hits[1].Hotel.ID, hits[2].Hotel.ID, hits[3].Hotel.ID}
	assert.Equal(t, []string{"1", "2", "10", "3"}, ids)
}

func TestSessionState_ApplyTurn(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewSessionState("abc", now)

	for i := 0; i < 4; i++ {
		s.ApplyTurn(TurnUpdate{
			Query:    "q",
			Response: "r",
			Hydrated: []HydratedHotel{{RankedHotel: RankedHotel{HotelID: string(rune('a' + i))}}},
		}, 5, now)
	}

	assert.Len(t, s.History, 5)
	assert.Equal(t, RoleAssistant, s.History[0].Role)
	assert.Equal(t, []string{"a", "b", "c", "d"}, s.ShownHotelIDs.Sorted())
	require.Len(t, s.LastResults, 1)
	assert.Equal(t, "d", s.LastResults[0].HotelID)
}

func TestSessionState_CloneIsIndependent(t *testing.T) {
	s := NewSessionState("abc", time.Now())
	price := 120.0
	s.ApplyTurn(TurnUpdate{Hydrated: []HydratedHotel{{
		RankedHotel:  RankedHotel{HotelID: "1"},
		CurrentPrice: &price,
	}}}, 10, time.Now())

	c := s.Clone()
	c.ShownHotelIDs.Add("2")
	*c.LastResults[0].CurrentPrice = 1

	assert.False(t, s.ShownHotelIDs.Has("2"))
	assert.Equal(t, 120.0, *s.LastResults[0].CurrentPrice)
}

func TestSessionState_JSONRoundTripKeepsSet(t *testing.T) {
	s := NewSessionState("abc", time.Now())
	s.ShownHotelIDs.Add("10", "9")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shown_hotel_ids":["9","10"]`)

	var decoded SessionState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.ShownHotelIDs.Has("10"))
	assert.NoError(t, decoded.Validate())
}

func TestSessionState_ValidateRejectsCorruption(t *testing.T) {
	var s SessionState
	require.NoError(t, json.Unmarshal([]byte(`{"session_id":"x","history":[{"role":"robot"}],"shown_hotel_ids":[]}`), &s))
	assert.Error(t, s.Validate())

	var missing SessionState
	require.NoError(t, json.Unmarshal([]byte(`{"session_id":"x"}`), &missing))
	assert.Error(t, missing.Validate())
}

func TestQueryFilters_AcceptsPrice(t *testing.T) {
	f := QueryFilters{MaxPrice: Float64(150), MinPrice: Float64(50)}
	assert.True(t, f.HasPriceFilter())
	assert.True(t, f.AcceptsPrice(100))
	assert.False(t, f.AcceptsPrice(151))
	assert.False(t, f.AcceptsPrice(49))
	assert.True(t, QueryFilters{}.AcceptsPrice(10000))
}

func TestLivePrice_ActiveOffers(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := LivePrice{Offers: []Offer{
		{DiscountPercentage: 10, ValidUntil: now.Add(time.Hour)},
		{DiscountPercentage: 20, ValidUntil: now.Add(-time.Hour)},
	}}

	active := p.ActiveOffers(now)
	require.Len(t, active, 1)
	assert.Equal(t, 10.0, active[0].DiscountPercentage)
}
