package hotelapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogClient_FetchHotels(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/hotel/sync/", r.URL.Path)
		gotSince = r.URL.Query().Get("since")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": "ok",
			"count": 3,
			"hotels": [
				{"id": 1, "hotel_name": "Harbour View", "city": "Sydney", "country": "Australia",
				 "description": "views", "amenities": ["Pool", "WiFi"], "average_rating": "4.50", "total_ratings": 120},
				{"id": "2", "hotel_name": "Gulshan Inn", "city": "Dhaka", "amenities": "gym, spa ,",
				 "average_rating": 3.9, "total_ratings": null},
				{"hotel_name": "No Id"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL+"/", time.Second, zerolog.Nop())
	since := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	docs, err := client.FetchHotels(context.Background(), &since)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01T10:00:00Z", gotSince)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, "Harbour View", docs[0].Name)
	assert.Equal(t, 4.5, docs[0].AverageRating)
	assert.Equal(t, 120, docs[0].TotalRatings)
	assert.Equal(t, []string{"Pool", "WiFi"}, docs[0].Amenities)
	assert.Equal(t, []string{"gym", "spa"}, docs[1].Amenities)
	assert.Equal(t, 0, docs[1].TotalRatings)
}

func TestCatalogClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"hotels": []}`))
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL, time.Second, zerolog.Nop())
	client.retry.InitialDelay = time.Millisecond

	docs, err := client.FetchHotels(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCatalogClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewCatalogClient(srv.URL, time.Second, zerolog.Nop())
	_, err := client.FetchHotels(context.Background(), nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}
