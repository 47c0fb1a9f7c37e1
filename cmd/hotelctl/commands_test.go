package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nahid2887/today/pkg/config"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hotel/sync/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "ok",
			"count":   1,
			"hotels": []map[string]any{
				{"id": 7, "hotel_name": "Harbour View", "city": "Sydney", "country": "Australia", "average_rating": 4.6, "total_ratings": 40},
			},
		})
	})
	mux.HandleFunc("/api/hotel/ai/details/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "ok",
			"hotel":   map[string]any{"id": 7, "base_price_per_night": 199, "currency": "AUD", "active_special_offers": []any{}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("CATALOG_BASE_URL", baseURL)
	t.Setenv("PRICING_BASE_URL", baseURL)
	t.Setenv("INDEX_BACKEND", "memory")
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("EMBEDDING_PROVIDER", "hashing")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_FALLBACK_PROVIDER", "none")
}

func TestAsk_PrintsHotels(t *testing.T) {
	srv := catalogServer(t)
	setupEnv(t, srv.URL)

	out, err := execute(t, "ask", "hotels", "in", "Sydney")
	require.NoError(t, err)
	assert.Contains(t, out, "Harbour View")
	assert.Contains(t, out, "199.00 AUD")
}

func TestSync_ReportsCounts(t *testing.T) {
	srv := catalogServer(t)
	setupEnv(t, srv.URL)

	out, err := execute(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "fetched 1, upserted 1")
}

func TestSync_RejectsBadSince(t *testing.T) {
	_, err := execute(t, "sync", "--since", "yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --since")
}

func TestReset_RequiresSessionID(t *testing.T) {
	_, err := execute(t, "reset")
	require.Error(t, err)
}

func TestBuild_ConfigError(t *testing.T) {
	opts := &rootOptions{loadConf: func() (*config.Config, error) { return nil, errors.New("bad config") }}
	_, err := opts.build(context.Background(), newRootCmd())
	require.EqualError(t, err, "bad config")
}
