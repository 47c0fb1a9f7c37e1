package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_TypesenseConfig(t *testing.T) {
	t.Setenv("TYPESENSE_URL", "http://test-typesense:8108")
	t.Setenv("TYPESENSE_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://test-typesense:8108", cfg.Typesense.URL)
	assert.Equal(t, "test-key", cfg.Typesense.APIKey)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8108", cfg.Typesense.URL)
	assert.Equal(t, 3, cfg.Pipeline.TopK)
	assert.Equal(t, 12, cfg.Pipeline.OverfetchK())
	assert.Equal(t, 3, cfg.Pipeline.MinViable)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, "groq", cfg.LLM.Fallback.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", cfg.LLM.Fallback.OpenAI.Model)
	assert.Equal(t, 3*time.Second, cfg.Pricing.Timeout)
}

func TestLoad_PipelineOverrides(t *testing.T) {
	t.Setenv("PIPELINE_TOP_K", "5")
	t.Setenv("PIPELINE_REFINEMENT_CUES", "cheaper, something else ,,")
	t.Setenv("PRICING_TIMEOUT", "750ms")
	t.Setenv("SESSION_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 5, cfg.Pipeline.MinViable)
	assert.Equal(t, []string{"cheaper", "something else"}, cfg.Pipeline.RefinementCues)
	assert.Equal(t, 750*time.Millisecond, cfg.Pricing.Timeout)
	assert.Equal(t, "redis", cfg.Session.Backend)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero top k", "PIPELINE_TOP_K", "0"},
		{"unknown index", "INDEX_BACKEND", "faiss"},
		{"unknown session", "SESSION_BACKEND", "sqlite"},
		{"unknown fallback", "LLM_FALLBACK_PROVIDER", "claude"},
		{"events on a private index", "CATALOG_EVENTS_ENABLED", "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
}
