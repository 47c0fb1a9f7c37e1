package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	OTEL        OTELConfig
	Pipeline    PipelineConfig
	Index       IndexConfig
	Embedding   EmbeddingConfig
	Session     SessionConfig
	Catalog     CatalogConfig
	Pricing     PricingConfig
	LLM         LLMConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// PipelineConfig tunes retrieval, ranking and session continuity.
type PipelineConfig struct {
	TopK               int
	OverfetchFactor    int
	MinViable          int
	MaxPromotionRounds int
	HistoryWindow      int
	RefinementCues     []string
	KnownCities        []string
}

// OverfetchK is the number of candidates requested from the index.
func (c *PipelineConfig) OverfetchK() int {
	return c.TopK * c.OverfetchFactor
}

// IndexConfig selects the embedding index backend.
type IndexConfig struct {
	Backend    string // memory | typesense
	Collection string
}

// EmbeddingConfig selects the text embedding provider.
type EmbeddingConfig struct {
	Provider   string // hashing | openai
	Model      string
	Dimensions int
}

// SessionConfig selects the session store backend.
type SessionConfig struct {
	Backend   string // memory | redis
	TTL       time.Duration
	KeyPrefix string
}

// CatalogConfig points at the external hotel catalog feed.
type CatalogConfig struct {
	BaseURL      string
	Timeout      time.Duration
	SyncInterval time.Duration
	// EventsEnabled announces syncs over Redis so processes sharing an
	// external index refresh their city vocabulary.
	EventsEnabled bool
}

// PricingConfig points at the external live-pricing feed.
type PricingConfig struct {
	BaseURL          string
	Timeout          time.Duration
	Concurrency      int
	BreakerFailures  int
	BreakerCooldown  time.Duration
	LastKnownTTL     time.Duration
	LastKnownEntries int
}

// LLMConfig holds the primary and fallback model routes.
type LLMConfig struct {
	Timeout  time.Duration
	Primary  OpenAIConfig
	Fallback FallbackLLMConfig
}

// OpenAIConfig holds configuration for an OpenAI-compatible endpoint
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
}

// FallbackLLMConfig holds the second LLM route. Provider is groq (OpenAI
// compatible) or gemini.
type FallbackLLMConfig struct {
	Provider string
	OpenAI   OpenAIConfig
	Gemini   GeminiConfig
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "hotel-recommender"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Pipeline: PipelineConfig{
			TopK:               getEnvAsInt("PIPELINE_TOP_K", 3),
			OverfetchFactor:    getEnvAsInt("PIPELINE_OVERFETCH_FACTOR", 4),
			MinViable:          getEnvAsInt("PIPELINE_MIN_VIABLE", 0),
			MaxPromotionRounds: getEnvAsInt("PIPELINE_MAX_PROMOTION_ROUNDS", 3),
			HistoryWindow:      getEnvAsInt("SESSION_HISTORY_WINDOW", 10),
			RefinementCues:     getEnvAsList("PIPELINE_REFINEMENT_CUES", nil),
			KnownCities:        getEnvAsList("PIPELINE_KNOWN_CITIES", nil),
		},
		Index: IndexConfig{
			Backend:    getEnv("INDEX_BACKEND", "memory"),
			Collection: getEnv("INDEX_COLLECTION", "hotels"),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("EMBEDDING_PROVIDER", "hashing"),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 384),
		},
		Session: SessionConfig{
			Backend:   getEnv("SESSION_BACKEND", "memory"),
			TTL:       getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			KeyPrefix: getEnv("SESSION_KEY_PREFIX", "session:"),
		},
		Catalog: CatalogConfig{
			BaseURL:       getEnv("CATALOG_BASE_URL", "http://localhost:8000"),
			Timeout:       getEnvAsDuration("CATALOG_TIMEOUT", 30*time.Second),
			SyncInterval:  getEnvAsDuration("CATALOG_SYNC_INTERVAL", 0),
			EventsEnabled: getEnvAsBool("CATALOG_EVENTS_ENABLED", false),
		},
		Pricing: PricingConfig{
			BaseURL:          getEnv("PRICING_BASE_URL", "http://localhost:8000"),
			Timeout:          getEnvAsDuration("PRICING_TIMEOUT", 3*time.Second),
			Concurrency:      getEnvAsInt("PRICING_CONCURRENCY", 8),
			BreakerFailures:  getEnvAsInt("PRICING_BREAKER_FAILURES", 5),
			BreakerCooldown:  getEnvAsDuration("PRICING_BREAKER_COOLDOWN", 30*time.Second),
			LastKnownTTL:     getEnvAsDuration("PRICING_LAST_KNOWN_TTL", 6*time.Hour),
			LastKnownEntries: getEnvAsInt("PRICING_LAST_KNOWN_ENTRIES", 2048),
		},
		LLM: LLMConfig{
			Timeout: getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
			Primary: OpenAIConfig{
				APIKey:         getEnv("OPENAI_API_KEY", ""),
				Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
				RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			},
			Fallback: FallbackLLMConfig{
				Provider: strings.ToLower(getEnv("LLM_FALLBACK_PROVIDER", "groq")),
				OpenAI: OpenAIConfig{
					APIKey:         getEnv("GROQ_API_KEY", ""),
					Model:          getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
					BaseURL:        getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
					RateLimitRPM:   getEnvAsInt("GROQ_RATE_LIMIT_RPM", 30),
					RateLimitBurst: getEnvAsInt("GROQ_RATE_LIMIT_BURST", 5),
				},
				Gemini: GeminiConfig{
					APIKey: getEnv("GEMINI_API_KEY", ""),
					Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
				},
			},
		},
	}

	if cfg.Pipeline.MinViable <= 0 {
		cfg.Pipeline.MinViable = cfg.Pipeline.TopK
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Pipeline.TopK < 1 {
		return fmt.Errorf("PIPELINE_TOP_K must be at least 1, got %d", c.Pipeline.TopK)
	}
	if c.Pipeline.OverfetchFactor < 1 {
		return fmt.Errorf("PIPELINE_OVERFETCH_FACTOR must be at least 1, got %d", c.Pipeline.OverfetchFactor)
	}
	if c.Pipeline.HistoryWindow < 1 {
		return fmt.Errorf("SESSION_HISTORY_WINDOW must be at least 1, got %d", c.Pipeline.HistoryWindow)
	}
	switch c.Index.Backend {
	case "memory", "typesense":
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", c.Index.Backend)
	}
	switch c.Embedding.Provider {
	case "hashing", "openai":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider)
	}
	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.Session.Backend)
	}
	if c.Catalog.EventsEnabled && c.Index.Backend != "typesense" {
		return fmt.Errorf("CATALOG_EVENTS_ENABLED requires INDEX_BACKEND=typesense")
	}
	switch c.LLM.Fallback.Provider {
	case "groq", "gemini", "none":
	default:
		return fmt.Errorf("unknown LLM_FALLBACK_PROVIDER %q", c.LLM.Fallback.Provider)
	}
	return nil
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
