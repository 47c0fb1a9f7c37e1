// Package bootstrap assembles the recommendation pipeline from configuration.
// The API server, the indexer and the operator CLI share it so every binary
// talks to the same index, session and cache backends.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nahid2887/today/internal/adapters/cache"
	"github.com/nahid2887/today/internal/adapters/embedding"
	"github.com/nahid2887/today/internal/adapters/events"
	"github.com/nahid2887/today/internal/adapters/search"
	"github.com/nahid2887/today/internal/adapters/session"
	"github.com/nahid2887/today/internal/application/services"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/providers"
	"github.com/nahid2887/today/internal/domain/repositories"
	"github.com/nahid2887/today/internal/infrastructure/clients/gemini"
	"github.com/nahid2887/today/internal/infrastructure/clients/hotelapi"
	"github.com/nahid2887/today/internal/infrastructure/clients/openai"
	"github.com/nahid2887/today/internal/infrastructure/clients/redis"
	"github.com/nahid2887/today/internal/infrastructure/clients/typesense"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	"github.com/nahid2887/today/pkg/config"
	"github.com/nahid2887/today/pkg/secrets"
	"github.com/rs/zerolog"
)

const (
	lastKnownNamespace = "hotels"
	announceTimeout    = 2 * time.Second
)

// Options adjusts how Build connects to the backends.
type Options struct {
	// ResetIndex drops the external index collection before use.
	ResetIndex bool
	// Metrics is attached to every pipeline node when set.
	Metrics *observability.Metrics
}

// Components is the assembled pipeline.
type Components struct {
	Config      *config.Config
	Index       repositories.HotelIndex
	Sessions    repositories.SessionStore
	Interpreter *services.QueryInterpreterService
	Sync        *services.CatalogSyncService
	Recommender *services.RecommendationService

	trigger chan struct{}
	closers []func() error
	logger  zerolog.Logger
	bus     providers.EventBus
	origin  string
}

// LoadConfig exports credentials from Vault when VAULT_ENABLED is set, then
// loads configuration from the environment.
func LoadConfig(ctx context.Context) (*config.Config, error) {
	if _, err := secrets.ApplyVaultSecrets(ctx, secrets.LoadVaultConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
	}
	return config.Load()
}

// Build connects to the configured backends and wires the pipeline. Close
// releases the connections it opened.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*Components, error) {
	c := &Components{
		Config:  cfg,
		trigger: make(chan struct{}, 1),
		logger:  logger,
		origin:  uuid.NewString(),
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	c.Index, err = c.newIndex(ctx, cfg, embedder, opts.ResetIndex)
	if err != nil {
		c.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Session.Backend == "redis" || cfg.Catalog.EventsEnabled {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, redisClient.Close)
	}
	if cfg.Session.Backend == "redis" {
		c.Sessions = session.NewRedisStore(redisClient.Client(), cfg.Session.KeyPrefix, cfg.Session.TTL, cfg.Pipeline.HistoryWindow)
	} else {
		c.Sessions = session.NewMemoryStore(cfg.Pipeline.HistoryWindow, cfg.Session.TTL)
	}
	if cfg.Catalog.EventsEnabled {
		bus := events.NewRedisEventBus(redisClient.Client(), logger.With().Str("component", "events").Logger())
		c.closers = append(c.closers, bus.Close)
		c.bus = bus
	}

	var lastKnown providers.CacheProvider
	if redisClient != nil {
		lastKnown = cache.NewRedisAdapter(redisClient, lastKnownNamespace)
	} else {
		lastKnown = cache.NewLRUAdapter(cfg.Pricing.LastKnownEntries, cfg.Pricing.LastKnownTTL)
	}

	primary, fallback := newLLMs(ctx, cfg, logger)

	c.Interpreter = services.NewQueryInterpreterService(cfg.Pipeline, logger.With().Str("component", "interpreter").Logger())
	searcher := services.NewSearchService(c.Index, cfg.Pipeline.OverfetchK(), cfg.Pipeline.MinViable, logger.With().Str("component", "search").Logger())
	ranking := services.NewRankingService(cfg.Pipeline.TopK)
	pricing := hotelapi.NewPricingClient(cfg.Pricing.BaseURL, hotelapi.PricingOptions{
		Timeout:         cfg.Pricing.Timeout,
		BreakerFailures: cfg.Pricing.BreakerFailures,
		BreakerCooldown: cfg.Pricing.BreakerCooldown,
	}, logger.With().Str("component", "pricing").Logger())
	hydration := services.NewHydrationService(pricing, lastKnown, services.HydrationOptions{
		Timeout:            cfg.Pricing.Timeout,
		Concurrency:        cfg.Pricing.Concurrency,
		LastKnownTTL:       cfg.Pricing.LastKnownTTL,
		MaxPromotionRounds: cfg.Pipeline.MaxPromotionRounds,
	}, logger.With().Str("component", "hydration").Logger())
	response := services.NewResponseService(primary, fallback, cfg.LLM.Timeout, logger.With().Str("component", "response").Logger())

	catalog := hotelapi.NewCatalogClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, logger.With().Str("component", "catalog").Logger())
	c.Sync = services.NewCatalogSyncService(catalog, c.Index, logger.With().Str("component", "catalog_sync").Logger())
	c.Sync.OnSynced(func(stats repositories.IndexStats) {
		c.Interpreter.SetIndexedCities(stats.Cities)
		c.announce(stats)
	})
	if stats, err := c.Index.Stats(ctx); err == nil {
		c.Interpreter.SetIndexedCities(stats.Cities)
	}

	c.Recommender = services.NewRecommendationService(
		c.Interpreter, searcher, ranking, hydration, response,
		c.Sessions, cfg.Pipeline.HistoryWindow,
		logger.With().Str("component", "recommender").Logger(),
	)
	c.Recommender.SetIndexMonitor(c.Sync.Unsynced, c.RequestSync)

	if opts.Metrics != nil {
		c.Interpreter.SetMetrics(opts.Metrics)
		searcher.SetMetrics(opts.Metrics)
		hydration.SetMetrics(opts.Metrics)
		response.SetMetrics(opts.Metrics)
		c.Recommender.SetMetrics(opts.Metrics)
	}
	return c, nil
}

// RequestSync asks RunSyncLoop for a full sync. It never blocks; requests
// made while one is pending are merged.
func (c *Components) RequestSync() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// RunSyncLoop performs full syncs on request and every interval (never when
// interval is zero) until ctx is done.
func (c *Components) RunSyncLoop(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.trigger:
		case <-tick:
		}
		n, err := c.Sync.Sync(ctx, nil)
		if err != nil {
			c.logger.Warn().Err(err).Msg("background catalog sync failed")
			continue
		}
		c.logger.Info().Int("upserted", n).Msg("background catalog sync finished")
	}
}

// ListenCatalogEvents applies sync announcements from other processes until
// ctx is done. It returns at once when events are disabled.
func (c *Components) ListenCatalogEvents(ctx context.Context) error {
	if c.bus == nil {
		return nil
	}
	feed, err := c.bus.Subscribe(ctx, providers.EventChannelCatalog)
	if err != nil {
		return err
	}
	for ev := range feed {
		if ev.Origin == c.origin || ev.Type != entities.CatalogEventSynced {
			continue
		}
		c.Interpreter.SetIndexedCities(ev.Cities)
		c.logger.Info().Str("origin", ev.Origin).Int("documents", ev.Documents).Msg("applied remote catalog sync")
	}
	return nil
}

func (c *Components) announce(stats repositories.IndexStats) {
	if c.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	ev := entities.NewCatalogSyncedEvent(c.origin, stats.Documents, stats.Cities, stats.EmbeddingVer)
	if err := c.bus.Publish(ctx, providers.EventChannelCatalog, ev); err != nil {
		c.logger.Warn().Err(err).Msg("failed to announce catalog sync")
	}
}

// Close releases backend connections.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(cfg *config.Config) (providers.EmbeddingProvider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		client, err := openai.NewClient("openai", &cfg.LLM.Primary)
		if err != nil {
			return nil, fmt.Errorf("openai embeddings: %w", err)
		}
		return embedding.NewOpenAIEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimensions), nil
	default:
		return embedding.NewHashingEmbedder(cfg.Embedding.Dimensions), nil
	}
}

func (c *Components) newIndex(ctx context.Context, cfg *config.Config, embedder providers.EmbeddingProvider, reset bool) (repositories.HotelIndex, error) {
	if cfg.Index.Backend != "typesense" {
		return search.NewMemoryIndex(embedder), nil
	}

	client, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return nil, err
	}
	if reset {
		if err := client.DropCollection(ctx, cfg.Index.Collection); err != nil {
			return nil, fmt.Errorf("failed to drop collection %s: %w", cfg.Index.Collection, err)
		}
		c.logger.Info().Str("collection", cfg.Index.Collection).Msg("dropped hotel collection")
	}
	adapter := search.NewTypesenseAdapter(client, embedder, cfg.Index.Collection)
	if err := adapter.InitSchema(ctx); err != nil {
		return nil, err
	}
	return adapter, nil
}

// newLLMs returns the primary and fallback renderers. A route without
// credentials is left nil and skipped at render time.
func newLLMs(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (providers.LLMProvider, providers.LLMProvider) {
	var primary, fallback providers.LLMProvider

	if client, err := openai.NewClient("openai", &cfg.LLM.Primary); err == nil {
		primary = client
	} else {
		logger.Warn().Err(err).Msg("primary LLM disabled")
	}

	switch cfg.LLM.Fallback.Provider {
	case "groq":
		if client, err := openai.NewClient("groq", &cfg.LLM.Fallback.OpenAI); err == nil {
			fallback = client
		} else {
			logger.Warn().Err(err).Msg("fallback LLM disabled")
		}
	case "gemini":
		if client, err := gemini.NewClient(ctx, &cfg.LLM.Fallback.Gemini); err == nil {
			fallback = client
		} else {
			logger.Warn().Err(err).Msg("fallback LLM disabled")
		}
	}
	return primary, fallback
}
