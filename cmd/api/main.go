package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/nahid2887/today/internal/api/handlers"
	"github.com/nahid2887/today/internal/api/routes"
	"github.com/nahid2887/today/internal/bootstrap"
	"github.com/nahid2887/today/internal/infrastructure/observability"
)

func main() {
	// Load configuration
	cfg, err := bootstrap.LoadConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	shutdown, err := observability.Setup(ctx, cfg.OTEL)
	if err != nil {
		zlog.Warn().Err(err).Msg("failed to set up OpenTelemetry")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				zlog.Error().Err(err).Msg("error shutting down OpenTelemetry")
			}
		}()
		if cfg.OTEL.Enabled {
			observability.EnableOTelLogs(cfg.OTEL.ServiceName)
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Metrics: metrics}, zlog.Logger)
	if err != nil {
		log.Fatalf("Failed to build recommendation pipeline: %v", err)
	}
	defer func() {
		if err := components.Close(); err != nil {
			zlog.Error().Err(err).Msg("error closing backends")
		}
	}()

	// The index serves whatever it already holds while the first sync runs.
	components.RequestSync()
	go components.RunSyncLoop(ctx, cfg.Catalog.SyncInterval)
	go func() {
		if err := components.ListenCatalogEvents(ctx); err != nil {
			zlog.Warn().Err(err).Msg("catalog events unavailable")
		}
	}()

	router := routes.NewRouter(
		handlers.NewChatHandler(components.Recommender),
		handlers.NewCatalogHandler(components.Sync),
		cfg.Server.AllowedOrigins,
		metrics,
	)

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.Timeout*2 + cfg.Pricing.Timeout*3 + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		zlog.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info().Msg("server shutting down")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("error during server shutdown")
	}

	zlog.Info().Msg("server stopped")
}
