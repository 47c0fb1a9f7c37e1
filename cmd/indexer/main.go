package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/nahid2887/today/internal/bootstrap"
	"github.com/nahid2887/today/internal/infrastructure/observability"
	"github.com/nahid2887/today/pkg/config"
)

func main() {
	var reset bool
	var intervalFlag string
	var sinceFlag string
	flag.BoolVar(&reset, "reset", false, "delete the existing hotel collection before reindexing")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.StringVar(&sinceFlag, "since", "", "only pull hotels changed after this RFC3339 time")
	flag.Parse()

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	var since *time.Time
	if sinceFlag != "" {
		t, err := time.Parse(time.RFC3339, sinceFlag)
		if err != nil {
			log.Fatalf("Invalid since %q: %v", sinceFlag, err)
		}
		since = &t
	}

	cfg, err := bootstrap.LoadConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-indexer", cfg.Environment)

	if cfg.Index.Backend == "memory" {
		zlog.Warn().Msg("INDEX_BACKEND=memory: the index lives only as long as this process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, cfg, reset || os.Getenv("RESET_INDEX") == "true", since); err != nil {
			zlog.Error().Err(err).Msg("reindex failed")
		}

		if interval <= 0 {
			break
		}

		// Later runs are full syncs so deletions in the feed are evicted.
		reset = false
		since = nil
		zlog.Info().Dur("interval", interval).Msg("reindex complete, waiting for next run")

		select {
		case <-ctx.Done():
			zlog.Info().Msg("reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, cfg *config.Config, reset bool, since *time.Time) error {
	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{ResetIndex: reset}, zlog.Logger)
	if err != nil {
		return err
	}
	defer components.Close()

	report, err := components.Sync.TrySync(ctx, since)
	if err != nil {
		return err
	}

	zlog.Info().
		Bool("full", report.Full).
		Int("fetched", report.Fetched).
		Int("upserted", report.Upserted).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("catalog indexed")
	return nil
}
