package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	zlog "github.com/rs/zerolog/log"

	"github.com/nahid2887/today/internal/application/services"
	"github.com/nahid2887/today/internal/bootstrap"
	"github.com/nahid2887/today/internal/evaluation"
	"github.com/nahid2887/today/internal/infrastructure/observability"
)

func main() {
	var goldenPath string
	var k int
	var minRecall, minMRR, minInterpret float64
	flag.StringVar(&goldenPath, "golden", "config/golden_queries.json", "golden query set")
	flag.IntVar(&k, "k", 10, "cutoff for recall and MRR")
	flag.Float64Var(&minRecall, "min-recall", 0, "fail when average recall is below this")
	flag.Float64Var(&minMRR, "min-mrr", 0, "fail when average MRR is below this")
	flag.Float64Var(&minInterpret, "min-interpret", 0, "fail when interpret accuracy is below this")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(context.Background())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Environment)

	queries, err := evaluation.LoadGoldenQueries(goldenPath)
	if err != nil {
		log.Fatalf("Failed to load golden queries: %v", err)
	}
	if err := evaluation.ValidateGoldenQueries(queries); err != nil {
		log.Fatalf("Invalid golden queries: %v", err)
	}

	ctx := context.Background()
	components, err := bootstrap.Build(ctx, cfg, bootstrap.Options{}, zlog.Logger)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}
	defer components.Close()

	if components.Sync.Unsynced(ctx) {
		if _, err := components.Sync.Sync(ctx, nil); err != nil {
			log.Fatalf("Catalog sync failed: %v", err)
		}
	}

	runner := evaluation.NewRunner(
		components.Interpreter,
		services.NewSearchService(components.Index, max(k, cfg.Pipeline.OverfetchK()), cfg.Pipeline.MinViable, zlog.Logger),
		services.NewRankingService(k),
		k,
	)
	summary, err := runner.Run(ctx, queries)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}

	// Output results as JSON
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinRecall:            minRecall,
		MinMRR:               minMRR,
		MinInterpretAccuracy: minInterpret,
	})
	if violations := guardrails.Violations(summary); len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "evaluation below thresholds: "+strings.Join(violations, "; "))
		_ = components.Close()
		os.Exit(1)
	}
}
