package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nahid2887/today/internal/bootstrap"
	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/pkg/config"
)

type rootOptions struct {
	verbose  bool
	jsonOut  bool
	loadConf func() (*config.Config, error)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{loadConf: func() (*config.Config, error) {
		return bootstrap.LoadConfig(context.Background())
	}}

	root := &cobra.Command{
		Use:   "hotelctl",
		Short: "Hotel recommendation pipeline CLI",
		Long: `hotelctl runs the hotel recommendation pipeline against the backends
configured through the environment.

Example usage:
  hotelctl ask "quiet hotels in Sydney under 200"
  hotelctl ask --session s1 "cheaper ones"
  hotelctl sync --since 2026-10-01T00:00:00Z
  hotelctl reset s1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print the full result as JSON")

	root.AddCommand(newAskCmd(opts), newSyncCmd(opts), newResetCmd(opts), newStatusCmd(opts))
	return root
}

func (o *rootOptions) build(ctx context.Context, cmd *cobra.Command) (*bootstrap.Components, error) {
	cfg, err := o.loadConf()
	if err != nil {
		return nil, err
	}
	logger := zerolog.Nop()
	if o.verbose {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return bootstrap.Build(ctx, cfg, bootstrap.Options{}, logger)
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var sessionID string
	var reset bool

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Ask for hotel recommendations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := opts.build(ctx, cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			// A process-local index starts empty.
			if components.Sync.Unsynced(ctx) {
				if _, err := components.Sync.Sync(ctx, nil); err != nil {
					return fmt.Errorf("catalog sync: %w", err)
				}
			}

			result, err := components.Recommender.Recommend(ctx, entities.RecommendationRequest{
				Query:        strings.Join(args, " "),
				SessionID:    sessionID,
				ResetSession: reset,
			})
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id for follow-up questions")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear the session before answering")
	return cmd
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var since string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull the hotel catalog into the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sincePtr *time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: %w", since, err)
				}
				sincePtr = &t
			}

			ctx := cmd.Context()
			components, err := opts.build(ctx, cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			report, err := components.Sync.TrySync(ctx, sincePtr)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %d, upserted %d, removed %d, failed %d\n",
				report.Fetched, report.Upserted, report.Removed, report.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "only pull hotels changed after this RFC3339 time")
	return cmd
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Clear a conversation session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := opts.build(ctx, cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.Recommender.ResetSession(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s cleared\n", args[0])
			return nil
		},
	}
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show index contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			components, err := opts.build(ctx, cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			status, err := components.Sync.Status(ctx)
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "documents: %d\ncities: %s\nembedding: %s\n",
				status.Index.Documents, strings.Join(status.Index.Cities, ", "), status.Index.EmbeddingVer)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *entities.RecommendationResult) {
	fmt.Fprintln(w, result.NaturalLanguageResponse)
	fmt.Fprintln(w)
	for i, h := range result.RecommendedHotels {
		price := "price unavailable"
		if h.CurrentPrice != nil {
			price = fmt.Sprintf("%.2f %s", *h.CurrentPrice, h.Currency)
		}
		fmt.Fprintf(w, "%d. %s (%s) rating %.1f, %s [%s]\n",
			i+1, h.Hotel.Name, h.Hotel.City, h.Hotel.AverageRating, price, h.HydrationStatus)
	}
	if len(result.Metadata.Degradations) > 0 {
		fmt.Fprintf(w, "\ndegraded: %s\n", strings.Join(result.Metadata.Degradations, ", "))
	}
}
