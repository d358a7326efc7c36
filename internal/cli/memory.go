package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/relay"
)

func newMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and maintain long-term conversation memory",
	}

	cmd.AddCommand(newMemoryReindexCmd())
	cmd.AddCommand(newMemorySearchCmd())
	cmd.AddCommand(newMemoryProfileCmd())
	cmd.AddCommand(newMemoryExtractCmd())
	return cmd
}

func newMemoryReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the conversation index from the turn log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				start := time.Now()
				n, err := a.vectors.IndexAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d windows in %s\n", n, time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func newMemorySearchCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search past conversation the way a voice session would",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, cfg config.Config, a *app) error {
				if k <= 0 {
					k = cfg.Memory.SearchK
				}
				result, err := a.vectors.Search(ctx, strings.Join(args, " "), k)
				if err != nil {
					return err
				}
				if result == "" {
					result = "No matches."
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(result))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&k, "limit", "k", 0, "number of results (default: memory.searchK)")
	return cmd
}

func newMemoryProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the facts remembered about the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, _ config.Config, a *app) error {
				facts, err := a.memory.ProfileFacts(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(facts) == 0 {
					fmt.Fprintln(out, "No facts yet.")
					return nil
				}
				for _, f := range facts {
					fmt.Fprintf(out, "- %s: %s\n", f.Attribute, f.Value)
				}
				return nil
			})
		},
	}
}

func newMemoryExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Run one fact extraction pass over recent turns now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, cfg config.Config, a *app) error {
				if cfg.Upstream.APIKey == "" {
					return errors.New("upstream.apiKey (or XAI_API_KEY) is required for extraction")
				}
				extractor := buildExtractor(cfg)
				if extractor == nil {
					return errors.New("extraction is disabled (extraction.enabled: false)")
				}
				ex := relay.NewExtraction(a.memory, extractor, cfg.Memory.RecentTurns, nil, log)
				n, err := ex.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Merged %d facts\n", n)
				return nil
			})
		},
	}
}
