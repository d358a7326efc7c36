package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/gateway"
	"github.com/soyeahso/voicerelay/internal/store"
	"github.com/soyeahso/voicerelay/internal/version"
)

func newStatusCmd() *cobra.Command {
	var sessions int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration summary and recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "voicerelay %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:    %s\n", paths.Config)
			fmt.Fprintf(out, "Database:  %s\n", paths.Database)
			fmt.Fprintln(out)

			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Fprintln(out, "Config:    not found (using defaults)")
			}
			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:    error loading: %v\n", err)
				return nil
			}

			auth := "off"
			if gateway.ResolveToken(cfg.Gateway.Auth) != "" {
				auth = "token"
			}
			fmt.Fprintf(out, "Gateway:   port=%d bind=%s auth=%s tls=%v\n",
				cfg.Gateway.Port, cfg.Gateway.Bind, auth, cfg.Gateway.TLS.Enabled)
			fmt.Fprintf(out, "Upstream:  %s voice=%s key=%s\n",
				cfg.Upstream.URL, cfg.Upstream.Voice, present(cfg.Upstream.APIKey))
			fmt.Fprintf(out, "Persona:   %s\n", paths.PersonaFile(cfg.Persona))
			fmt.Fprintf(out, "Memory:    store=%s recentTurns=%d searchK=%d\n",
				cfg.Memory.Store, cfg.Memory.RecentTurns, cfg.Memory.SearchK)
			fmt.Fprintf(out, "Knowledge: enabled=%v\n", cfg.Knowledge.IsEnabled())
			fmt.Fprintf(out, "Google:    enabled=%v token=%s mail=%s\n",
				cfg.Google.Enabled, fileState(paths.GoogleToken(cfg.Google)), cfg.Mail.Backend)
			fmt.Fprintf(out, "Vision:    %s\n", cfg.Vision.Provider)
			fmt.Fprintf(out, "Extract:   enabled=%v every=%d model=%s\n",
				cfg.Extraction.IsEnabled(), cfg.Extraction.EveryTurns, cfg.Extraction.Model)

			if issues := config.Validate(&cfg); len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}

			if _, err := os.Stat(paths.Database); err != nil {
				return nil
			}
			db, err := store.Open(paths.Database, log)
			if err != nil {
				fmt.Fprintf(out, "\nDatabase:  error opening: %v\n", err)
				return nil
			}
			defer db.Close()
			printSessions(cmd.Context(), out, store.NewSessionLog(db), sessions)
			return nil
		},
	}

	cmd.Flags().IntVarP(&sessions, "sessions", "n", 10, "number of recent sessions to show")
	return cmd
}

func printSessions(ctx context.Context, out io.Writer, sl *store.SessionLog, n int) {
	recent, err := sl.Recent(ctx, n)
	if err != nil {
		fmt.Fprintf(out, "\nSessions:  error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "\nRecent sessions (%d):\n", len(recent))
	for _, r := range recent {
		state := "active"
		dur := ""
		if r.EndedAt != nil {
			state = r.CloseReason
			dur = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(out, "  %s  %s  %-15s turns=%-3d %s %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"), shortID(r.ID), state, r.UserTurns, dur, r.RemoteAddr)
	}
}

func present(secret string) string {
	if secret == "" {
		return "missing"
	}
	return "set"
}

func fileState(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "missing"
	}
	return "present"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
