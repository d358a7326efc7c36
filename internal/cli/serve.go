package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/gateway"
	"github.com/soyeahso/voicerelay/internal/google"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/llm"
	"github.com/soyeahso/voicerelay/internal/mailbox"
	"github.com/soyeahso/voicerelay/internal/relay"
	"github.com/soyeahso/voicerelay/internal/tools"
)

// extractionClientTimeout bounds one fact extraction completion.
const extractionClientTimeout = 90 * time.Second

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voice relay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			hookMgr := hooks.NewManager(log)
			defer hookMgr.Wait()

			persona := relay.NewPersonaSource(paths.PersonaFile(cfg.Persona), log)
			if cfg.Persona.Watch {
				if err := persona.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("persona hot reload unavailable")
				}
				defer persona.Stop()
			}

			loc, err := time.LoadLocation(cfg.Persona.TimeZone)
			if err != nil {
				return fmt.Errorf("persona.timeZone: %w", err)
			}

			r := relay.New(relay.OptionsFromConfig(cfg), relay.Deps{
				Memory:      a.memory,
				Providers:   buildProviders(ctx, cfg, a),
				Extractor:   buildExtractor(cfg),
				Persona:     persona.Text,
				Owner:       cfg.Persona.Owner,
				Location:    loc,
				RecentTurns: cfg.Memory.RecentTurns,
				Hooks:       hookMgr,
			}, log)
			defer r.Wait()

			opts := []gateway.ServerOption{
				gateway.WithHooks(hookMgr),
				gateway.WithSessionLog(a.sessions),
			}
			if cfg.Memory.ReindexOnStart() {
				opts = append(opts, gateway.WithIndexer(a.vectors))
			}

			srv := gateway.New(cfg.Gateway, r, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (lan, loopback, custom)")

	return cmd
}

// buildProviders assembles the retrieval, tool and vision backends. Every
// backend is optional; a missing one degrades the matching feature only.
func buildProviders(ctx context.Context, cfg config.Config, a *app) relay.Providers {
	p := relay.Providers{
		Vectors: a.vectors,
		Tools:   openTools(ctx, cfg),
	}
	if a.kb != nil {
		p.Knowledge = a.kb
	}

	vision, err := llm.NewVision(ctx, cfg, log)
	if err != nil {
		log.Warn().Err(err).Msg("image description unavailable")
	} else {
		p.Vision = vision
	}
	return p
}

// openTools connects the productivity services. IMAP mail works without
// Google; with neither, tools report themselves unavailable.
func openTools(ctx context.Context, cfg config.Config) domain.ToolProvider {
	var mail domain.MailBackend
	if cfg.Mail.Backend == "imap" {
		mail = mailbox.New(cfg.Mail, log)
	}
	fallback := func() domain.ToolProvider {
		if mail != nil {
			return tools.MailOnly{Mail: mail}
		}
		return tools.Unavailable{}
	}

	if !cfg.Google.Enabled {
		log.Info().Msg("Google Workspace disabled")
		return fallback()
	}

	var opts []google.Option
	if mail != nil {
		opts = append(opts, google.WithMail(mail))
	}
	ws, err := google.Open(ctx, paths.GoogleCredentials(cfg.Google), paths.GoogleToken(cfg.Google), cfg.Google.TimeZone, opts...)
	if err != nil {
		log.Warn().Err(err).Msg("Google Workspace unavailable; run `voicerelay google auth`")
		return fallback()
	}
	log.Info().Str("mail", cfg.Mail.Backend).Msg("Google Workspace connected")
	return ws
}

func buildExtractor(cfg config.Config) domain.FactExtractor {
	if !cfg.Extraction.IsEnabled() {
		return nil
	}
	client := llm.NewXAIClient(cfg.Upstream.APIKey, cfg.Upstream.ChatURL, cfg.Extraction.Model, extractionClientTimeout)
	return llm.NewExtractor(client, cfg.Extraction.Model, cfg.Extraction.Temp, log)
}
