package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
	"github.com/soyeahso/voicerelay/internal/store"
)

var errKnowledgeDisabled = errors.New("knowledge base is disabled (knowledge.enabled: false)")

// loadConfig reads the config file. Unless --log-level was given, the
// configured level and console style replace the bootstrap logger.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel == "" {
		log = logging.NewStyled(nil, cfg.Logging.Level, cfg.Logging.ConsoleStyle)
	}
	return cfg, nil
}

// memoryBackend is a turn store the vector index can rebuild from.
type memoryBackend interface {
	domain.MemoryStore
	store.TurnSource
}

// app holds the persistent stores shared by the server and the
// maintenance commands.
type app struct {
	db       *store.DB
	redis    *store.RedisMemoryStore
	memory   memoryBackend
	vectors  *store.VectorIndex
	kb       *store.KnowledgeBase
	sessions *store.SessionLog
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}
	db, err := store.Open(paths.Database, log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{db: db, sessions: store.NewSessionLog(db)}
	switch cfg.Memory.Store {
	case "redis":
		rs, err := store.OpenRedis(ctx, cfg.Memory.RedisURL, cfg.Memory.RedisPrefix)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.redis = rs
		a.memory = rs
		log.Info().Str("prefix", cfg.Memory.RedisPrefix).Msg("using Redis memory store")
	default:
		a.memory = store.NewMemoryStore(db)
		log.Debug().Str("path", paths.Database).Msg("using SQLite memory store")
	}

	a.vectors = store.NewVectorIndex(db, a.memory)
	if cfg.Knowledge.IsEnabled() {
		a.kb = store.NewKnowledgeBase(db, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap)
	}
	return a, nil
}

func (a *app) knowledge() (*store.KnowledgeBase, error) {
	if a.kb == nil {
		return nil, errKnowledgeDisabled
	}
	return a.kb, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("closing database")
	}
}

// withApp loads config, opens the stores, and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, cfg, a)
}
