package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Relay runs a voice session for an upgraded client socket.
type Relay interface {
	Serve(ctx context.Context, client *websocket.Conn, remoteAddr string) error
	Active() int
}

// Server is the voicerelay HTTP + WebSocket server.
type Server struct {
	cfg   config.GatewayConfig
	token string
	relay Relay
	log   *logging.Logger

	// Hook manager (optional)
	hooks *hooks.Manager
	// Index rebuilt in the background on start (optional)
	indexer domain.VectorIndex
	// Session history sink (optional, requires hooks)
	sessionLog SessionRecorder

	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
	sessions    sync.WaitGroup
	background  sync.WaitGroup

	mu        sync.RWMutex
	startedAt time.Time
	addr      string
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithHooks sets the hook manager for lifecycle events.
func WithHooks(hm *hooks.Manager) ServerOption {
	return func(s *Server) {
		s.hooks = hm
	}
}

// WithIndexer rebuilds the given vector index in the background on start.
func WithIndexer(v domain.VectorIndex) ServerOption {
	return func(s *Server) {
		s.indexer = v
	}
}

// WithSessionLog records session starts and ends. It needs WithHooks.
func WithSessionLog(l SessionRecorder) ServerOption {
	return func(s *Server) {
		s.sessionLog = l
	}
}

// New creates a new gateway server.
func New(cfg config.GatewayConfig, relay Relay, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		token:       ResolveToken(cfg.Auth),
		relay:       relay,
		log:         log.Sub("gateway"),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks != nil {
		s.registerHooks()
	}
	return s
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections.
// It blocks until the context is cancelled or an error occurs, and returns
// once running sessions have wound down.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := resolveBindAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLS.Enabled {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLS.CertPath, s.cfg.TLS.KeyPath)
		if err != nil {
			ln.Close()
			return fmt.Errorf("loading TLS certificate: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})
		s.log.Info().Msg("TLS enabled")
	} else if s.cfg.Bind != "loopback" && s.token != "" {
		s.log.Warn().Msg("TLS is not enabled: the client token travels in cleartext")
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.startedAt = time.Now()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Bind).
		Bool("auth", s.token != "").
		Msg("gateway server starting")

	if s.hooks != nil {
		s.hooks.Emit(ctx, hooks.Payload{
			Event: hooks.EventGatewayStart,
			Data:  map[string]any{"addr": ln.Addr().String()},
		})
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.authLimiter.run(ctx)
	}()
	if s.indexer != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.reindex(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
	}
	cancel()
	s.shutdown(httpServer)

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown stops accepting connections and waits, bounded, for sessions.
// Hijacked WebSocket connections are not tracked by http.Server, so sessions
// end through the cancelled base context instead.
func (s *Server) shutdown(httpServer *http.Server) {
	s.log.Info().Int("sessions", s.relay.Active()).Msg("shutting down gateway server")
	if s.hooks != nil {
		s.hooks.Emit(context.Background(), hooks.Payload{Event: hooks.EventGatewayStop})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("gateway server stopped")
	case <-shutdownCtx.Done():
		s.log.Warn().Int("sessions", s.relay.Active()).Msg("sessions still running at shutdown deadline")
	}
}

// reindex rebuilds the vector index from the turn log. Failure is logged
// and the server keeps running with whatever the index already holds.
func (s *Server) reindex(ctx context.Context) {
	start := time.Now()
	n, err := s.indexer.IndexAll(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("background reindex failed")
		return
	}
	s.log.Info().Int("turns", n).Dur("duration", time.Since(start)).Msg("memory index rebuilt")
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) started() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}
