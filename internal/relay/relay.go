package relay

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
	"github.com/soyeahso/voicerelay/internal/tools"
	"github.com/soyeahso/voicerelay/internal/version"
)

// Options configures the upstream connection and session behaviour.
type Options struct {
	UpstreamURL   string
	APIKey        string
	Voice         string
	Transcription string
	SearchK       int
	ExtractEvery  int
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteTimeout  time.Duration
	DialTimeout   time.Duration
}

// OptionsFromConfig maps the relevant configuration sections.
func OptionsFromConfig(cfg config.Config) Options {
	every := cfg.Extraction.EveryTurns
	if !cfg.Extraction.IsEnabled() {
		every = 0
	}
	return Options{
		UpstreamURL:   cfg.Upstream.URL,
		APIKey:        cfg.Upstream.APIKey,
		Voice:         cfg.Upstream.Voice,
		Transcription: cfg.Upstream.Transcription,
		SearchK:       cfg.Memory.SearchK,
		ExtractEvery:  every,
	}
}

func (o *Options) applyDefaults() {
	if o.UpstreamURL == "" {
		o.UpstreamURL = config.DefaultUpstreamURL
	}
	if o.Voice == "" {
		o.Voice = "Ara"
	}
	if o.Transcription == "" {
		o.Transcription = "whisper-1"
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 15 * time.Second
	}
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Memory    domain.MemoryStore
	Providers Providers
	Extractor domain.FactExtractor
	// Persona returns the current persona text.
	Persona  func() string
	Owner    string
	Location *time.Location
	// RecentTurns bounds the memory section of the instructions.
	RecentTurns int
	Hooks       hooks.Emitter
}

// Relay creates and runs sessions.
type Relay struct {
	opts         Options
	memory       domain.MemoryStore
	vectors      domain.VectorIndex
	pipeline     *Pipeline
	registry     *tools.Registry
	dispatcher   *Dispatcher
	instructions *Instructions
	extraction   *Extraction
	hooks        hooks.Emitter
	dialer       *websocket.Dialer
	log          *logging.Logger

	active atomic.Int64
}

// New creates a relay.
func New(opts Options, deps Deps, log *logging.Logger) *Relay {
	opts.applyDefaults()
	log = log.Sub("relay")

	p := deps.Providers
	if p.Tools == nil {
		p.Tools = tools.Unavailable{}
	}
	registry := tools.New(p.Tools, p.Vision, log)

	return &Relay{
		opts:         opts,
		memory:       deps.Memory,
		vectors:      p.Vectors,
		pipeline:     NewPipeline(p, opts.SearchK, log),
		registry:     registry,
		dispatcher:   NewDispatcher(registry, deps.Hooks, log),
		instructions: NewInstructions(deps.Persona, deps.Memory, deps.Owner, deps.Location, deps.RecentTurns, log),
		extraction:   NewExtraction(deps.Memory, deps.Extractor, deps.RecentTurns, deps.Hooks, log),
		hooks:        deps.Hooks,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		log: log,
	}
}

// Active reports the number of running sessions.
func (r *Relay) Active() int {
	return int(r.active.Load())
}

// Extraction returns the shared fact extraction runner.
func (r *Relay) Extraction() *Extraction {
	return r.extraction
}

// Wait blocks until background extraction passes have finished.
func (r *Relay) Wait() {
	r.extraction.Wait()
}

// Serve runs a session for an accepted client socket until either side
// disconnects or ctx is cancelled. The client socket is closed on return.
func (r *Relay) Serve(ctx context.Context, client *websocket.Conn, remoteAddr string) error {
	r.active.Add(1)
	defer r.active.Add(-1)

	s := r.newSession(client, remoteAddr)
	return s.run(ctx)
}

func (r *Relay) dialUpstream(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if r.opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+r.opts.APIKey)
	}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := r.dialer.DialContext(ctx, r.opts.UpstreamURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}
