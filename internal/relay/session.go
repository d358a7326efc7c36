package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// State is a session's lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	errClientGone   = errors.New("client disconnected")
	errUpstreamGone = errors.New("upstream disconnected")
)

// sideEffectQueue bounds outbound events waiting for the recorder and dispatcher.
const sideEffectQueue = 256

// peer is one end of the relay. Writes are serialised; Close is idempotent.
type peer struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func (p *peer) write(msgType int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return websocket.ErrCloseSent
	}
	p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	return p.conn.WriteMessage(msgType, data)
}

func (p *peer) writeText(data []byte) error {
	return p.write(websocket.TextMessage, data)
}

func (p *peer) ping() error {
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(p.writeTimeout))
}

// close sends a close frame when it can and releases the socket. Errors
// are ignored: the other end may already be gone.
func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = p.conn.Close()
}

// Session relays one client connection.
type Session struct {
	ID         string
	RemoteAddr string

	r        *Relay
	client   *peer
	upstream *peer
	recorder *Recorder
	state    atomic.Int32
	started  time.Time
	log      *logging.Logger
}

func (r *Relay) newSession(client *websocket.Conn, remoteAddr string) *Session {
	id := uuid.NewString()
	log := r.log.With("session", id)
	s := &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		r:          r,
		client:     &peer{conn: client, writeTimeout: r.opts.WriteTimeout},
		started:    time.Now(),
		log:        log,
	}
	s.recorder = &Recorder{
		sessionID:  id,
		memory:     r.memory,
		vectors:    r.vectors,
		extraction: r.extraction,
		every:      r.opts.ExtractEvery,
		hooks:      r.hooks,
		log:        log,
		now:        time.Now,
	}
	return s
}

// State reports the session's current stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug().Str("state", st.String()).Msg("session state")
}

func (s *Session) emit(ctx context.Context, event string, data map[string]any) {
	if s.r.hooks == nil {
		return
	}
	s.r.hooks.EmitAsync(ctx, hooks.Payload{Event: event, SessionID: s.ID, Data: data})
}

// run drives Connecting, Active, Closing and Closed. Every path ends in
// Closing, which closes both sockets and starts the final extraction.
func (s *Session) run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.log.Info().Str("remote", s.RemoteAddr).Msg("session started")
	if s.r.hooks != nil {
		// Synchronous, so session_end handlers always see the start first.
		s.r.hooks.Emit(ctx, hooks.Payload{
			Event:     hooks.EventSessionStart,
			SessionID: s.ID,
			Data:      map[string]any{"remoteAddr": s.RemoteAddr},
		})
	}

	err := s.connect(ctx)
	if err == nil {
		s.setState(StateActive)
		err = s.pump(ctx)
	}
	s.shutdown(ctx, err)

	if errors.Is(err, errClientGone) {
		return nil
	}
	return err
}

func (s *Session) connect(ctx context.Context) error {
	conn, err := s.r.dialUpstream(ctx)
	if err != nil {
		return fmt.Errorf("dialing upstream: %w", err)
	}
	s.upstream = &peer{conn: conn, writeTimeout: s.r.opts.WriteTimeout}

	init, err := s.r.sessionUpdate(ctx)
	if err != nil {
		return fmt.Errorf("building session.update: %w", err)
	}
	if err := s.upstream.writeText(init); err != nil {
		return fmt.Errorf("%w: sending session.update: %v", errUpstreamGone, err)
	}
	s.log.Info().Int("instructionBytes", len(init)).Msg("upstream connected")
	return nil
}

func (s *Session) pump(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	events := make(chan Outbound, sideEffectQueue)

	g.Go(func() error { return s.inbound(gctx) })
	g.Go(func() error { return s.outbound(gctx, events) })
	g.Go(func() error { return s.sideEffects(gctx, events) })
	g.Go(func() error { return s.keepalive(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.closeSockets()
		return nil
	})

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// inbound pumps client messages upstream through the pipeline.
func (s *Session) inbound(ctx context.Context) error {
	s.client.conn.SetReadDeadline(time.Now().Add(s.r.opts.PongWait))
	s.client.conn.SetPongHandler(func(string) error {
		return s.client.conn.SetReadDeadline(time.Now().Add(s.r.opts.PongWait))
	})

	for {
		msgType, data, err := s.client.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", errClientGone, err)
		}
		// Any traffic proves the client is alive.
		s.client.conn.SetReadDeadline(time.Now().Add(s.r.opts.PongWait))

		if msgType != websocket.TextMessage {
			if err := s.upstream.write(msgType, data); err != nil {
				return fmt.Errorf("%w: %v", errUpstreamGone, err)
			}
			continue
		}

		out := s.r.pipeline.Process(ctx, ClassifyInbound(data))
		if out.Reply != nil {
			if err := s.client.writeText(out.Reply); err != nil {
				return fmt.Errorf("%w: %v", errClientGone, err)
			}
		}
		for _, msg := range out.Inject {
			if err := s.upstream.writeText(msg); err != nil {
				return fmt.Errorf("%w: %v", errUpstreamGone, err)
			}
		}
		if out.Forward != nil {
			if err := s.upstream.write(msgType, out.Forward); err != nil {
				return fmt.Errorf("%w: %v", errUpstreamGone, err)
			}
		}
	}
}

// outbound forwards upstream messages to the client untouched and queues
// the ones with side effects.
func (s *Session) outbound(ctx context.Context, events chan<- Outbound) error {
	defer close(events)
	for {
		msgType, data, err := s.upstream.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: %v", errUpstreamGone, err)
		}
		if err := s.client.write(msgType, data); err != nil {
			return fmt.Errorf("%w: %v", errClientGone, err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		msg := ClassifyOutbound(data)
		if _, ok := msg.(Opaque); ok {
			continue
		}
		select {
		case events <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sideEffects records transcripts and answers function calls in arrival
// order. It drains the queue even after cancellation so no transcript is lost.
func (s *Session) sideEffects(ctx context.Context, events <-chan Outbound) error {
	persist := context.WithoutCancel(ctx)
	for ev := range events {
		switch m := ev.(type) {
		case UserTranscript:
			s.recorder.Record(persist, domain.RoleUser, m.Text)
		case AssistantTranscript:
			s.recorder.Record(persist, domain.RoleAssistant, m.Text)
		case FunctionCallRequest:
			s.dispatch(ctx, m)
		}
	}
	return nil
}

func (s *Session) dispatch(ctx context.Context, req FunctionCallRequest) {
	d, ok := s.r.dispatcher.Handle(ctx, s.ID, req)
	if !ok {
		return
	}
	if d.Display != nil {
		if err := s.client.writeText(d.Display); err != nil {
			s.log.Debug().Err(err).Msg("display message not delivered")
		}
	}
	for _, msg := range d.Upstream {
		if err := s.upstream.writeText(msg); err != nil {
			s.log.Warn().Err(err).Str("function", req.Name).Msg("function output not delivered")
			return
		}
	}
}

func (s *Session) keepalive(ctx context.Context) error {
	t := time.NewTicker(s.r.opts.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.client.ping(); err != nil {
				return fmt.Errorf("%w: ping: %v", errClientGone, err)
			}
		}
	}
}

func (s *Session) closeSockets() {
	s.client.close()
	if s.upstream != nil {
		s.upstream.close()
	}
}

func (s *Session) shutdown(ctx context.Context, cause error) {
	s.setState(StateClosing)
	s.closeSockets()
	s.recorder.Finish(ctx)
	s.setState(StateClosed)

	reason := "client_closed"
	switch {
	case cause == nil || errors.Is(cause, errClientGone):
	case errors.Is(cause, errUpstreamGone):
		reason = "upstream_closed"
	case errors.Is(cause, context.Canceled):
		reason = "shutdown"
	default:
		reason = "error"
	}

	s.log.Info().
		Str("reason", reason).
		AnErr("cause", cause).
		Int("userTurns", s.recorder.UserTurns()).
		Dur("duration", time.Since(s.started)).
		Msg("session closed")
	s.emit(ctx, hooks.EventSessionEnd, map[string]any{
		"reason":     reason,
		"userTurns":  s.recorder.UserTurns(),
		"durationMs": time.Since(s.started).Milliseconds(),
	})
}
