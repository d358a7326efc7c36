package gateway

import (
	"context"
	"time"

	"github.com/soyeahso/voicerelay/internal/hooks"
)

// SessionRecorder persists session starts and ends.
type SessionRecorder interface {
	Started(ctx context.Context, id, remoteAddr string, at time.Time) error
	Ended(ctx context.Context, id string, userTurns int, reason string, at time.Time) error
}

// registerHooks installs the gateway's own handlers: a debug log of every
// event and, when configured, the session log.
func (s *Server) registerHooks() {
	for _, event := range hooks.AllEvents {
		s.hooks.On(event, "gateway-log", s.logEvent)
	}
	if s.sessionLog == nil {
		return
	}
	s.hooks.On(hooks.EventSessionStart, "session-log", func(ctx context.Context, p hooks.Payload) error {
		remote, _ := p.Data["remoteAddr"].(string)
		return s.sessionLog.Started(ctx, p.SessionID, remote, time.Now())
	})
	s.hooks.On(hooks.EventSessionEnd, "session-log", func(ctx context.Context, p hooks.Payload) error {
		reason, _ := p.Data["reason"].(string)
		turns, _ := p.Data["userTurns"].(int)
		return s.sessionLog.Ended(ctx, p.SessionID, turns, reason, time.Now())
	})
}

func (s *Server) logEvent(_ context.Context, p hooks.Payload) error {
	s.log.Debug().
		Str("event", p.Event).
		Str("session", p.SessionID).
		Interface("data", p.Data).
		Msg("hook event")
	return nil
}
