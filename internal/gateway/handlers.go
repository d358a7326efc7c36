package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/soyeahso/voicerelay/internal/version"
)

// maxClientMessage bounds one client frame. Base64 images are the largest.
const maxClientMessage = 16 * 1024 * 1024

// HealthResponse is returned by /health?format=json.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Commit   string `json:"commit,omitempty"`
	Sessions int    `json:"sessions"`
	UptimeMs int64  `json:"uptimeMs,omitempty"`
}

// handleHealth answers load balancer probes with a plain "OK". Ask for
// format=json to get version and session details.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") != "json" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "OK\n")
		return
	}

	resp := HealthResponse{
		Status:   "ok",
		Version:  version.Version,
		Commit:   version.Commit,
		Sessions: s.relay.Active(),
	}
	if started := s.started(); !started.IsZero() {
		resp.UptimeMs = time.Since(started).Milliseconds()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleWebSocket authenticates, upgrades and hands the socket to the relay
// for the lifetime of the session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited: too many failed auth attempts")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	auth := Authorize(s.token, r)
	if !auth.OK {
		s.authLimiter.recordFailure(r.RemoteAddr)
		s.log.Warn().Str("remote", r.RemoteAddr).Str("reason", auth.Reason).Msg("websocket auth failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Upgrade writes its own error response.
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxClientMessage)

	s.sessions.Add(1)
	defer s.sessions.Done()

	s.log.Debug().Str("remote", r.RemoteAddr).Str("auth", auth.Method).Msg("client connected")
	if err := s.relay.Serve(r.Context(), conn, r.RemoteAddr); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("session ended with error")
	}
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
