package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soyeahso/voicerelay/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestRequestIDMiddleware(t *testing.T) {
	rr := httptest.NewRecorder()
	requestIDMiddleware(okHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "voice-42")
	rr = httptest.NewRecorder()
	requestIDMiddleware(okHandler).ServeHTTP(rr, req)
	assert.Equal(t, "voice-42", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"unconfigured denies", nil, "http://localhost:3000", ""},
		{"wildcard", []string{"*"}, "http://localhost:3000", "http://localhost:3000"},
		{"listed", []string{"https://voice.example"}, "https://voice.example", "https://voice.example"},
		{"unlisted", []string{"https://voice.example"}, "http://evil.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/health", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			corsMiddleware(okHandler, tt.allowed).ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	corsMiddleware(okHandler, nil).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestWithMiddleware(t *testing.T) {
	handler := withMiddleware(okHandler, logging.Nop(), []string{"https://voice.example"})

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://voice.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "https://voice.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoverMiddleware(t *testing.T) {
	boom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rr := httptest.NewRecorder()
	recoverMiddleware(boom, logging.Nop()).ServeHTTP(rr, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestStatusWriter_HijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := sw.Hijack()
	assert.Error(t, err)
	assert.False(t, sw.hijacked)
	assert.Equal(t, http.StatusOK, sw.status)
}

func TestOriginListed(t *testing.T) {
	assert.True(t, originListed("https://a.example", []string{"*"}))
	assert.True(t, originListed("https://a.example", []string{"https://b.example", "https://a.example"}))
	assert.False(t, originListed("https://a.example", nil))
	assert.False(t, originListed("https://a.example", []string{"https://b.example"}))
}
