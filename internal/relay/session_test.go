package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/hooks"
	"github.com/soyeahso/voicerelay/internal/logging"
	"github.com/soyeahso/voicerelay/internal/tools"
)

const waitTimeout = 5 * time.Second

// fakeUpstream is a realtime service stand-in that records what it receives.
type fakeUpstream struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan []byte
	headers  chan http.Header
	wg       sync.WaitGroup
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan []byte, 128),
		headers:  make(chan http.Header, 4),
	}
	upgrader := websocket.Upgrader{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		u.wg.Add(1)
		defer u.wg.Done()
		defer conn.Close()
		u.headers <- r.Header.Clone()
		u.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			u.received <- data
		}
	}))
	t.Cleanup(func() {
		u.srv.Close()
		u.wg.Wait()
	})
	return u
}

func (u *fakeUpstream) url() string {
	return "ws" + strings.TrimPrefix(u.srv.URL, "http")
}

func (u *fakeUpstream) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-u.conns:
		return c
	case <-time.After(waitTimeout):
		t.Fatal("upstream never connected")
		return nil
	}
}

func (u *fakeUpstream) next(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-u.received:
		return b
	case <-time.After(waitTimeout):
		t.Fatal("upstream received nothing")
		return nil
	}
}

type harness struct {
	relay    *Relay
	mem      *fakeMemory
	ext      *fakeExtractor
	provider *tools.MockProvider
	hooks    *hooks.Manager
	upstream *fakeUpstream
	srv      *httptest.Server
	served   chan error
	ctx      context.Context
	cancel   context.CancelFunc
}

func newHarness(t *testing.T, tweak func(*Options, *Deps)) *harness {
	t.Helper()
	h := &harness{
		mem:      newFakeMemory(),
		ext:      &fakeExtractor{facts: []domain.Fact{{Subject: "User", Attribute: "name", Value: "Sam"}}},
		provider: &tools.MockProvider{},
		hooks:    hooks.NewManager(logging.Nop()),
		upstream: newFakeUpstream(t),
		served:   make(chan error, 4),
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())

	opts := Options{UpstreamURL: h.upstream.url(), APIKey: "test-key", ExtractEvery: 5}
	deps := Deps{
		Memory:    h.mem,
		Providers: Providers{Tools: h.provider, Knowledge: newFakeKB()},
		Extractor: h.ext,
		Persona:   func() string { return "You are Ara." },
		Hooks:     h.hooks,
	}
	if tweak != nil {
		tweak(&opts, &deps)
	}
	h.relay = New(opts, deps, logging.Nop())

	upgrader := websocket.Upgrader{}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.served <- h.relay.Serve(h.ctx, conn, r.RemoteAddr)
	}))
	t.Cleanup(func() {
		h.cancel()
		h.srv.Close()
		h.relay.Wait()
		h.hooks.Wait()
	})
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(h.srv.URL, "http"), nil)
	require.NoError(t, err)
	return c
}

func (h *harness) waitServed(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.served:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("session did not end")
		return nil
	}
}

func readMsg(t *testing.T, c *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)
	return data
}

func send(t *testing.T, c *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func TestSession_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	ended := make(chan hooks.Payload, 1)
	h.hooks.On(hooks.EventSessionEnd, "test", func(_ context.Context, p hooks.Payload) error {
		ended <- p
		return nil
	})

	client := h.dial(t)
	up := h.upstream.conn(t)

	// Connecting: one session.update carrying instructions and tools.
	var init struct {
		Type    string `json:"type"`
		Session struct {
			Voice        string            `json:"voice"`
			Modalities   []string          `json:"modalities"`
			Instructions string            `json:"instructions"`
			Transcribe   map[string]string `json:"input_audio_transcription"`
			Turn         any               `json:"turn_detection"`
			Tools        []map[string]any  `json:"tools"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(h.upstream.next(t), &init))
	assert.Equal(t, "session.update", init.Type)
	assert.Equal(t, "Ara", init.Session.Voice)
	assert.Equal(t, []string{"audio", "text"}, init.Session.Modalities)
	assert.True(t, strings.HasPrefix(init.Session.Instructions, "You are Ara.\n\n[CURRENT TIME]\n"))
	assert.Equal(t, "whisper-1", init.Session.Transcribe["model"])
	assert.Nil(t, init.Session.Turn)
	require.Len(t, init.Session.Tools, 10)
	assert.Equal(t, "web_search", init.Session.Tools[0]["type"])
	assert.Equal(t, "x_search", init.Session.Tools[1]["type"])
	assert.Equal(t, "function", init.Session.Tools[2]["type"])
	assert.Equal(t, "Bearer test-key", (<-h.upstream.headers).Get("Authorization"))

	// Control commands are answered locally.
	send(t, client, `{"type":"kb.store","name":"doc1","content":"hello world"}`)
	assert.JSONEq(t, `{"type":"kb.stored","name":"doc1","chunks":1}`, string(readMsg(t, client)))

	// Malformed input is forwarded verbatim, and is the next thing upstream sees.
	send(t, client, `{bad json`)
	assert.Equal(t, `{bad json`, string(h.upstream.next(t)))

	// Keyword context is injected before the user message.
	msg := string(userText("check my calendar"))
	send(t, client, msg)
	assert.Equal(t, "[The user's calendar shows no upcoming events.]", injectedText(t, h.upstream.next(t)))
	assert.Equal(t, msg, string(h.upstream.next(t)))

	// Upstream traffic reaches the client unchanged.
	delta := `{"type":"response.audio.delta","delta":"AAAA"}`
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(delta)))
	assert.Equal(t, delta, string(readMsg(t, client)))

	// A function call is forwarded, then answered upstream with output plus continuation.
	call := `{"type":"response.function_call_arguments.done","call_id":"c1","name":"retrieve_calendar","arguments":"{}"}`
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(call)))
	assert.Equal(t, call, string(readMsg(t, client)))
	assert.JSONEq(t, `{"type":"google.calendar.result","events":[]}`, string(readMsg(t, client)))

	item := decode(t, h.upstream.next(t))["item"].(map[string]any)
	assert.Equal(t, "c1", item["call_id"])
	assert.JSONEq(t, `{"events":[],"count":0}`, item["output"].(string))
	assert.JSONEq(t, `{"type":"response.create"}`, string(h.upstream.next(t)))

	// Transcripts are recorded.
	tr := `{"type":"conversation.item.input_audio_transcription.completed","transcript":"my name is Sam"}`
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(tr)))
	assert.Equal(t, tr, string(readMsg(t, client)))
	assert.Eventually(t, func() bool { return len(h.mem.snapshot()) == 1 }, waitTimeout, 10*time.Millisecond)

	require.NoError(t, client.Close())
	assert.NoError(t, h.waitServed(t))

	h.relay.Wait()
	assert.Equal(t, 1, h.ext.calls(), "final extraction")
	h.hooks.Wait()
	p := <-ended
	assert.Equal(t, "client_closed", p.Data["reason"])
	assert.Equal(t, 1, p.Data["userTurns"])
	assert.Equal(t, 0, h.relay.Active())
}

func TestSession_ExtractsEveryFifthTranscript(t *testing.T) {
	h := newHarness(t, nil)
	client := h.dial(t)
	up := h.upstream.conn(t)
	h.upstream.next(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, up.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"turn"}`)))
		readMsg(t, client)
	}
	assert.Eventually(t, func() bool { return h.ext.calls() == 1 }, waitTimeout, 10*time.Millisecond)

	require.NoError(t, client.Close())
	require.NoError(t, h.waitServed(t))
	h.relay.Wait()
	assert.Equal(t, 2, h.ext.calls())
	facts, err := h.mem.ProfileFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Fact{{Subject: "User", Attribute: "name", Value: "Sam"}}, facts)
}

func TestSession_UpstreamUnavailable(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *Deps) {
		o.UpstreamURL = "ws://127.0.0.1:1/unreachable"
		o.DialTimeout = time.Second
	})
	require.NoError(t, h.mem.AppendTurn(context.Background(), domain.RoleUser, "earlier", time.Now()))

	client := h.dial(t)
	err := h.waitServed(t)
	assert.ErrorContains(t, err, "dialing upstream")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, _, readErr := client.ReadMessage()
	assert.Error(t, readErr)
	client.Close()

	// Closing still runs the final extraction.
	h.relay.Wait()
	assert.Equal(t, 1, h.ext.calls())
}

func TestSession_UpstreamDropClosesClient(t *testing.T) {
	h := newHarness(t, nil)
	client := h.dial(t)
	up := h.upstream.conn(t)
	h.upstream.next(t)

	require.NoError(t, up.Close())

	err := h.waitServed(t)
	assert.ErrorIs(t, err, errUpstreamGone)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, _, readErr := client.ReadMessage()
	assert.Error(t, readErr)
	client.Close()
}

func TestSession_ContextCancelEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	client := h.dial(t)
	h.upstream.conn(t)
	h.upstream.next(t)

	h.cancel()
	assert.ErrorIs(t, h.waitServed(t), context.Canceled)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, _, err := client.ReadMessage()
	assert.Error(t, err)
	client.Close()
}

func TestSession_MissingCallIDDropped(t *testing.T) {
	h := newHarness(t, nil)
	client := h.dial(t)
	up := h.upstream.conn(t)
	h.upstream.next(t)

	bad := `{"type":"response.function_call_arguments.done","name":"retrieve_calendar","arguments":"{}"}`
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(bad)))
	assert.Equal(t, bad, string(readMsg(t, client)))

	// The session keeps relaying.
	send(t, client, `{"type":"input_audio_buffer.commit"}`)
	assert.Equal(t, `{"type":"input_audio_buffer.commit"}`, string(h.upstream.next(t)))
	assert.Zero(t, h.provider.CallCount())

	client.Close()
	h.waitServed(t)
}

func TestSession_UpstreamMalformedAndKindTagged(t *testing.T) {
	h := newHarness(t, nil)
	client := h.dial(t)
	up := h.upstream.conn(t)
	h.upstream.next(t)

	// Undecodable upstream frames reach the client verbatim.
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.audio.delta",`)))
	assert.Equal(t, `{"type":"response.audio.delta",`, string(readMsg(t, client)))

	// A call tagged with kind is still dispatched: one output, one continuation.
	call := `{"kind":"function_call_arguments_done","name":"retrieve_calendar","call_id":"c1","arguments":"{\"max_results\":2}"}`
	require.NoError(t, up.WriteMessage(websocket.TextMessage, []byte(call)))
	assert.Equal(t, call, string(readMsg(t, client)))
	assert.JSONEq(t, `{"type":"google.calendar.result","events":[]}`, string(readMsg(t, client)))

	item := decode(t, h.upstream.next(t))["item"].(map[string]any)
	assert.Equal(t, "function_call_output", item["type"])
	assert.Equal(t, "c1", item["call_id"])
	assert.JSONEq(t, `{"type":"response.create"}`, string(h.upstream.next(t)))

	// The session stays open in both directions.
	send(t, client, `{"type":"input_audio_buffer.commit"}`)
	assert.Equal(t, `{"type":"input_audio_buffer.commit"}`, string(h.upstream.next(t)))

	require.NoError(t, client.Close())
	assert.NoError(t, h.waitServed(t))
}

func TestSession_KeepalivePings(t *testing.T) {
	h := newHarness(t, func(o *Options, _ *Deps) {
		o.PingInterval = 20 * time.Millisecond
	})
	client := h.dial(t)
	pinged := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	h.upstream.conn(t)
	h.upstream.next(t)

	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()
	select {
	case <-pinged:
	case <-time.After(waitTimeout):
		t.Fatal("no ping received")
	}

	client.Close()
	h.waitServed(t)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "state(9)", State(9).String())
}
