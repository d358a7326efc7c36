package google

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/soyeahso/voicerelay/internal/domain"
)

func serve(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestMail_RecentEmails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
		assert.Equal(t, "2", r.URL.Query().Get("maxResults"))
		writeJSON(w, map[string]any{"messages": []any{map[string]any{"id": "m1"}}})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metadata", r.URL.Query().Get("format"))
		writeJSON(w, map[string]any{
			"id":      "m1",
			"snippet": "Don&#39;t forget the milk",
			"payload": map[string]any{"headers": []any{
				map[string]any{"name": "From", "value": "Alice <alice@example.com>"},
				map[string]any{"name": "Subject", "value": "Groceries"},
				map[string]any{"name": "Date", "value": "Mon, 2 Jan 2006 15:04:05 -0500"},
			}},
		})
	})
	srv := serve(t, mux)

	ctx := context.Background()
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	emails, err := (&Mail{svc: svc}).RecentEmails(ctx, 2)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.Email{
		ID:      "m1",
		From:    "Alice <alice@example.com>",
		Subject: "Groceries",
		Date:    "Mon, 2 Jan 2006 15:04:05 -0500",
		Snippet: "Don't forget the milk",
	}, emails[0])
}

func TestMail_SendEmail(t *testing.T) {
	var raw string
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		var msg gmail.Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		raw = msg.Raw
		writeJSON(w, map[string]any{"id": "sent-1"})
	})
	srv := serve(t, mux)

	ctx := context.Background()
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	id, err := (&Mail{svc: svc}).SendEmail(ctx, "bob@example.com", "Hi", "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, "sent-1", id)

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Contains(t, string(decoded), "To: bob@example.com\r\n")
	assert.True(t, strings.HasSuffix(string(decoded), "line one\r\nline two"))
}

func TestBuildMessage(t *testing.T) {
	msg := BuildMessage("me@example.com", "you@example.com", "Café plans", "a\r\nb\nc")
	assert.True(t, strings.HasPrefix(msg, "From: me@example.com\r\nTo: you@example.com\r\n"))
	assert.Contains(t, msg, "Subject: =?utf-8?q?Caf=C3=A9_plans?=\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\na\r\nb\r\nc"))

	assert.NotContains(t, BuildMessage("", "x@example.com", "s", "b"), "From:")
}

func TestCalendar_UpcomingEvents(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	events := func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, now.Format(time.RFC3339), q.Get("timeMin"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "true", q.Get("singleEvents"))
		writeJSON(w, map[string]any{"items": []any{
			map[string]any{"id": "e1", "summary": "Dentist", "start": map[string]any{"dateTime": "2026-03-02T09:00:00-05:00"}, "location": "Main St"},
			map[string]any{"id": "e2", "start": map[string]any{"date": "2026-03-03"}},
		}})
	}
	mux.HandleFunc("/calendar/v3/calendars/primary/events", events)
	mux.HandleFunc("/calendars/primary/events", events)
	srv := serve(t, mux)

	ctx := context.Background()
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	c := &Calendar{svc: svc, timeZone: "America/New_York", now: func() time.Time { return now }}
	got, err := c.UpcomingEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Dentist", got[0].Summary)
	assert.Equal(t, "2026-03-02T09:00:00-05:00", got[0].Start)
	assert.Equal(t, "Main St", got[0].Location)
	assert.Equal(t, "No title", got[1].Summary)
	assert.Equal(t, "2026-03-03", got[1].Start)
}

func TestContentKind(t *testing.T) {
	tests := []struct {
		mime, name string
		want       fileKind
	}{
		{mimeGoogleDoc, "Notes", kindExportText},
		{mimeGoogleSheet, "Budget", kindExportCSV},
		{"image/png", "cat.png", kindImage},
		{"text/plain", "a.txt", kindText},
		{"application/json", "a.json", kindText},
		{"application/xml", "a.xml", kindText},
		{"application/octet-stream", "export.CSV", kindText},
		{"application/pdf", "a.pdf", kindUnsupported},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, contentKind(tt.mime, tt.name), tt.mime)
	}
}

func TestImageContent(t *testing.T) {
	got := imageContent("image/png", []byte("hi"))
	assert.Equal(t, domain.ImageContentPrefix+"data:image/png;base64,aGk=", got)
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t,
		`(name contains 'Bob\'s notes' or fullText contains 'Bob\'s notes') and trashed = false`,
		searchQuery("Bob's notes"))
	assert.Equal(t,
		`(name contains 'a\\b' or fullText contains 'a\\b') and trashed = false`,
		searchQuery(`a\b`))
}

func TestToValues(t *testing.T) {
	assert.Equal(t, [][]interface{}{{"a", "b"}, {"c"}}, toValues([][]string{{"a", "b"}, {"c"}}))
	assert.Empty(t, toValues(nil))
}

func TestContactMapping(t *testing.T) {
	persons := []*people.Person{
		{
			Names:          []*people.Name{{DisplayName: "Alice Smith"}},
			EmailAddresses: []*people.EmailAddress{{Value: "alice@example.com"}},
			PhoneNumbers:   []*people.PhoneNumber{{Value: "555-0100"}},
			Organizations:  []*people.Organization{{Name: "Acme"}},
		},
		{Names: []*people.Name{{DisplayName: "Bob Jones"}}},
		{},
	}

	all := filterContacts(persons, "", 10)
	require.Len(t, all, 3)
	assert.Equal(t, domain.Contact{Name: "Alice Smith", Email: "alice@example.com", Phone: "555-0100", Organization: "Acme"}, all[0])
	assert.Equal(t, domain.Contact{}, all[2])

	assert.Equal(t, []domain.Contact{{Name: "Bob Jones"}}, filterContacts(persons, "BOB", 10))
	assert.Len(t, filterContacts(persons, "", 1), 1)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, tok))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := TokenFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
}

func TestHTTPClient_NotAuthorized(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(`{"installed":{
		"client_id":"id","client_secret":"secret",
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token",
		"redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`), 0o600))

	_, err := HTTPClient(context.Background(), creds, filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = HTTPClient(context.Background(), filepath.Join(dir, "nope.json"), filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestAuthorize_EmptyCode(t *testing.T) {
	cfg := &oauth2.Config{ClientID: "id", Endpoint: oauth2.Endpoint{AuthURL: "https://example.com/auth"}}
	var out strings.Builder
	_, err := Authorize(context.Background(), cfg, strings.NewReader("\n"), &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "https://example.com/auth")
}
