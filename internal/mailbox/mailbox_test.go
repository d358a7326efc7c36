package mailbox

import (
	"context"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// startIMAP runs an in-memory IMAP server whose INBOX holds one message
// from contact@example.org.
func startIMAP(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Close() })
	return ln.Addr().String()
}

func testMailbox(t *testing.T, addr string) *Mailbox {
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	m := New(config.MailConfig{
		IMAPHost: host,
		IMAPPort: p,
		Username: "username",
		Password: "password",
	}, logging.New(nil, "silent"))
	m.dial = func(addr string) (*client.Client, error) { return client.Dial(addr) }
	return m
}

func TestRecentEmails(t *testing.T) {
	m := testMailbox(t, startIMAP(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	emails, err := m.RecentEmails(ctx, 5)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].From, "contact@example.org")
	assert.NotEmpty(t, emails[0].Subject)
	assert.NotEmpty(t, emails[0].ID)
}

func TestSearchEmails(t *testing.T) {
	m := testMailbox(t, startIMAP(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hits, err := m.SearchEmails(ctx, "contact@example.org", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	misses, err := m.SearchEmails(ctx, "nobody-sent-this", 5)
	require.NoError(t, err)
	assert.Empty(t, misses)
}

func TestLoginFailure(t *testing.T) {
	m := testMailbox(t, startIMAP(t))
	m.cfg.Password = "wrong"

	_, err := m.RecentEmails(context.Background(), 5)
	assert.ErrorContains(t, err, "imap login")
}

func TestSendEmail(t *testing.T) {
	m := New(config.MailConfig{
		IMAPHost: "imap.example.com",
		SMTPPort: 587,
		Username: "me@example.com",
		Password: "secret",
	}, logging.New(nil, "silent"))

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	id, err := m.SendEmail(context.Background(), "a@example.com, b@example.com", "Hello", "Body")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<") && strings.HasSuffix(id, "@voicerelay>"))
	assert.Equal(t, "imap.example.com:587", gotAddr)
	assert.Equal(t, "me@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(string(gotMsg), "Message-ID: "+id+"\r\nFrom: me@example.com\r\n"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "a b c", compact("  a\r\n b\t\tc "))
	assert.Equal(t, []string{"x@y.z"}, recipients(" x@y.z, ,"))
	assert.Equal(t, "Ann <ann@example.com>", formatAddress(&imap.Address{PersonalName: "Ann", MailboxName: "ann", HostName: "example.com"}))
	assert.Equal(t, "ann@example.com", formatAddress(&imap.Address{MailboxName: "ann", HostName: "example.com"}))

	c := searchCriteria("invoice")
	require.Len(t, c.Or, 1)
	assert.Equal(t, "invoice", c.Or[0][0].Header.Get("From"))
	assert.Equal(t, "invoice", c.Or[0][1].Header.Get("Subject"))
}
