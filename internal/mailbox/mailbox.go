// Package mailbox is an IMAP/SMTP mail backend for accounts that are not
// Gmail.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/google/uuid"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/google"
	"github.com/soyeahso/voicerelay/internal/logging"
)

const (
	inbox      = "INBOX"
	snippetLen = 200
)

// Mailbox reads over IMAP and sends over SMTP. Each call opens its own
// IMAP connection.
type Mailbox struct {
	cfg  config.MailConfig
	log  *logging.Logger
	dial func(addr string) (*client.Client, error)
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ domain.MailBackend = (*Mailbox)(nil)

// New creates a mailbox backend.
func New(cfg config.MailConfig, log *logging.Logger) *Mailbox {
	return &Mailbox{
		cfg: cfg,
		log: log.Sub("mailbox"),
		dial: func(addr string) (*client.Client, error) {
			return client.DialTLS(addr, &tls.Config{})
		},
		send: smtp.SendMail,
	}
}

func (m *Mailbox) connect(ctx context.Context) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", m.cfg.IMAPHost, m.cfg.IMAPPort)
	m.log.Debug().Str("addr", addr).Msg("connecting to IMAP server")

	c, err := m.dial(addr)
	if err != nil {
		return nil, fmt.Errorf("imap connect: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	if err := c.Login(m.cfg.Username, m.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	return c, nil
}

// RecentEmails returns the newest INBOX messages, newest first.
func (m *Mailbox) RecentEmails(ctx context.Context, max int) ([]domain.Email, error) {
	c, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(inbox, true)
	if err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}
	if mbox.Messages == 0 || max <= 0 {
		return []domain.Email{}, nil
	}

	from := uint32(1)
	if mbox.Messages > uint32(max) {
		from = mbox.Messages - uint32(max) + 1
	}
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, mbox.Messages)

	return fetch(c, seqset)
}

// SearchEmails matches query against the sender and subject of INBOX
// messages and returns the newest max matches.
func (m *Mailbox) SearchEmails(ctx context.Context, query string, max int) ([]domain.Email, error) {
	if strings.TrimSpace(query) == "" {
		return m.RecentEmails(ctx, max)
	}

	c, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	if _, err := c.Select(inbox, true); err != nil {
		return nil, fmt.Errorf("imap select: %w", err)
	}

	seqNums, err := c.Search(searchCriteria(query))
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(seqNums) == 0 || max <= 0 {
		return []domain.Email{}, nil
	}
	sort.Slice(seqNums, func(i, j int) bool { return seqNums[i] < seqNums[j] })
	if len(seqNums) > max {
		seqNums = seqNums[len(seqNums)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)
	return fetch(c, seqset)
}

// SendEmail sends a plain-text message over SMTP and returns the
// Message-ID it assigned.
func (m *Mailbox) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	from := m.cfg.From
	if from == "" {
		from = m.cfg.Username
	}
	host := m.cfg.SMTPHost
	if host == "" {
		host = m.cfg.IMAPHost
	}

	addr := fmt.Sprintf("%s:%d", host, m.cfg.SMTPPort)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, host)
	id := fmt.Sprintf("<%s@voicerelay>", uuid.NewString())
	msg := "Message-ID: " + id + "\r\n" + google.BuildMessage(from, to, subject, body)

	if err := m.send(addr, auth, from, recipients(to), []byte(msg)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	m.log.Info().Str("to", to).Msg("message sent")
	return id, nil
}

func searchCriteria(query string) *imap.SearchCriteria {
	byFrom := imap.NewSearchCriteria()
	byFrom.Header.Add("From", query)
	bySubject := imap.NewSearchCriteria()
	bySubject.Header.Add("Subject", query)

	criteria := imap.NewSearchCriteria()
	criteria.Or = [][2]*imap.SearchCriteria{{byFrom, bySubject}}
	return criteria
}

func fetch(c *client.Client, seqset *imap.SeqSet) ([]domain.Email, error) {
	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
		Partial:      []int{0, snippetLen},
	}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var list []*imap.Message
	for msg := range messages {
		list = append(list, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].SeqNum > list[j].SeqNum })
	emails := make([]domain.Email, 0, len(list))
	for _, msg := range list {
		emails = append(emails, emailFromMessage(msg, section))
	}
	return emails, nil
}

func emailFromMessage(msg *imap.Message, section *imap.BodySectionName) domain.Email {
	e := domain.Email{ID: fmt.Sprintf("%d", msg.Uid)}
	if env := msg.Envelope; env != nil {
		e.Subject = env.Subject
		if len(env.From) > 0 {
			e.From = formatAddress(env.From[0])
		}
		if !env.Date.IsZero() {
			e.Date = env.Date.Format(time.RFC1123Z)
		}
	}
	if section != nil {
		if body := msg.GetBody(section); body != nil {
			if b, err := io.ReadAll(body); err == nil {
				e.Snippet = compact(string(b))
			}
		}
	}
	return e
}

func formatAddress(a *imap.Address) string {
	if a.PersonalName != "" {
		return fmt.Sprintf("%s <%s>", a.PersonalName, a.Address())
	}
	return a.Address()
}

// compact collapses whitespace runs to single spaces.
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func recipients(to string) []string {
	var out []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
