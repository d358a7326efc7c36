package google

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"mime"
	"strings"

	"google.golang.org/api/gmail/v1"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// Mail reads and sends Gmail messages for the authorized user.
type Mail struct {
	svc *gmail.Service
}

// RecentEmails returns the newest INBOX messages.
func (m *Mail) RecentEmails(ctx context.Context, max int) ([]domain.Email, error) {
	call := m.svc.Users.Messages.List("me").MaxResults(int64(max)).LabelIds("INBOX")
	r, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}
	return m.metadata(ctx, r.Messages)
}

// SearchEmails runs a Gmail search query such as "from:alice invoice".
func (m *Mail) SearchEmails(ctx context.Context, query string, max int) ([]domain.Email, error) {
	call := m.svc.Users.Messages.List("me").MaxResults(int64(max))
	if query != "" {
		call = call.Q(query)
	}
	r, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail search: %w", err)
	}
	return m.metadata(ctx, r.Messages)
}

func (m *Mail) metadata(ctx context.Context, msgs []*gmail.Message) ([]domain.Email, error) {
	emails := make([]domain.Email, 0, len(msgs))
	for _, msg := range msgs {
		detail, err := m.svc.Users.Messages.Get("me", msg.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail get %s: %w", msg.Id, err)
		}
		emails = append(emails, emailFromMessage(detail))
	}
	return emails, nil
}

// SendEmail sends a plain-text message and returns its Gmail id.
func (m *Mail) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	raw := base64.URLEncoding.EncodeToString([]byte(BuildMessage("", to, subject, body)))
	sent, err := m.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail send: %w", err)
	}
	return sent.Id, nil
}

func emailFromMessage(msg *gmail.Message) domain.Email {
	e := domain.Email{ID: msg.Id, Snippet: html.UnescapeString(msg.Snippet)}
	if msg.Payload == nil {
		return e
	}
	for _, h := range msg.Payload.Headers {
		switch h.Name {
		case "From":
			e.From = h.Value
		case "Subject":
			e.Subject = h.Value
		case "Date":
			e.Date = h.Value
		}
	}
	return e
}

// BuildMessage renders an RFC 2822 plain-text message. An empty from lets
// the sending service fill it in.
func BuildMessage(from, to, subject, body string) string {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.String()
}
