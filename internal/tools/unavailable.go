package tools

import (
	"context"
	"errors"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// ErrUnavailable is returned by Unavailable for every operation.
var ErrUnavailable = errors.New("productivity services are not configured")

// Unavailable is the ToolProvider used when Google Workspace is not set up.
type Unavailable struct{}

var _ domain.ToolProvider = Unavailable{}

func (Unavailable) RecentEmails(context.Context, int) ([]domain.Email, error) {
	return nil, ErrUnavailable
}

func (Unavailable) SearchEmails(context.Context, string, int) ([]domain.Email, error) {
	return nil, ErrUnavailable
}

func (Unavailable) SendEmail(context.Context, string, string, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) UpcomingEvents(context.Context, int) ([]domain.Event, error) {
	return nil, ErrUnavailable
}

func (Unavailable) CreateEvent(context.Context, domain.EventRequest) (domain.Event, error) {
	return domain.Event{}, ErrUnavailable
}

func (Unavailable) ListFiles(context.Context, int) ([]domain.File, error) {
	return nil, ErrUnavailable
}

func (Unavailable) SearchFiles(context.Context, string, int) ([]domain.File, error) {
	return nil, ErrUnavailable
}

func (Unavailable) FileContent(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

func (Unavailable) WriteSheet(context.Context, string, [][]string, bool) (int, error) {
	return 0, ErrUnavailable
}

func (Unavailable) Contacts(context.Context, string, int) ([]domain.Contact, error) {
	return nil, ErrUnavailable
}

// MailOnly serves mail from Mail and reports every other service as
// unavailable.
type MailOnly struct {
	Unavailable
	Mail domain.MailBackend
}

var _ domain.ToolProvider = MailOnly{}

func (m MailOnly) RecentEmails(ctx context.Context, max int) ([]domain.Email, error) {
	return m.Mail.RecentEmails(ctx, max)
}

func (m MailOnly) SearchEmails(ctx context.Context, query string, max int) ([]domain.Email, error) {
	return m.Mail.SearchEmails(ctx, query, max)
}

func (m MailOnly) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	return m.Mail.SendEmail(ctx, to, subject, body)
}
