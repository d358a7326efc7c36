package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"
	"google.golang.org/api/sheets/v4"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// Workspace implements domain.ToolProvider on top of the Google APIs.
// Mail can be served by a different backend.
type Workspace struct {
	domain.MailBackend
	*Drive
	*Calendar
	*Sheets
	*People
}

var _ domain.ToolProvider = (*Workspace)(nil)

// Option customizes a Workspace.
type Option func(*Workspace)

// WithMail replaces Gmail with another mail backend.
func WithMail(mb domain.MailBackend) Option {
	return func(w *Workspace) { w.MailBackend = mb }
}

// NewWorkspace builds every service client over one authorized HTTP client.
func NewWorkspace(ctx context.Context, client *http.Client, timeZone string, opts ...Option) (*Workspace, error) {
	o := option.WithHTTPClient(client)

	gsvc, err := gmail.NewService(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	dsvc, err := drive.NewService(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	csvc, err := calendar.NewService(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	ssvc, err := sheets.NewService(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	psvc, err := people.NewService(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("unable to create People service: %w", err)
	}

	w := &Workspace{
		MailBackend: &Mail{svc: gsvc},
		Drive:       &Drive{svc: dsvc},
		Calendar:    &Calendar{svc: csvc, timeZone: timeZone, now: time.Now},
		Sheets:      &Sheets{svc: ssvc},
		People:      &People{svc: psvc},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Open authorizes with the cached token and builds a Workspace.
func Open(ctx context.Context, credentialsPath, tokenPath, timeZone string, opts ...Option) (*Workspace, error) {
	client, err := HTTPClient(ctx, credentialsPath, tokenPath)
	if err != nil {
		return nil, err
	}
	return NewWorkspace(ctx, client, timeZone, opts...)
}
