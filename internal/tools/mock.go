package tools

import (
	"context"
	"sync"

	"github.com/soyeahso/voicerelay/internal/domain"
)

// MockProvider is an in-memory ToolProvider for tests. Err, when set, is
// returned by every operation.
type MockProvider struct {
	Emails   []domain.Email
	Events   []domain.Event
	Files    []domain.File
	Contents map[string]string
	People   []domain.Contact
	Err      error

	mu      sync.Mutex
	Sent    []string
	Created []domain.EventRequest
	Written map[string][][]string
	Calls   []string
}

var _ domain.ToolProvider = (*MockProvider)(nil)

func (m *MockProvider) record(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op)
	return m.Err
}

func (m *MockProvider) RecentEmails(_ context.Context, max int) ([]domain.Email, error) {
	if err := m.record("RecentEmails"); err != nil {
		return nil, err
	}
	return head(m.Emails, max), nil
}

func (m *MockProvider) SearchEmails(_ context.Context, _ string, max int) ([]domain.Email, error) {
	if err := m.record("SearchEmails"); err != nil {
		return nil, err
	}
	return head(m.Emails, max), nil
}

func (m *MockProvider) SendEmail(_ context.Context, to, _, _ string) (string, error) {
	if err := m.record("SendEmail"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, to)
	return "msg-1", nil
}

func (m *MockProvider) UpcomingEvents(_ context.Context, max int) ([]domain.Event, error) {
	if err := m.record("UpcomingEvents"); err != nil {
		return nil, err
	}
	return head(m.Events, max), nil
}

func (m *MockProvider) CreateEvent(_ context.Context, req domain.EventRequest) (domain.Event, error) {
	if err := m.record("CreateEvent"); err != nil {
		return domain.Event{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Created = append(m.Created, req)
	return domain.Event{ID: "evt-1", Summary: req.Summary, Start: req.Start, End: req.End}, nil
}

func (m *MockProvider) ListFiles(_ context.Context, max int) ([]domain.File, error) {
	if err := m.record("ListFiles"); err != nil {
		return nil, err
	}
	return head(m.Files, max), nil
}

func (m *MockProvider) SearchFiles(_ context.Context, _ string, max int) ([]domain.File, error) {
	if err := m.record("SearchFiles"); err != nil {
		return nil, err
	}
	return head(m.Files, max), nil
}

func (m *MockProvider) FileContent(_ context.Context, id string) (string, error) {
	if err := m.record("FileContent"); err != nil {
		return "", err
	}
	return m.Contents[id], nil
}

func (m *MockProvider) WriteSheet(_ context.Context, id string, rows [][]string, _ bool) (int, error) {
	if err := m.record("WriteSheet"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Written == nil {
		m.Written = make(map[string][][]string)
	}
	m.Written[id] = append(m.Written[id], rows...)
	return len(rows), nil
}

func (m *MockProvider) Contacts(_ context.Context, _ string, max int) ([]domain.Contact, error) {
	if err := m.record("Contacts"); err != nil {
		return nil, err
	}
	return head(m.People, max), nil
}

// CallCount returns how many operations have been invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
