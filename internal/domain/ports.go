package domain

import (
	"context"
	"time"
)

// MemoryStore is the append-only turn log plus the user profile.
type MemoryStore interface {
	AppendTurn(ctx context.Context, role Role, text string, at time.Time) error
	// RecentTurns returns up to limit of the newest turns in chronological order.
	RecentTurns(ctx context.Context, limit int) ([]Turn, error)
	ProfileFacts(ctx context.Context) ([]Fact, error)
	// MergeFacts upserts facts by Fact.Key. Merging the same set twice is a no-op.
	MergeFacts(ctx context.Context, facts []Fact) error
	// LastTurnTime reports the timestamp of the newest turn, if any.
	LastTurnTime(ctx context.Context) (time.Time, bool, error)
}

// VectorIndex retrieves past conversation relevant to a query.
type VectorIndex interface {
	// IndexAll rebuilds the window index from the turn log and returns the
	// number of windows written.
	IndexAll(ctx context.Context) (int, error)
	AddMemory(ctx context.Context, role Role, text string) error
	// Search returns a formatted context block, or "" when nothing matches.
	Search(ctx context.Context, query string, k int) (string, error)
}

// KnowledgeBase stores user documents in searchable chunks.
type KnowledgeBase interface {
	Store(ctx context.Context, name, content, docType string) (int, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, name string) (int, error)
	Search(ctx context.Context, query string, k int) (string, error)
}

// MailBackend reads and sends mail.
type MailBackend interface {
	RecentEmails(ctx context.Context, max int) ([]Email, error)
	SearchEmails(ctx context.Context, query string, max int) ([]Email, error)
	// SendEmail returns the provider message id.
	SendEmail(ctx context.Context, to, subject, body string) (string, error)
}

// ToolProvider performs productivity-service actions on behalf of the user.
type ToolProvider interface {
	MailBackend

	UpcomingEvents(ctx context.Context, max int) ([]Event, error)
	CreateEvent(ctx context.Context, req EventRequest) (Event, error)

	ListFiles(ctx context.Context, max int) ([]File, error)
	SearchFiles(ctx context.Context, query string, max int) ([]File, error)
	// FileContent returns text content, or ImageContentPrefix followed by a
	// data URL for images.
	FileContent(ctx context.Context, fileID string) (string, error)

	// WriteSheet writes rows to the first sheet and returns the rows affected.
	WriteSheet(ctx context.Context, spreadsheetID string, rows [][]string, appendRows bool) (int, error)

	Contacts(ctx context.Context, query string, max int) ([]Contact, error)
}

// VisionDescriber turns an image into text. Failures come back as a
// descriptive string rather than an error.
type VisionDescriber interface {
	Describe(ctx context.Context, imageDataURL, prompt string) string
}

// FactExtractor pulls durable facts out of a conversation transcript.
type FactExtractor interface {
	Extract(ctx context.Context, conversation string) ([]Fact, error)
}
