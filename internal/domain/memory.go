package domain

import (
	"strings"
	"time"
)

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a recordable role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one recorded utterance in the long-term conversation log.
// Turns are append-only.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Line renders the turn the way it appears in prompts: "role: text".
func (t Turn) Line() string {
	return string(t.Role) + ": " + t.Text
}

// Fact is a durable, attribute-keyed claim about the user.
type Fact struct {
	Subject   string `json:"subject"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

// Key is the case-insensitive identity of a fact. At most one fact per key
// is stored; a newer value for the same key overwrites the old one.
func (f Fact) Key() string {
	return strings.ToLower(strings.TrimSpace(f.Attribute))
}

// Document describes a knowledge-base entry.
type Document struct {
	Name    string    `json:"name"`
	Type    string    `json:"type"`
	Chunks  int       `json:"chunks"`
	AddedAt time.Time `json:"added_at"`
}

// FormatTurns renders turns one per line, in order.
func FormatTurns(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		sb.WriteString(t.Line())
		sb.WriteByte('\n')
	}
	return sb.String()
}
