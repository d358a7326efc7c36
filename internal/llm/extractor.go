package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
)

const extractionPrompt = `
You are an analytical fact extractor for a voice assistant.
Read a transcript of a recent conversation between the assistant and the User, and extract concrete facts about the User.

A "fact" is semi-permanent information that is useful in future conversations (e.g. name, preferences, family members, location, pets, the car they drive, habits).
Do NOT extract transient information (e.g. "User is testing an app right now", "User just woke up", "User is having a good day").
Do NOT extract conversational filler or thoughts.
Do NOT invent anything. Only extract what the user explicitly states.

Output your findings in strict JSON with this structure:
{
    "new_facts": [
        {"subject": "User", "attribute": "favorite color", "value": "blue"},
        {"subject": "User", "attribute": "sibling name", "value": "John"}
    ]
}

The values above only illustrate the structure. Do not output "blue" or "John" unless the user mentions them.

If no new facts are found, return exactly:
{
    "new_facts": []
}

Output ONLY valid JSON. No markdown formatting or extra text.
`

// Extractor pulls profile facts out of transcripts with a JSON-mode model.
type Extractor struct {
	client      Client
	model       string
	temperature float64
	log         *logging.Logger
}

// NewExtractor creates a fact extractor.
func NewExtractor(client Client, model string, temperature float64, log *logging.Logger) *Extractor {
	return &Extractor{client: client, model: model, temperature: temperature, log: log.Sub("extractor")}
}

type extractionResult struct {
	NewFacts []domain.Fact `json:"new_facts"`
}

// Extract returns the facts found in conversation. A reply that is not
// valid JSON yields no facts and no error.
func (e *Extractor) Extract(ctx context.Context, conversation string) ([]domain.Fact, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, nil
	}

	resp, err := e.client.Complete(ctx, CompletionRequest{
		Model: e.model,
		Messages: []Message{
			{Role: RoleSystem, Content: extractionPrompt},
			{Role: RoleUser, Content: "Transcript:\n\n" + conversation},
		},
		Temperature: Float64(e.temperature),
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("fact extraction: %w", err)
	}

	facts, err := parseFacts(resp.Content)
	if err != nil {
		e.log.Warn().Err(err).Str("content", truncate(resp.Content, 200)).Msg("could not parse extraction reply")
		return nil, nil
	}
	e.log.Debug().Int("facts", len(facts)).Msg("extraction complete")
	return facts, nil
}

// parseFacts decodes the model reply, tolerating a fenced code block and
// dropping facts with an empty attribute or value.
func parseFacts(content string) ([]domain.Fact, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result extractionResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return nil, err
	}

	facts := make([]domain.Fact, 0, len(result.NewFacts))
	for _, f := range result.NewFacts {
		f.Subject = strings.TrimSpace(f.Subject)
		f.Attribute = strings.TrimSpace(f.Attribute)
		f.Value = strings.TrimSpace(f.Value)
		if f.Attribute == "" || f.Value == "" {
			continue
		}
		if f.Subject == "" {
			f.Subject = "User"
		}
		facts = append(facts, f)
	}
	return facts, nil
}
