package relay

import (
	"encoding/json"
	"fmt"
)

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type messageItem struct {
	Type    string     `json:"type"`
	Role    string     `json:"role"`
	Content []textPart `json:"content"`
}

type functionOutputItem struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

type itemCreate struct {
	Type string `json:"type"`
	Item any    `json:"item"`
}

// systemMessage builds an auxiliary system-role item carrying text.
func systemMessage(text string) []byte {
	return mustMarshal(itemCreate{
		Type: TypeItemCreate,
		Item: messageItem{
			Type:    "message",
			Role:    "system",
			Content: []textPart{{Type: "input_text", Text: text}},
		},
	})
}

// functionOutput builds the function_call_output item. output is already
// JSON-encoded and travels as a string.
func functionOutput(callID, output string) []byte {
	return mustMarshal(itemCreate{
		Type: TypeItemCreate,
		Item: functionOutputItem{Type: "function_call_output", CallID: callID, Output: output},
	})
}

// responseCreate asks upstream to produce a response.
func responseCreate() []byte {
	return []byte(`{"type":"response.create"}`)
}

// reply encodes a client message of the given type.
func reply(typ string, fields map[string]any) []byte {
	m := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		m[k] = v
	}
	m["type"] = typ
	return mustMarshal(m)
}

// imageText is the text that replaces an image in a user message.
func imageText(description string) string {
	return fmt.Sprintf("[I'm showing you an image. Here's what I see: %s. Please respond to this image.]", description)
}

// rewriteParts replaces content parts of a user message item. Parts not in
// replacements are left as they were.
func rewriteParts(raw []byte, replacements map[int]string) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding user content: %w", err)
	}
	item, _ := m["item"].(map[string]any)
	content, _ := item["content"].([]any)
	if item == nil || content == nil {
		return nil, fmt.Errorf("user content has no content array")
	}
	for i, text := range replacements {
		if i < 0 || i >= len(content) {
			continue
		}
		content[i] = map[string]any{"type": "input_text", "text": text}
	}
	return json.Marshal(m)
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("relay: marshal %T: %v", v, err))
	}
	return b
}
