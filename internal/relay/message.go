// Package relay pumps a realtime voice session between a client socket and
// the upstream model, augmenting it with memory, documents and productivity
// data on the way through.
package relay

import (
	"encoding/json"
	"strings"
)

// Inbound is a classified client message: ControlCommand, UserContent or Opaque.
type Inbound interface{ inbound() }

// Outbound is a classified upstream message: UserTranscript,
// AssistantTranscript, FunctionCallRequest or Opaque.
type Outbound interface{ outbound() }

// Opaque is any message the relay passes through without interpretation.
type Opaque struct {
	Raw []byte
}

// ControlCommand is a client request answered by the relay itself.
type ControlCommand struct {
	Name string
	Args map[string]any
}

// UserContent is a user message item. Raw is kept so the message can be
// forwarded or rewritten without losing fields the relay does not model.
type UserContent struct {
	Parts []ContentPart
	Raw   []byte
}

// PartKind discriminates content parts.
type PartKind int

const (
	PartOther PartKind = iota
	PartText
	PartImage
)

// ContentPart is one element of a user message's content array.
type ContentPart struct {
	Kind    PartKind
	Text    string
	DataURL string
}

// UserTranscript is a completed transcription of the user's speech.
type UserTranscript struct {
	Text string
}

// AssistantTranscript is the transcript of a finished assistant reply.
type AssistantTranscript struct {
	Text string
}

// FunctionCallRequest asks the relay to run a capability.
type FunctionCallRequest struct {
	CallID    string
	Name      string
	Arguments string
}

func (Opaque) inbound()               {}
func (Opaque) outbound()              {}
func (ControlCommand) inbound()       {}
func (UserContent) inbound()          {}
func (UserTranscript) outbound()      {}
func (AssistantTranscript) outbound() {}
func (FunctionCallRequest) outbound() {}

// Wire message types.
const (
	TypeItemCreate          = "conversation.item.create"
	TypeResponseCreate      = "response.create"
	TypeSessionUpdate       = "session.update"
	TypeInputTranscription  = "conversation.item.input_audio_transcription.completed"
	TypeAudioTranscriptDone = "response.audio_transcript.done"
	TypeFunctionCallDone    = "response.function_call_arguments.done"
	typeFunctionCallAlias   = "function_call_arguments_done"
)

// controlCommands lists the message types the relay answers itself.
var controlCommands = map[string]bool{
	CmdKBStore:     true,
	CmdKBList:      true,
	CmdKBDelete:    true,
	CmdEmails:      true,
	CmdFiles:       true,
	CmdFileContent: true,
	CmdCalendar:    true,
	CmdContacts:    true,
}

// messageType reads the discriminator, accepting "kind" as an alias.
func messageType(m map[string]any) string {
	if t, ok := m["type"].(string); ok && t != "" {
		return t
	}
	t, _ := m["kind"].(string)
	return t
}

func decodeObject(raw []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

// ClassifyInbound classifies a client message. It never fails: anything it
// does not recognise is Opaque.
func ClassifyInbound(raw []byte) Inbound {
	m, ok := decodeObject(raw)
	if !ok {
		return Opaque{Raw: raw}
	}

	typ := messageType(m)
	if controlCommands[typ] {
		args := make(map[string]any, len(m))
		for k, v := range m {
			if k != "type" && k != "kind" {
				args[k] = v
			}
		}
		return ControlCommand{Name: typ, Args: args}
	}

	if typ != TypeItemCreate {
		return Opaque{Raw: raw}
	}
	item, _ := m["item"].(map[string]any)
	if item == nil || item["type"] != "message" || item["role"] != "user" {
		return Opaque{Raw: raw}
	}
	content, _ := item["content"].([]any)
	parts := make([]ContentPart, len(content))
	for i, c := range content {
		parts[i] = classifyPart(c)
	}
	return UserContent{Parts: parts, Raw: raw}
}

func classifyPart(v any) ContentPart {
	c, _ := v.(map[string]any)
	switch c["type"] {
	case "input_text":
		text, _ := c["text"].(string)
		return ContentPart{Kind: PartText, Text: text}
	case "image_url":
		img, _ := c["image_url"].(map[string]any)
		url, _ := img["url"].(string)
		if strings.HasPrefix(url, "data:image") {
			return ContentPart{Kind: PartImage, DataURL: url}
		}
	}
	return ContentPart{Kind: PartOther}
}

// ClassifyOutbound classifies an upstream message.
func ClassifyOutbound(raw []byte) Outbound {
	m, ok := decodeObject(raw)
	if !ok {
		return Opaque{Raw: raw}
	}

	switch messageType(m) {
	case TypeInputTranscription:
		if text := transcript(m); text != "" {
			return UserTranscript{Text: text}
		}
	case TypeAudioTranscriptDone:
		if text := transcript(m); text != "" {
			return AssistantTranscript{Text: text}
		}
	case TypeFunctionCallDone, typeFunctionCallAlias:
		req := FunctionCallRequest{}
		req.CallID, _ = m["call_id"].(string)
		req.Name, _ = m["name"].(string)
		req.Arguments, _ = m["arguments"].(string)
		return req
	}
	return Opaque{Raw: raw}
}

func transcript(m map[string]any) string {
	s, _ := m["transcript"].(string)
	return strings.TrimSpace(s)
}

// Text returns the non-empty text parts joined by newlines.
func (u UserContent) Text() string {
	var texts []string
	for _, p := range u.Parts {
		if p.Kind == PartText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// HasImages reports whether any part is an image to describe.
func (u UserContent) HasImages() bool {
	for _, p := range u.Parts {
		if p.Kind == PartImage {
			return true
		}
	}
	return false
}
