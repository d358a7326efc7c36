package relay

import (
	"context"
	"encoding/json"
)

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Voice                   string            `json:"voice"`
	Modalities              []string          `json:"modalities"`
	Instructions            string            `json:"instructions"`
	InputAudioTranscription map[string]string `json:"input_audio_transcription"`
	// TurnDetection is always null: the client commits audio itself.
	TurnDetection any   `json:"turn_detection"`
	Tools         []any `json:"tools"`
}

// builtinTools are search tools the upstream service runs itself.
var builtinTools = []string{"web_search", "x_search"}

// sessionUpdate builds the one session.update sent while connecting.
func (r *Relay) sessionUpdate(ctx context.Context) ([]byte, error) {
	defs := r.registry.Definitions()
	toolList := make([]any, 0, len(builtinTools)+len(defs))
	for _, t := range builtinTools {
		toolList = append(toolList, map[string]string{"type": t})
	}
	for _, d := range defs {
		toolList = append(toolList, d)
	}

	return json.Marshal(sessionUpdate{
		Type: TypeSessionUpdate,
		Session: sessionConfig{
			Voice:                   r.opts.Voice,
			Modalities:              []string{"audio", "text"},
			Instructions:            r.instructions.Build(ctx),
			InputAudioTranscription: map[string]string{"model": r.opts.Transcription},
			Tools:                   toolList,
		},
	})
}
