package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/llm"
	"github.com/soyeahso/voicerelay/internal/logging"
	"github.com/soyeahso/voicerelay/internal/tools"
)

const (
	// minContextLen is the length a search result must exceed to be injected.
	minContextLen = 50

	memoryContextPrefix = "[Relevant context from past conversations]"
)

// Providers are the side-effect collaborators of a session. Vectors,
// Knowledge and Vision may be nil; Tools may be tools.Unavailable.
type Providers struct {
	Vectors   domain.VectorIndex
	Knowledge domain.KnowledgeBase
	Tools     domain.ToolProvider
	Vision    domain.VisionDescriber
}

// Outcome is what the pipeline decided for one inbound message. Inject is
// sent upstream before Forward; a nil Forward means the message stops here.
type Outcome struct {
	Inject  [][]byte
	Forward []byte
	Reply   []byte
}

// Pipeline augments inbound client messages.
type Pipeline struct {
	p        Providers
	k        int
	handlers map[string]commandFunc
	log      *logging.Logger
}

// NewPipeline creates a pipeline. k bounds vector and document search results.
func NewPipeline(p Providers, k int, log *logging.Logger) *Pipeline {
	if p.Tools == nil {
		p.Tools = tools.Unavailable{}
	}
	if k <= 0 {
		k = 5
	}
	pl := &Pipeline{p: p, k: k, log: log.Sub("pipeline")}
	pl.handlers = pl.commands()
	return pl
}

// Process handles one classified inbound message. Provider failures,
// panics included, are logged and never prevent the forward.
func (pl *Pipeline) Process(ctx context.Context, in Inbound) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			pl.log.Error().Interface("panic", p).Msg("augmentation panicked")
			out = fallbackOutcome(in)
		}
	}()

	switch m := in.(type) {
	case ControlCommand:
		return Outcome{Reply: pl.runCommand(ctx, m)}
	case UserContent:
		return pl.userContent(ctx, m)
	case Opaque:
		return Outcome{Forward: m.Raw}
	default:
		return Outcome{}
	}
}

// fallbackOutcome is the result of a message whose handling panicked: user
// content goes upstream unchanged, a control command gets an error reply.
func fallbackOutcome(in Inbound) Outcome {
	switch m := in.(type) {
	case ControlCommand:
		return Outcome{Reply: reply(commandErrorType(m.Name), map[string]any{"error": fmt.Sprintf("%s failed unexpectedly", m.Name)})}
	case UserContent:
		return Outcome{Forward: m.Raw}
	case Opaque:
		return Outcome{Forward: m.Raw}
	}
	return Outcome{}
}

// guarded calls fn, turning a panic into an error.
func guarded[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

func (pl *Pipeline) userContent(ctx context.Context, u UserContent) Outcome {
	out := Outcome{Forward: u.Raw}

	for _, part := range u.Parts {
		if part.Kind == PartText && strings.TrimSpace(part.Text) != "" {
			out.Inject = append(out.Inject, pl.contextFor(ctx, part.Text)...)
		}
	}

	if !u.HasImages() {
		return out
	}
	replacements := make(map[int]string)
	for i, part := range u.Parts {
		if part.Kind == PartImage {
			replacements[i] = imageText(pl.describe(ctx, part.DataURL))
		}
	}
	rewritten, err := rewriteParts(u.Raw, replacements)
	if err != nil {
		pl.log.Warn().Err(err).Msg("image rewrite failed, forwarding original")
		return out
	}
	pl.log.Debug().Int("images", len(replacements)).Msg("images replaced with descriptions")
	out.Forward = rewritten
	return out
}

// contextFor runs vector search, then document search, then keyword
// triggers, and returns one system message per non-empty result.
func (pl *Pipeline) contextFor(ctx context.Context, text string) [][]byte {
	var msgs [][]byte

	if pl.p.Vectors != nil {
		found, err := guarded(func() (string, error) { return pl.p.Vectors.Search(ctx, text, pl.k) })
		switch {
		case err != nil:
			pl.log.Warn().Err(err).Msg("memory search failed")
		case len(found) > minContextLen:
			msgs = append(msgs, systemMessage(memoryContextPrefix+found))
			pl.log.Debug().Int("chars", len(found)).Msg("memory context injected")
		}
	}

	if pl.p.Knowledge != nil {
		found, err := guarded(func() (string, error) { return pl.p.Knowledge.Search(ctx, text, pl.k) })
		switch {
		case err != nil:
			pl.log.Warn().Err(err).Msg("document search failed")
		case len(found) > minContextLen:
			msgs = append(msgs, systemMessage(found))
			pl.log.Debug().Int("chars", len(found)).Msg("document context injected")
		}
	}

	lower := strings.ToLower(text)
	for _, t := range triggers {
		if !t.matches(lower) {
			continue
		}
		found, err := guarded(func() (string, error) { return t.fetch(ctx, pl.p.Tools) })
		if err != nil {
			pl.log.Warn().Err(err).Str("trigger", t.name).Msg("keyword lookup failed")
			continue
		}
		if found != "" {
			msgs = append(msgs, systemMessage(found))
			pl.log.Debug().Str("trigger", t.name).Msg("keyword context injected")
		}
	}
	return msgs
}

func (pl *Pipeline) describe(ctx context.Context, dataURL string) string {
	if pl.p.Vision == nil {
		return "Error processing image: no vision backend configured"
	}
	desc, err := guarded(func() (string, error) {
		return pl.p.Vision.Describe(ctx, dataURL, llm.DefaultVisionPrompt), nil
	})
	if err != nil {
		pl.log.Error().Err(err).Msg("image description failed")
		return "Error processing image: " + err.Error()
	}
	return desc
}
