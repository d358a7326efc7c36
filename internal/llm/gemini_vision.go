package llm

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/soyeahso/voicerelay/internal/logging"
)

// GeminiVision describes images with a Gemini multimodal model.
type GeminiVision struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *logging.Logger
}

// NewGeminiVision creates a Gemini-backed image describer.
func NewGeminiVision(ctx context.Context, apiKey, model string, timeout time.Duration, log *logging.Logger) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiVision{client: client, model: model, timeout: timeout, log: log.Sub("vision")}, nil
}

// Describe returns a text description of the image, or a readable error.
func (g *GeminiVision) Describe(ctx context.Context, imageDataURL, prompt string) string {
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	image, err := imagePart(imageDataURL)
	if err != nil {
		return fmt.Sprintf("Error processing image: %v", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{image, genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.log.Warn().Err(err).Msg("gemini vision request failed")
		return fmt.Sprintf("Error processing image: %v", err)
	}

	text := res.Text()
	g.log.Debug().Int("chars", len(text)).Msg("image described")
	return text
}

// Name returns the provider name.
func (g *GeminiVision) Name() string {
	return "gemini"
}

// imagePart inlines data URLs and references remote images by URI.
func imagePart(ref string) (*genai.Part, error) {
	if strings.HasPrefix(ref, "data:") {
		mimeType, data, err := decodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return genai.NewPartFromBytes(data, mimeType), nil
	}
	mimeType := mime.TypeByExtension(path.Ext(ref))
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return genai.NewPartFromURI(ref, mimeType), nil
}
