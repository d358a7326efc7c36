package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/voicerelay/internal/config"
	"github.com/soyeahso/voicerelay/internal/domain"
	"github.com/soyeahso/voicerelay/internal/logging"
)

// DefaultVisionPrompt is used when the caller supplies no prompt.
const DefaultVisionPrompt = "Describe what you see in this image in detail."

// XAIVision describes images with an xAI vision model.
type XAIVision struct {
	client  Client
	model   string
	timeout time.Duration
	log     *logging.Logger
}

// NewXAIVision creates an xAI-backed image describer.
func NewXAIVision(client Client, model string, timeout time.Duration, log *logging.Logger) *XAIVision {
	return &XAIVision{client: client, model: model, timeout: timeout, log: log.Sub("vision")}
}

// Describe returns a text description of the image. Failures are returned
// as a readable sentence so they can be spoken back to the user.
func (v *XAIVision) Describe(ctx context.Context, imageDataURL, prompt string) string {
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	resp, err := v.client.Complete(ctx, CompletionRequest{
		Model: v.model,
		Messages: []Message{{
			Role:  RoleUser,
			Parts: []ContentPart{ImagePart(imageDataURL, "high"), TextPart(prompt)},
		}},
		MaxTokens: 1000,
	})
	if err != nil {
		v.log.Warn().Err(err).Msg("vision request failed")
		var perr *ProviderError
		if errors.As(err, &perr) && perr.Code > 0 {
			return fmt.Sprintf("Error analyzing image: %d", perr.Code)
		}
		return fmt.Sprintf("Error processing image: %v", err)
	}

	v.log.Debug().Int("chars", len(resp.Content)).Msg("image described")
	return resp.Content
}

// NewVision builds the image describer selected by cfg.Vision.Provider.
func NewVision(ctx context.Context, cfg config.Config, log *logging.Logger) (domain.VisionDescriber, error) {
	timeout := time.Duration(cfg.Vision.Timeout) * time.Second
	switch cfg.Vision.Provider {
	case "gemini":
		return NewGeminiVision(ctx, cfg.Vision.APIKey, cfg.Vision.Model, timeout, log)
	case "", "xai":
		client := NewXAIClient(cfg.Upstream.APIKey, cfg.Upstream.ChatURL, cfg.Vision.Model, timeout)
		return NewXAIVision(client, cfg.Vision.Model, timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Vision.Provider)
	}
}

// decodeDataURL splits a base64 data URL into its MIME type and bytes.
func decodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URL is not base64 encoded")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mime, data, nil
}
