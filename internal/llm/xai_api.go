package llm

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// XAIClient is a direct HTTP client for the xAI chat completions API.
type XAIClient struct {
	apiKey  string
	model   string
	chatURL string
	client  *http.Client
}

// NewXAIClient creates a new xAI chat client. model is used when a request
// does not name one.
func NewXAIClient(apiKey, chatURL, model string, timeout time.Duration) *XAIClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &XAIClient{
		apiKey:  apiKey,
		model:   model,
		chatURL: chatURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming completion request.
func (c *XAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var result xaiChatResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.client, c.Name(), c.chatURL, headers, c.buildRequestBody(req), &result); err != nil {
		return nil, err
	}
	return c.responseToCompletion(&result, time.Since(start)), nil
}

// Name returns the provider name.
func (c *XAIClient) Name() string {
	return "xai"
}

func (c *XAIClient) buildRequestBody(req CompletionRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := map[string]any{
		"model":    model,
		"messages": req.Messages,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.JSONMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}
	return body
}

func (c *XAIClient) responseToCompletion(resp *xaiChatResponse, duration time.Duration) *CompletionResponse {
	var content strings.Builder
	stop := ""
	if len(resp.Choices) > 0 {
		content.WriteString(resp.Choices[0].Message.Content)
		stop = resp.Choices[0].FinishReason
	}

	return &CompletionResponse{
		Content:    content.String(),
		StopReason: stop,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Model:    resp.Model,
		Duration: duration,
	}
}

// API response structures

type xaiChatResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []xaiChoice `json:"choices"`
	Usage   xaiUsage    `json:"usage"`
}

type xaiChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type xaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}
