// Package llm talks to OpenAI-compatible chat completion endpoints.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-3.5-turbo"

// ErrEmptyCompletion is returned when the endpoint answers without content.
var ErrEmptyCompletion = errors.New("no content in completion response")

// ChatClient sends one system+user exchange and returns the reply text.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Settings configures an OpenAI-compatible endpoint.
type Settings struct {
	Endpoint string // base URL, e.g. https://api.openai.com/v1
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Configured reports whether both endpoint and key are set.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.Endpoint) != "" && strings.TrimSpace(s.APIKey) != ""
}

type completionFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

// OpenAIClient is a ChatClient backed by the openai-go SDK.
type OpenAIClient struct {
	model    string
	complete completionFunc
}

// NewOpenAIClient creates a client for the given endpoint. Retries are left
// to the caller.
func NewOpenAIClient(s Settings) *OpenAIClient {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	model := strings.TrimSpace(s.Model)
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(
		option.WithAPIKey(s.APIKey),
		option.WithBaseURL(strings.TrimRight(s.Endpoint, "/")+"/"),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	)
	return &OpenAIClient{
		model: model,
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return client.Chat.Completions.New(ctx, params)
		},
	}
}

// Model returns the model name requests are sent with.
func (c *OpenAIClient) Model() string { return c.model }

// Complete sends the exchange and returns the first choice's content.
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := c.complete(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err == nil && (resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "") {
		err = ErrEmptyCompletion
	}
	metrics.RecordLLMRequest(time.Since(start), err)
	if err != nil {
		logging.Warn().Err(err).Str("model", c.model).Msg("Chat completion failed")
		return "", fmt.Errorf("chat completion: %w", err)
	}

	logging.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(resp.Choices[0].Message.Content)).
		Msg("Chat completion received")
	return resp.Choices[0].Message.Content, nil
}
