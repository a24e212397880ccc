package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/openai/openai-go/v2"
)

func TestDecodeJSONObject(t *testing.T) {
	var result map[string]any
	if err := DecodeJSON(`{"key": "value", "num": 42}`, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestDecodeJSONWithPlainFence(t *testing.T) {
	var result map[string]any
	if err := DecodeJSON("```\n{\"key\": \"value\"}\n```", &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
}

func TestDecodeJSONInvalid(t *testing.T) {
	var items []map[string]any
	if err := DecodeJSON("not json at all", &items); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if err := DecodeJSON("  ", &items); err == nil {
		t.Error("expected error for empty response")
	}
	if err := DecodeJSON(`{"a":1}`, &items); err == nil {
		t.Error("expected error decoding an object into a slice")
	}
}

func TestDecodeJSONArray(t *testing.T) {
	var items []struct {
		Title string `json:"title"`
	}
	err := DecodeJSON("Here:\n```json\n[{\"title\":\"A\"},{\"title\":\"B\"}]\n```", &items)
	if err == nil {
		t.Fatal("expected leading prose to fail decoding")
	}

	if err := DecodeJSON("```json\n[{\"title\":\"A\"},{\"title\":\"B\"}]\n```", &items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 || items[1].Title != "B" {
		t.Errorf("expected 2 items, got %+v", items)
	}
}

func TestStripCodeFences(t *testing.T) {
	if got := StripCodeFences("  ```json\n[]\n```  "); got != "[]" {
		t.Errorf("expected '[]', got %q", got)
	}
}

func TestSettingsConfigured(t *testing.T) {
	if (Settings{Endpoint: "https://x"}).Configured() {
		t.Error("expected missing key to be unconfigured")
	}
	if !(Settings{Endpoint: "https://x", APIKey: "k"}).Configured() {
		t.Error("expected endpoint and key to be configured")
	}
}

func TestCompleteSendsSystemAndUser(t *testing.T) {
	var got openai.ChatCompletionNewParams
	c := &OpenAIClient{
		model: "test-model",
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			got = params
			return &openai.ChatCompletion{
				Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "[]"}}},
			}, nil
		},
	}

	text, err := c.Complete(context.Background(), "sys", "usr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "[]" {
		t.Errorf("expected '[]', got %q", text)
	}
	if string(got.Model) != "test-model" {
		t.Errorf("expected model 'test-model', got %q", got.Model)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got.Messages))
	}
	if got.Messages[0].OfSystem == nil || got.Messages[1].OfUser == nil {
		t.Error("expected system then user message")
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	c := &OpenAIClient{
		model: "m",
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return &openai.ChatCompletion{}, nil
		},
	}
	if _, err := c.Complete(context.Background(), "s", "u"); !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestCompleteTransportError(t *testing.T) {
	boom := errors.New("boom")
	c := &OpenAIClient{
		model: "m",
		complete: func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
			return nil, boom
		},
	}
	if _, err := c.Complete(context.Background(), "s", "u"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestNewOpenAIClientDefaults(t *testing.T) {
	c := NewOpenAIClient(Settings{Endpoint: "https://api.example.com/v1/", APIKey: "k"})
	if c.Model() != DefaultModel {
		t.Errorf("expected default model, got %q", c.Model())
	}
}
