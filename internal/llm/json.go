package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes markdown code fence markers anywhere in text.
func StripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// DecodeJSON strips code fences and unmarshals the remaining text into v.
func DecodeJSON(text string, v any) error {
	text = StripCodeFences(text)
	if text == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("parsing LLM response as JSON: %w", err)
	}
	return nil
}
