// Package jsonutil extracts JSON from model responses and encodes the
// newline-delimited documents used for Bedrock batch input.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripMarkdownFences removes ```json ... ``` or ``` ... ``` wrapping from text.
// Returns the content between the fences, or the original text if no fences are found.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return text
	}

	end := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			end = i
			break
		}
	}
	return strings.Join(lines[1:end], "\n")
}

// ExtractObject returns the outermost JSON object in text, from the first
// '{' to the last '}'. Prose before or after the object is dropped.
func ExtractObject(text string) (string, error) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found")
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", fmt.Errorf("no closing } found")
	}
	return text[start : end+1], nil
}

// ParseJSON strips markdown fences from a model response, extracts the JSON
// object, and unmarshals it into T.
func ParseJSON[T any](raw string) (T, error) {
	var zero T

	obj, err := ExtractObject(StripMarkdownFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(obj), &result); err != nil {
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(obj))
	}
	return result, nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
