// internal/llmutil/parser.go
package llmutil

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// codeBlockRegex extracts content wrapped in a markdown fence. \x60 is a backtick.
var codeBlockRegex = regexp.MustCompile("(?s)^\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60$")

// ErrNotObject is returned when the payload is not a bare JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// DecodeObject decodes exactly one JSON object into T. Unlike a lenient LLM
// parser it does not search for an object inside prose or fences: the whole
// payload, minus surrounding whitespace, must be the object. Trailing data is
// an error.
func DecodeObject[T any](payload string) (*T, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotObject)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: starts with %q", ErrNotObject, Truncate(string(trimmed), 20))
	}

	var result T
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON object: %w. Payload (truncated): %s", err, Truncate(string(trimmed), 500))
	}
	return &result, nil
}

// StripCodeFence removes a single markdown fence (```json ... ```) wrapping
// the whole content. Content without a fence is returned trimmed.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	if matches := codeBlockRegex.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	return content
}

// Truncate shortens s to maxLen bytes for log and error output.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte truncation; rune boundaries are not important for diagnostics.
	return s[:maxLen] + "..."
}
