package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONArray extracts a JSON array of objects from an LLM response.
// It tries a direct parse first, then the first fenced code block. Returns
// nil if no array can be recovered; the caller treats nil as a parse
// failure and retries or falls back.
func ParseJSONArray(text string) []map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if result := tryParseArray(text); result != nil {
		return result
	}

	if inner := extractFencedBlock(text); inner != "" {
		return tryParseArray(inner)
	}

	return nil
}

// ParseJSONObject is the single-object variant of ParseJSONArray.
func ParseJSONObject(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	if inner := extractFencedBlock(text); inner != "" {
		result = nil
		if err := json.Unmarshal([]byte(inner), &result); err == nil {
			return result
		}
	}

	return nil
}

func tryParseArray(text string) []map[string]any {
	var result []map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil
	}
	return result
}

// extractFencedBlock returns the contents of the first ``` fenced block,
// or "" if none is found.
func extractFencedBlock(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return ""
	}
	rest := text[start+3:]

	// Skip the language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
