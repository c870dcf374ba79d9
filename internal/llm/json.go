package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject finds the first balanced JSON object embedded in text
// and unmarshals it into out. Completion backends wrap JSON in prose or
// markdown fences; this scans for the first '{' and tracks brace depth with
// string/escape awareness, so braces inside string values don't break
// extraction. Malformed or absent JSON is a hard error: callers that need a
// structured response must fail fast rather than guess.
func ExtractJSONObject(text string, out any) error {
	raw, err := firstJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshaling extracted JSON: %w", err)
	}
	return nil
}

func firstJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}
