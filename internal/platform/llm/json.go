package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON recovers a JSON object from a model completion that may wrap it
// in markdown code fences or surrounding prose. It makes exactly one recovery
// attempt: strip fences, then take the first balanced top-level object. If
// that slice still does not parse, the error is returned to the caller; there
// is no second round trip to the model.
func ExtractJSON(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(text)

	// Fast path: the completion is already pure JSON.
	if json.Valid([]byte(s)) {
		return json.RawMessage(s), nil
	}

	// Strip ```json … ``` fences.
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
		s = strings.TrimSpace(s)
	}

	// Take the first balanced object, tracking strings so braces inside
	// answer text don't throw the count off.
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in model output")
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return nil, fmt.Errorf("recovered text is not valid JSON")
				}
				return json.RawMessage(candidate), nil
			}
		}
	}
	return nil, fmt.Errorf("unbalanced JSON object in model output")
}
