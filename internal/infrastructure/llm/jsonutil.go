package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/knowledge-pipeline/internal/core/domain"
)

// extractJSONObject pulls the first JSON object out of a model reply,
// tolerating code fences and surrounding prose.
func extractJSONObject(raw string) string {
	text := strings.TrimSpace(raw)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		}
	}

	depth, start := 0, -1
	inString, escaped := false, false
	for i, ch := range text {
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
			if start >= 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return text
}

// decodeJSON unmarshals the reply into out after checking that every
// required key is present and not null.
func decodeJSON(operation, raw string, out any, required ...string) error {
	body := extractJSONObject(raw)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &keys); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, operation, err)
	}
	for _, key := range required {
		v, ok := keys[key]
		if !ok || string(v) == "null" {
			return domain.WrapError(domain.ErrMalformedResponse, operation, fmt.Errorf("missing key %q", key))
		}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return domain.WrapError(domain.ErrMalformedResponse, operation, err)
	}
	return nil
}
