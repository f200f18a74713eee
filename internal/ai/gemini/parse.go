package gemini

import (
	"encoding/json"
	"regexp"
	"strings"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// extractJSON strips markdown code fences around a model answer.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// repairJSON keeps the text between the first '{' and the last '}' and drops
// commas that directly precede a closing brace or bracket.
func repairJSON(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return trailingCommaRe.ReplaceAllString(raw[start:end+1], "$1"), true
}

// parseTolerant decodes a model answer into a JSON object. It tries a strict parse,
// then a repaired one. The returned string is the document that parsed.
func parseTolerant(raw string) (map[string]any, string, bool) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil && data != nil {
		return data, cleaned, true
	}

	repaired, ok := repairJSON(cleaned)
	if !ok {
		return nil, "", false
	}

	data = nil
	if err := json.Unmarshal([]byte(repaired), &data); err != nil || data == nil {
		return nil, "", false
	}
	return data, repaired, true
}
