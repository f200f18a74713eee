package cv

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Decode converts a loosely typed document into a StructuredCV. Numbers encoded as strings are
// accepted; entries that still cannot be decoded are dropped and reported as warnings.
// The returned record always has every section present.
func Decode(raw map[string]any) (*StructuredCV, []string) {
	record := Empty("")
	record.Source = ""

	var warnings []string

	if name, ok := raw["name"].(string); ok {
		record.Name = strings.TrimSpace(name)
	}

	warnings = append(warnings, decodeSection(raw, "education", &record.Education)...)
	warnings = append(warnings, decodeSection(raw, "experience", &record.Experience)...)
	warnings = append(warnings, decodeSection(raw, "publications", &record.Publications)...)
	warnings = append(warnings, decodeSection(raw, "awards", &record.Awards)...)

	return record, warnings
}

func decodeSection[T any](raw map[string]any, key string, target *[]T) []string {
	value, ok := raw[key]
	if !ok || value == nil {
		return []string{fmt.Sprintf("%s: section missing", key)}
	}

	items, ok := value.([]any)
	if !ok {
		return []string{fmt.Sprintf("%s: expected a list, got %T", key, value)}
	}

	var warnings []string
	for idx, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s[%d]: expected an object, got %T", key, idx, item))
			continue
		}

		var entry T
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &entry,
			TagName:          "json",
			WeaklyTypedInput: true,
		})
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s[%d]: %v", key, idx, err))
			continue
		}

		if err := decoder.Decode(dropBlank(fields)); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s[%d]: %v", key, idx, err))
			continue
		}

		*target = append(*target, entry)
	}

	return warnings
}

// dropBlank removes null and blank-string values so that weak decoding leaves optional
// numbers unset instead of turning "" into zero.
func dropBlank(fields map[string]any) map[string]any {
	cleaned := make(map[string]any, len(fields))
	for key, value := range fields {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			trimmed := strings.TrimSpace(v)
			if trimmed == "" || strings.EqualFold(trimmed, "null") {
				continue
			}
			cleaned[key] = trimmed
		default:
			cleaned[key] = value
		}
	}
	return cleaned
}
