package cv

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// SchemaViolations checks a JSON document against the structured CV schema and returns
// one message per violation. A schema that fails to load is reported as a single violation.
func SchemaViolations(document []byte) []string {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(document))
	if err != nil {
		return []string{fmt.Sprintf("schema check failed: %v", err)}
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		violations = append(violations, fmt.Sprintf("%s: %s", field, desc.Description()))
	}
	return violations
}
