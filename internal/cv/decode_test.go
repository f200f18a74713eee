package cv

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeWeaklyTypedEntries(t *testing.T) {
	var raw map[string]any
	payload := `{
		"education": [{"degree": "PhD", "university": "MIT", "gpa": "3.9", "scale": 4, "start": null}],
		"experience": [{"title": "Engineer", "start": "2020-01", "end": "currently working", "duration_months": ""}],
		"publications": [{"title": "Paper", "venue": "Nature", "year": "2021", "authors": "A. Author"}],
		"awards": [{"title": "Best paper", "year": 2022}, "not an object"]
	}`
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	record, warnings := Decode(raw)

	if len(record.Education) != 1 || record.Education[0].GPA == nil || *record.Education[0].GPA != 3.9 {
		t.Fatalf("unexpected education: %+v", record.Education)
	}
	if record.Experience[0].DurationMonths != nil {
		t.Fatalf("blank duration must stay unset")
	}
	if got := record.Publications[0]; got.Year == nil || *got.Year != 2021 || len(got.Authors) != 1 {
		t.Fatalf("unexpected publication: %+v", got)
	}
	if len(record.Awards) != 1 {
		t.Fatalf("expected invalid award to be dropped, got %d awards", len(record.Awards))
	}
	if len(warnings) != 1 || !strings.HasPrefix(warnings[0], "awards[1]") {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestDecodeMissingSectionsStayPresent(t *testing.T) {
	record, warnings := Decode(map[string]any{"education": "oops"})

	if record.Education == nil || record.Experience == nil || record.Publications == nil || record.Awards == nil {
		t.Fatalf("expected all sections to be present: %+v", record)
	}
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warnings, got %v", warnings)
	}
}

func TestSchemaViolations(t *testing.T) {
	if v := SchemaViolations([]byte(`{"education":[],"experience":[],"publications":[],"awards":[]}`)); len(v) != 0 {
		t.Fatalf("expected valid document, got %v", v)
	}

	v := SchemaViolations([]byte(`{"education":{},"experience":[],"publications":[]}`))
	if len(v) != 2 {
		t.Fatalf("expected 2 violations, got %v", v)
	}
}
