package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/cv"
)

type stubGenerator struct {
	resp    Response
	err     error
	prompts []string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (Response, error) {
	s.prompts = append(s.prompts, prompt)
	return s.resp, s.err
}

const validAnswer = `{
  "name": "Ada Lovelace",
  "education": [{"degree": "PhD", "field": "CS", "university": "MIT", "country": "US", "start": "2015-09", "end": "2019-06", "gpa": "3.9", "scale": 4}],
  "experience": [{"title": "Researcher", "org": "Lab", "start": "2019-07", "end": "currently working", "duration_months": null, "domain": "ML"}],
  "publications": [],
  "awards": [{"title": "Best Paper", "issuer": "NeurIPS", "year": 2021, "type": "paper"}]
}`

func TestExtractStructuredParsesModelAnswer(t *testing.T) {
	gen := &stubGenerator{resp: Response{Text: validAnswer, Model: "primary"}}
	ex := NewExtractor(gen, zap.NewNop(), 0)

	record, err := ex.ExtractStructured(context.Background(), "CV text here", "ada.pdf")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if record.Name != "Ada Lovelace" {
		t.Fatalf("unexpected name: %q", record.Name)
	}
	if record.Source != cv.SourceModel {
		t.Fatalf("expected source %q, got %q", cv.SourceModel, record.Source)
	}
	if len(record.Education) != 1 || record.Education[0].GPA == nil || *record.Education[0].GPA != 3.9 {
		t.Fatalf("unexpected education: %+v", record.Education)
	}
	if record.Experience[0].End != cv.OpenEndedSentinel {
		t.Fatalf("unexpected experience end: %q", record.Experience[0].End)
	}
	if record.Publications == nil || len(record.Publications) != 0 {
		t.Fatalf("expected empty non-nil publications, got %#v", record.Publications)
	}

	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "CV text here") || !strings.Contains(prompt, `"end": "currently working"`) {
		t.Fatalf("prompt misses document or open-ended rule:\n%s", prompt)
	}
}

func TestExtractStructuredRepairsTrailingCommas(t *testing.T) {
	raw := "Sure! Here is the JSON:\n```json\n{\"education\": [], \"experience\": [{\"title\": \"Dev\", \"org\": \"X\",},], \"publications\": [], \"awards\": [],}\n```"
	gen := &stubGenerator{resp: Response{Text: raw, Model: "primary"}}

	record, err := NewExtractor(gen, zap.NewNop(), 0).ExtractStructured(context.Background(), "text", "bob.docx")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(record.Experience) != 1 || record.Experience[0].Title != "Dev" {
		t.Fatalf("unexpected experience: %+v", record.Experience)
	}
	if record.Name != "bob.docx" {
		t.Fatalf("expected name to fall back to hint, got %q", record.Name)
	}
}

func TestExtractStructuredSoftFailsOnGarbage(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	gen := &stubGenerator{resp: Response{Text: "I cannot help with that.", Model: "primary"}}

	record, err := NewExtractor(gen, zap.New(core), 0).ExtractStructured(context.Background(), "text", "carl.pdf")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertEmptyRecord(t, record)
	if logs.FilterMessage("unparseable model response, using empty record").Len() != 1 {
		t.Fatalf("expected a warning about the unparseable response")
	}
}

func TestExtractStructuredSoftFailsWhenFallbackFails(t *testing.T) {
	gen := &stubGenerator{err: ErrFallbackFailed}

	record, err := NewExtractor(gen, zap.NewNop(), 0).ExtractStructured(context.Background(), "text", "dan.pdf")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	assertEmptyRecord(t, record)
	if record.Name != "dan.pdf" {
		t.Fatalf("expected hint as name, got %q", record.Name)
	}
}

func TestExtractStructuredPropagatesPermanentFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("permission denied")}

	record, err := NewExtractor(gen, zap.NewNop(), 0).ExtractStructured(context.Background(), "text", "eve.pdf")
	if err == nil {
		t.Fatal("expected error")
	}
	if record != nil {
		t.Fatalf("expected nil record with error, got %+v", record)
	}
}

func TestExtractStructuredTagsFallbackModel(t *testing.T) {
	gen := &stubGenerator{resp: Response{Text: validAnswer, Model: "secondary", Fallback: true}}

	record, err := NewExtractor(gen, zap.NewNop(), 0).ExtractStructured(context.Background(), "text", "ada.pdf")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.Source != cv.SourceFallbackModel {
		t.Fatalf("expected source %q, got %q", cv.SourceFallbackModel, record.Source)
	}
}

func TestParseTolerant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{name: "strict", raw: `{"education": []}`, ok: true},
		{name: "fenced", raw: "```json\n{\"awards\": []}\n```", ok: true},
		{name: "trailing commas", raw: `{"a": [1, 2,], "b": {"c": 1,},}`, ok: true},
		{name: "prose around", raw: `Result: {"a": 1} hope this helps`, ok: true},
		{name: "no braces", raw: `nothing`, ok: false},
		{name: "broken", raw: `{"a": [}`, ok: false},
		{name: "array root", raw: `[1, 2]`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := parseTolerant(tt.raw)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
		})
	}
}

func TestExplainReturnsErrorText(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}

	got := NewExplainer(gen, zap.NewNop()).Explain(context.Background(), ai.Candidate{Name: "A"}, ai.Candidate{Name: "B"})

	if got != "quota exceeded" {
		t.Fatalf("expected error text as explanation, got %q", got)
	}
}

func TestExplainQuotesEvidence(t *testing.T) {
	gen := &stubGenerator{resp: Response{Text: "  A has a PhD.  "}}

	winner := cv.Empty("Ada")
	winner.Education = []cv.EducationEntry{{Degree: "PhD", University: "MIT"}}
	winner.Experience = []cv.ExperienceEntry{{Title: "R1", Org: "O1"}, {Title: "R2", Org: "O2"}, {Title: "R3", Org: "O3"}}

	got := NewExplainer(gen, zap.NewNop()).Explain(context.Background(),
		ai.Candidate{Name: "Ada", SysScore: 9.5, CV: winner},
		ai.Candidate{Name: "Bob", SysScore: 3, CV: cv.Empty("Bob")},
	)

	if got != "A has a PhD." {
		t.Fatalf("unexpected explanation: %q", got)
	}

	prompt := gen.prompts[0]
	for _, want := range []string{"WINNER: Ada (Score: 9.50)", "PhD from MIT", "R1 at O1, R2 at O2", "RUNNER-UP: Bob (Score: 3.00)"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt misses %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "R3 at O3") {
		t.Fatalf("prompt quotes more than two experience entries:\n%s", prompt)
	}
}

func assertEmptyRecord(t *testing.T, record *cv.StructuredCV) {
	t.Helper()

	if record == nil {
		t.Fatal("expected a record, got nil")
	}
	if record.Source != cv.SourceEmpty {
		t.Fatalf("expected source %q, got %q", cv.SourceEmpty, record.Source)
	}
	if record.Education == nil || record.Experience == nil || record.Publications == nil || record.Awards == nil {
		t.Fatalf("expected every section present: %#v", record)
	}
	if !record.IsEmpty() {
		t.Fatalf("expected empty sections: %#v", record)
	}
}
