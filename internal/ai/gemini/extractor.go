package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/cv-ranker/internal/cv"
	"github.com/spigell/cv-ranker/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

type generator interface {
	Generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (Response, error)
}

// Extractor turns CV text into a StructuredCV using a Gemini model.
type Extractor struct {
	generator generator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(g generator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{generator: g, logger: logger, maxLogLen: maxLogLength}
}

func generationConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
}

// ExtractStructured asks the model for a structured record. A transient outage that
// survives retries and fallback yields an empty record; other model failures are
// returned. Malformed answers are repaired when possible and otherwise become an
// empty record.
func (e *Extractor) ExtractStructured(ctx context.Context, text, hint string) (*cv.StructuredCV, error) {
	prompt := buildPrompt(text)

	e.logger.Debug("gemini extract request",
		zap.String("document", hint),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	resp, err := e.generator.Generate(ctx, prompt, generationConfig())
	if errors.Is(err, ErrFallbackFailed) {
		e.logger.Warn("model unavailable, using empty record", zap.String("document", hint), zap.Error(err))
		record := cv.Empty(hint)
		record.Warnings = append(record.Warnings, err.Error())
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", hint, err)
	}

	e.logger.Debug("gemini extract response",
		zap.String("document", hint),
		zap.String("model", resp.Model),
		zap.Int("response_length", utf8.RuneCountInString(resp.Text)),
		zap.String("response_preview", utils.TruncateForLog(resp.Text, e.maxLogLen)),
	)

	record := e.decodeResponse(resp.Text, hint)
	if record.Source != cv.SourceEmpty {
		record.Source = cv.SourceModel
		if resp.Fallback {
			record.Source = cv.SourceFallbackModel
		}
	}

	return record, nil
}

func (e *Extractor) decodeResponse(raw, hint string) *cv.StructuredCV {
	data, document, ok := parseTolerant(raw)
	if !ok {
		e.logger.Warn("unparseable model response, using empty record",
			zap.String("document", hint),
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		record := cv.Empty(hint)
		record.Warnings = append(record.Warnings, "model response is not valid JSON")
		return record
	}

	record, warnings := cv.Decode(data)
	warnings = append(warnings, cv.SchemaViolations([]byte(document))...)
	if len(warnings) > 0 {
		e.logger.Debug("model response needed cleanup",
			zap.String("document", hint),
			zap.Strings("warnings", warnings),
		)
	}
	record.Warnings = append(record.Warnings, warnings...)

	if strings.TrimSpace(record.Name) == "" {
		record.Name = hint
	}

	return record
}

func buildPrompt(text string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Extract the CV below as JSON.\n\n{{CV_TEXT}}"
	}
	prompt := strings.ReplaceAll(template, "{{OPEN_ENDED}}", cv.OpenEndedSentinel)
	return strings.ReplaceAll(prompt, "{{CV_TEXT}}", text)
}
