package gemini

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	_ "embed"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/cv"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

//go:embed explain.md
var explainTemplate string

// experienceEvidence bounds how many experience entries are quoted per candidate.
const experienceEvidence = 2

// Explainer asks a Gemini model to justify the order of the top two candidates.
type Explainer struct {
	generator generator
	logger    *zap.Logger
}

func NewExplainer(g generator, logger *zap.Logger) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{generator: g, logger: logger}
}

// Explain returns the model's explanation, or the failure description when the call fails.
func (e *Explainer) Explain(ctx context.Context, winner, runnerUp ai.Candidate) string {
	prompt := buildExplainPrompt(winner, runnerUp)

	resp, err := e.generator.Generate(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		e.logger.Warn("explanation failed", zap.Error(err))
		return err.Error()
	}

	return strings.TrimSpace(resp.Text)
}

func buildExplainPrompt(winner, runnerUp ai.Candidate) string {
	return strings.NewReplacer(
		"{{WINNER_NAME}}", winner.Name,
		"{{WINNER_SCORE}}", strconv.FormatFloat(winner.SysScore, 'f', 2, 64),
		"{{WINNER_EVIDENCE}}", evidence(winner.CV),
		"{{RUNNER_NAME}}", runnerUp.Name,
		"{{RUNNER_SCORE}}", strconv.FormatFloat(runnerUp.SysScore, 'f', 2, 64),
		"{{RUNNER_EVIDENCE}}", evidence(runnerUp.CV),
	).Replace(explainTemplate)
}

func evidence(c *cv.StructuredCV) string {
	if c == nil {
		return "Education: | Experience: "
	}

	edu := make([]string, 0, len(c.Education))
	for _, e := range c.Education {
		edu = append(edu, fmt.Sprintf("%s from %s", e.Degree, e.University))
	}

	exp := make([]string, 0, experienceEvidence)
	for i, x := range c.Experience {
		if i == experienceEvidence {
			break
		}
		exp = append(exp, fmt.Sprintf("%s at %s", x.Title, x.Org))
	}

	return fmt.Sprintf("Education: %s | Experience: %s", strings.Join(edu, ", "), strings.Join(exp, ", "))
}
