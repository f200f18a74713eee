// Package ai declares the model-backed collaborators of the ranking pipeline.
package ai

import (
	"context"

	"github.com/spigell/cv-ranker/internal/cv"
)

// StructuredExtractor turns cleaned CV text into a structured record.
//
// Implementations never return a nil record on success and always populate every
// section slice. An error means the document must be skipped.
type StructuredExtractor interface {
	ExtractStructured(ctx context.Context, text, hint string) (*cv.StructuredCV, error)
}

// Candidate is the evidence an Explainer compares.
type Candidate struct {
	Name     string
	SysScore float64
	CV       *cv.StructuredCV
}

// Explainer describes why the winner outranks the runner-up. A failure is reported
// as the returned text rather than an error.
type Explainer interface {
	Explain(ctx context.Context, winner, runnerUp Candidate) string
}
