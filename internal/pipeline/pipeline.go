// Package pipeline turns a batch of CV files into structured records.
//
// Each document runs through detect format, extract, language check, clean, parse and
// duration backfill on its own. A document that fails a stage is skipped with a recorded
// reason; the batch only fails when its context is cancelled.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/cv"
	"github.com/spigell/cv-ranker/internal/document"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/textnorm"
)

// Stage names a pipeline step.
type Stage string

const (
	StageFormat   Stage = "format"
	StageExtract  Stage = "extract"
	StageLanguage Stage = "language"
	StageClean    Stage = "clean"
	StageParse    Stage = "parse"
	StageDuration Stage = "duration"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageFormat, StageExtract, StageLanguage, StageClean, StageParse, StageDuration}

const (
	DefaultLanguage = "en"
	DefaultWorkers  = 4
)

// TextExtractor reads raw text from a document.
type TextExtractor interface {
	Extract(ctx context.Context, path string) document.Result
}

// LanguageDetector returns an ISO 639-1 code or "unknown".
type LanguageDetector interface {
	Detect(text string) string
}

// Deps are the collaborators of a pipeline run.
type Deps struct {
	Extractor  TextExtractor
	Detector   LanguageDetector
	Structurer ai.StructuredExtractor
	Logger     *zap.Logger
}

// Options tune a pipeline run.
type Options struct {
	Language  string
	Workers   int
	Observers []Observer
	// Now resolves open-ended experience. Defaults to time.Now.
	Now func() time.Time
}

// Step is the accounting of one stage over a batch.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// StageStep pairs a stage with its accounting.
type StageStep struct {
	Stage Stage
	Step
}

// Skip records why a document left the pipeline.
type Skip struct {
	Document string `json:"document"`
	Stage    Stage  `json:"stage"`
	Reason   string `json:"reason"`
}

// Report is the outcome of a batch.
type Report struct {
	// Records are the processed CVs in input order.
	Records []*cv.StructuredCV
	Skipped []Skip
	Steps   []StageStep
}

// Pipeline runs documents through every stage.
type Pipeline struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Extractor == nil {
		return nil, errors.New("text extractor is required")
	}
	if deps.Detector == nil {
		return nil, errors.New("language detector is required")
	}
	if deps.Structurer == nil {
		return nil, errors.New("structured extractor is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Pipeline{deps: deps, opts: opts}, nil
}

type outcome struct {
	record    *cv.StructuredCV
	droppedAt Stage
	reason    string
}

// Run processes paths with bounded parallelism and returns once every document is done.
// Per-document failures are reported in the Report, not as an error.
func (p *Pipeline) Run(ctx context.Context, paths []string) (*Report, error) {
	outcomes := make([]outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := p.process(gctx, path)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline cancelled: %w", err)
	}

	report := &Report{Records: make([]*cv.StructuredCV, 0, len(paths))}
	for i, out := range outcomes {
		if out.droppedAt != "" {
			report.Skipped = append(report.Skipped, Skip{
				Document: filepath.Base(paths[i]),
				Stage:    out.droppedAt,
				Reason:   out.reason,
			})
			continue
		}
		report.Records = append(report.Records, out.record)
	}
	report.Steps = accounting(len(paths), outcomes)

	for _, s := range report.Steps {
		p.deps.Logger.Info("pipeline step",
			zap.String("name", string(s.Stage)),
			zap.Int("initial", s.Initial),
			zap.Int("dropped", s.Dropped),
			zap.Int("left", s.Left),
		)
	}

	return report, nil
}

func accounting(total int, outcomes []outcome) []StageStep {
	dropped := make(map[Stage]int, len(Stages))
	for _, out := range outcomes {
		if out.droppedAt != "" {
			dropped[out.droppedAt]++
		}
	}

	steps := make([]StageStep, 0, len(Stages))
	left := total
	for _, stage := range Stages {
		step := Step{Initial: left, Dropped: dropped[stage]}
		step.Left = step.Initial - step.Dropped
		left = step.Left
		steps = append(steps, StageStep{Stage: stage, Step: step})
	}
	return steps
}

func (p *Pipeline) emit(doc string, stage Stage, message, reason string) {
	e := Event{Time: time.Now(), Document: doc, Stage: stage, Message: message, Reason: reason}
	for _, o := range p.opts.Observers {
		o.Observe(e)
	}
}

func (p *Pipeline) skip(doc string, stage Stage, message, reason string) outcome {
	p.emit(doc, stage, message, reason)
	return outcome{droppedAt: stage, reason: reason}
}

// process runs one document. The error is non-nil only when ctx is done.
func (p *Pipeline) process(ctx context.Context, path string) (outcome, error) {
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	doc := filepath.Base(path)
	log := logger.WithFields(p.deps.Logger, zap.String(logger.FieldDocument, doc))

	if _, err := document.DetectFormat(path); err != nil {
		return p.skip(doc, StageFormat, MsgUnsupportedFormat, err.Error()), nil
	}

	res := p.deps.Extractor.Extract(ctx, path)
	p.emit(doc, StageExtract, MsgExtractionDone, "")
	if res.Failed() {
		reason := "no text content"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		return p.skip(doc, StageExtract, MsgExtractionFailed, reason), nil
	}
	log.Debug("text extracted",
		zap.String("method", res.Method),
		zap.Int("pages", res.Pages),
		zap.Int("ocr_pages", res.OCRPages),
		zap.Duration("duration", res.Duration),
	)

	if lang := p.deps.Detector.Detect(res.Text); lang != p.opts.Language {
		message := MsgLanguageMismatch
		if p.opts.Language == DefaultLanguage {
			message = MsgNonEnglish
		}
		return p.skip(doc, StageLanguage, message, "detected language "+lang), nil
	}
	p.emit(doc, StageLanguage, MsgLanguagePassed, "")

	text := textnorm.Clean(res.Text)
	p.emit(doc, StageClean, MsgCleaningDone, "")

	record, err := p.deps.Structurer.ExtractStructured(ctx, text, doc)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome{}, ctxErr
	}
	if err != nil {
		return p.skip(doc, StageParse, MsgParsingFailed, err.Error()), nil
	}
	if record == nil {
		record = cv.Empty(doc)
	}
	record.EnsureSections()
	p.emit(doc, StageParse, MsgParsingDone, "")

	filled := record.BackfillDurations(p.opts.Now())
	log.Debug("durations backfilled", zap.Int("entries", filled))
	p.emit(doc, StageDuration, MsgDurationDone, "")

	p.emit(doc, StageDuration, MsgAdded, "")
	return outcome{record: record}, nil
}

// Collect lists candidate files under root in lexical order. Hidden files and archive
// metadata folders are ignored; unsupported extensions are kept so the pipeline can
// report them.
func Collect(root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "__MACOSX") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}
