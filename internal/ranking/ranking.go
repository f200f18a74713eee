// Package ranking scores a batch of structured CVs and orders them.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/cv"
	"github.com/spigell/cv-ranker/internal/scoring"
)

// ErrTooFewCandidates is returned when a batch has fewer processed CVs than required.
var ErrTooFewCandidates = errors.New("too few candidates")

const (
	DefaultMinCandidates = 2
	DefaultCoherence     = 8.0
)

// Candidate is a scored CV. The CV fields are flattened into its JSON form.
type Candidate struct {
	*cv.StructuredCV
	Rank      int               `json:"rank"`
	SysScore  float64           `json:"sys_score"`
	Subscores scoring.Subscores `json:"subscores"`
}

// Exclusion is a CV that could not be scored.
type Exclusion struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Ranking is the ordered outcome of a batch.
type Ranking struct {
	Candidates  []Candidate `json:"ranked_candidates"`
	Excluded    []Exclusion `json:"excluded,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
}

// Options tune ranking.
type Options struct {
	MinCandidates int
	// Coherence is the externally supplied coherence input for every candidate.
	Coherence float64
	// Now resolves open-ended experience while scoring. Defaults to time.Now.
	Now func() time.Time
}

// Orchestrator scores CVs independently, then sorts and explains the result.
type Orchestrator struct {
	cfg       *scoring.Config
	tables    *scoring.MappingTables
	explainer ai.Explainer
	opts      Options
	logger    *zap.Logger
}

// New validates cfg up front so a bad configuration fails the whole request.
// explainer may be nil.
func New(cfg *scoring.Config, tables *scoring.MappingTables, explainer ai.Explainer, opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tables == nil {
		tables = &scoring.MappingTables{MatchPolicy: scoring.MatchFirst}
	}
	if opts.MinCandidates <= 0 {
		opts.MinCandidates = DefaultMinCandidates
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{cfg: cfg, tables: tables, explainer: explainer, opts: opts, logger: logger}, nil
}

// Rank scores records, drops the ones that fail, sorts by score descending keeping input
// order for ties, and asks the explainer about the top two.
func (o *Orchestrator) Rank(ctx context.Context, records []*cv.StructuredCV) (*Ranking, error) {
	if len(records) < o.opts.MinCandidates {
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrTooFewCandidates, len(records), o.opts.MinCandidates)
	}

	now := o.opts.Now()
	result := &Ranking{Candidates: make([]Candidate, 0, len(records))}

	for idx, record := range records {
		if record == nil {
			result.Excluded = append(result.Excluded, Exclusion{Name: fmt.Sprintf("#%d", idx), Reason: "missing record"})
			continue
		}

		score, err := scoring.ScoreAt(record, o.cfg, o.tables, o.opts.Coherence, now)
		if err != nil {
			o.logger.Warn("scoring failed", zap.String("name", record.Name), zap.Error(err))
			result.Excluded = append(result.Excluded, Exclusion{Name: record.Name, Reason: err.Error()})
			continue
		}

		o.logger.Debug("cv scored", zap.String("name", record.Name), zap.Float64("sys_score", score.SysScore))
		result.Candidates = append(result.Candidates, Candidate{
			StructuredCV: record,
			SysScore:     score.SysScore,
			Subscores:    score.Subscores,
		})
	}

	sort.SliceStable(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].SysScore > result.Candidates[j].SysScore
	})
	for i := range result.Candidates {
		result.Candidates[i].Rank = i + 1
	}

	if o.explainer != nil && len(result.Candidates) >= 2 {
		result.Explanation = o.explainer.Explain(ctx, toAI(result.Candidates[0]), toAI(result.Candidates[1]))
	}

	return result, nil
}

func toAI(c Candidate) ai.Candidate {
	return ai.Candidate{Name: c.Name, SysScore: c.SysScore, CV: c.StructuredCV}
}
