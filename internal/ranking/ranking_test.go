package ranking

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/cv"
	"github.com/spigell/cv-ranker/internal/scoring"
)

const testConfig = `
weights: {education: 0.3, experience: 0.3, publications: 0.2, awards: 0.1, coherence: 0.1}
subweights:
  education: {degree_level: 0.5, university_tier: 0.3, gpa: 0.2}
  experience: {duration_months: 0.7, domain_match: 0.3}
policies: {target_domain: machine learning, min_months_experience: 36, missing_value_penalty: 0.5}
`

const testMappings = `
degree_levels: {phd: 1.0, master: 0.8, bachelor: 0.6}
university_tiers: {Tier One University: 1.0}
journal_impact: {nature: 1.0}
`

type recordingExplainer struct {
	winner, runnerUp ai.Candidate
	calls            int
}

func (r *recordingExplainer) Explain(_ context.Context, winner, runnerUp ai.Candidate) string {
	r.calls++
	r.winner, r.runnerUp = winner, runnerUp
	return winner.Name + " wins"
}

func newOrchestrator(t *testing.T, explainer ai.Explainer) *Orchestrator {
	t.Helper()

	cfg, err := scoring.ParseConfig([]byte(testConfig))
	require.NoError(t, err)
	tables, err := scoring.ParseMappings([]byte(testMappings))
	require.NoError(t, err)

	o, err := New(cfg, tables, explainer, Options{
		Coherence: DefaultCoherence,
		Now:       func() time.Time { return time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC) },
	}, nil)
	require.NoError(t, err)
	return o
}

func candidate(name, degree, university string) *cv.StructuredCV {
	c := cv.Empty(name)
	c.Source = cv.SourceModel
	c.Education = []cv.EducationEntry{{Degree: degree, University: university}}
	return c
}

func TestRankOrdersByScoreAndExplainsTopTwo(t *testing.T) {
	explainer := &recordingExplainer{}
	o := newOrchestrator(t, explainer)

	records := []*cv.StructuredCV{
		candidate("Bachelor", "Bachelor of Arts", "Unranked College"),
		candidate("Doctor", "PhD", "Tier One University"),
		candidate("Master", "Master of Science", "Unranked College"),
	}

	result, err := o.Rank(context.Background(), records)
	require.NoError(t, err)

	names := []string{}
	for _, c := range result.Candidates {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Doctor", "Master", "Bachelor"}, names)
	assert.Equal(t, 1, result.Candidates[0].Rank)
	assert.Equal(t, 3, result.Candidates[2].Rank)

	assert.Equal(t, 1, explainer.calls)
	assert.Equal(t, "Doctor", explainer.winner.Name)
	assert.Equal(t, "Master", explainer.runnerUp.Name)
	assert.Equal(t, "Doctor wins", result.Explanation)
}

func TestRankKeepsInputOrderOnTies(t *testing.T) {
	o := newOrchestrator(t, nil)

	records := []*cv.StructuredCV{
		candidate("first", "PhD", "X"),
		candidate("second", "PhD", "X"),
		candidate("third", "PhD", "X"),
	}

	result, err := o.Rank(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 3)
	assert.Equal(t, "first", result.Candidates[0].Name)
	assert.Equal(t, "second", result.Candidates[1].Name)
	assert.Equal(t, "third", result.Candidates[2].Name)
	assert.Empty(t, result.Explanation)
}

func TestRankRejectsSmallBatch(t *testing.T) {
	o := newOrchestrator(t, nil)

	_, err := o.Rank(context.Background(), []*cv.StructuredCV{candidate("only", "PhD", "X")})
	assert.ErrorIs(t, err, ErrTooFewCandidates)
}

func TestRankExcludesMissingRecords(t *testing.T) {
	o := newOrchestrator(t, nil)

	result, err := o.Rank(context.Background(), []*cv.StructuredCV{candidate("a", "PhD", "X"), nil})
	require.NoError(t, err)

	assert.Len(t, result.Candidates, 1)
	require.Len(t, result.Excluded, 1)
	assert.Equal(t, "missing record", result.Excluded[0].Reason)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(&scoring.Config{}, nil, nil, Options{}, nil)
	assert.ErrorIs(t, err, scoring.ErrInvalidConfig)
}

func TestCandidateJSONIsFlat(t *testing.T) {
	o := newOrchestrator(t, nil)

	result, err := o.Rank(context.Background(), []*cv.StructuredCV{candidate("a", "PhD", "X"), candidate("b", "Bachelor", "X")})
	require.NoError(t, err)

	data, err := json.Marshal(result.Candidates[0])
	require.NoError(t, err)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	for _, key := range []string{"name", "education", "experience", "publications", "awards", "sys_score", "subscores", "rank"} {
		assert.Contains(t, flat, key)
	}
}
