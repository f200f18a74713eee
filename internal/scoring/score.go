// Package scoring computes a deterministic multi-criteria score for a structured CV.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/spigell/cv-ranker/internal/cv"
)

// AwardStep is the contribution of one award before the category cap.
const AwardStep = 0.5

// Subscores are the raw category values before weighting.
type Subscores struct {
	Education    float64 `json:"education"`
	Experience   float64 `json:"experience"`
	Publications float64 `json:"publications"`
	Awards       float64 `json:"awards"`
	Coherence    float64 `json:"coherence"`
}

// Result is the immutable outcome of scoring one CV.
type Result struct {
	SysScore  float64   `json:"sys_score"`
	Subscores Subscores `json:"subscores"`
}

// Score computes the score of c against the wall clock.
func Score(c *cv.StructuredCV, cfg *Config, tables *MappingTables, coherence float64) (Result, error) {
	return ScoreAt(c, cfg, tables, coherence, time.Now())
}

// ScoreAt computes the score of c, resolving open-ended experience against now.
// coherence is an externally supplied value scaled only by its weight.
func ScoreAt(c *cv.StructuredCV, cfg *Config, tables *MappingTables, coherence float64, now time.Time) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if tables == nil {
		tables = &MappingTables{MatchPolicy: MatchFirst}
	}
	if c == nil {
		c = cv.Empty("")
	}

	sub := Subscores{
		Education:    education(c, cfg, tables),
		Experience:   experience(c, cfg, now),
		Publications: publications(c, tables),
		Awards:       math.Min(float64(len(c.Awards))*AwardStep, 1),
		Coherence:    coherence,
	}

	w := cfg.Weights
	total := 10*(*w.Education*sub.Education+
		*w.Experience*sub.Experience+
		*w.Publications*sub.Publications+
		*w.Awards*sub.Awards) +
		*w.Coherence*sub.Coherence

	return Result{SysScore: round2(total), Subscores: sub}, nil
}

// education is the best single entry; several degrees do not add up.
func education(c *cv.StructuredCV, cfg *Config, tables *MappingTables) float64 {
	sw := cfg.Subweights.Education
	penalty := *cfg.Policies.MissingValuePenalty

	best := 0.0
	for _, e := range c.Education {
		gpa := penalty
		if e.GPA != nil {
			gpa = gpaValue(*e.GPA, e.Scale)
		}

		v := tables.degreeValue(e.Degree)*(*sw.DegreeLevel) +
			tables.tierValue(e.University)*(*sw.UniversityTier) +
			gpa*(*sw.GPA)
		best = math.Max(best, v)
	}
	return best
}

func gpaValue(gpa float64, scale *float64) float64 {
	if scale != nil && *scale > 0 {
		gpa /= *scale
	}
	return math.Max(0, math.Min(gpa, 1))
}

func experience(c *cv.StructuredCV, cfg *Config, now time.Time) float64 {
	sw := cfg.Subweights.Experience
	p := cfg.Policies
	target := strings.ToLower(*p.TargetDomain)

	months, domain := 0, 0.0
	for _, e := range c.Experience {
		months += cv.ExperienceMonths(e, now)
		if strings.Contains(strings.ToLower(e.Domain), target) || strings.Contains(strings.ToLower(e.Title), target) {
			domain = 1
		}
	}

	duration := math.Min(float64(months) / *p.MinMonthsExperience, 1)
	return duration*(*sw.DurationMonths) + domain*(*sw.DomainMatch)
}

// publications is the best single venue.
func publications(c *cv.StructuredCV, tables *MappingTables) float64 {
	best := 0.0
	for _, p := range c.Publications {
		best = math.Max(best, tables.venueValue(p.Venue))
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
