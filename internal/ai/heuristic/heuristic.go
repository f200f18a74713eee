// Package heuristic extracts a low-confidence structured CV with line patterns.
// It needs no model and is used when no API key is configured.
package heuristic

import (
	"context"
	"regexp"
	"strings"

	"github.com/spigell/cv-ranker/internal/cv"
)

var (
	educationRe   = regexp.MustCompile(`(?i)\b(B\.?Sc|M\.?Sc|Ph\.?D|Bachelor|Master|Doctor(?:ate)?)\b`)
	experienceRe  = regexp.MustCompile(`(?i)\b(Worked|Experience|Internship|Engineer|Researcher|Developer|Scientist|Analyst|Manager)\b`)
	publicationRe = regexp.MustCompile(`(?i)\b(Publication|Paper|Journal|Proceedings)\b`)
	awardRe       = regexp.MustCompile(`(?i)\b(Award|Honou?r|Prize|Scholarship)\b`)

	dateRangeRe = regexp.MustCompile(`(?i)(\d{4}-\d{2}|\d{2}/\d{4})\s*(?:-|to)\s*(\d{4}-\d{2}|\d{2}/\d{4}|present|current|now)`)
	atOrgRe     = regexp.MustCompile(`(?i)\b(?:at|@)\s+([^,;()]+)`)
)

const unknown = "Unknown"

// Extractor implements ai.StructuredExtractor without a model.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractStructured scans text line by line. Every record is tagged as heuristic.
func (Extractor) ExtractStructured(ctx context.Context, text, hint string) (*cv.StructuredCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record := cv.Empty(hint)
	record.Source = cv.SourceHeuristic

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case educationRe.MatchString(line):
			record.Education = append(record.Education, cv.EducationEntry{Degree: line, University: unknown})
		case publicationRe.MatchString(line):
			record.Publications = append(record.Publications, cv.PublicationEntry{Title: line, Venue: unknown})
		case awardRe.MatchString(line):
			record.Awards = append(record.Awards, cv.AwardEntry{Title: line})
		case experienceRe.MatchString(line):
			record.Experience = append(record.Experience, experienceEntry(line))
		}
	}

	return record, nil
}

func experienceEntry(line string) cv.ExperienceEntry {
	entry := cv.ExperienceEntry{Title: line, Org: unknown}

	if m := dateRangeRe.FindStringSubmatch(line); m != nil {
		entry.Start = m[1]
		entry.End = m[2]
		if cv.IsOpenEnded(entry.End) {
			entry.End = cv.OpenEndedSentinel
		}
		entry.Title = strings.TrimSpace(strings.Trim(strings.TrimSpace(strings.Replace(line, m[0], "", 1)), ",;-"))
	}

	if m := atOrgRe.FindStringSubmatch(entry.Title); m != nil {
		entry.Org = strings.TrimSpace(m[1])
	}

	return entry
}
