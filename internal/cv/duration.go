package cv

import (
	"strings"
	"time"
)

// OpenEndedSentinel is the end-date token the extraction prompt asks for when a position has no end date.
const OpenEndedSentinel = "currently working"

var openEndedTokens = map[string]struct{}{
	"present":         {},
	"now":             {},
	"current":         {},
	OpenEndedSentinel: {},
}

// IsOpenEnded reports whether end stands for an ongoing period.
func IsOpenEnded(end string) bool {
	_, ok := openEndedTokens[strings.ToLower(strings.TrimSpace(end))]
	return ok
}

// MonthsBetween returns whole months from start to end. An empty or sentinel end resolves to now.
// Any unparseable input yields 0; the result is never negative.
func MonthsBetween(start, end string, now time.Time) int {
	from, ok := parseMonth(start)
	if !ok {
		return 0
	}

	to := now
	if strings.TrimSpace(end) != "" && !IsOpenEnded(end) {
		if to, ok = parseMonth(end); !ok {
			return 0
		}
	}

	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 0 {
		return 0
	}
	return months
}

// parseMonth accepts "YYYY-MM" (longer ISO dates are truncated to the month) and "MM/YYYY".
func parseMonth(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if strings.Contains(value, "-") {
		if len(value) > 7 {
			value = value[:7]
		}
		t, err := time.Parse("2006-01", value)
		return t, err == nil
	}

	t, err := time.Parse("01/2006", value)
	return t, err == nil
}

// BackfillDurations fills duration_months for open-ended entries that do not have one yet.
// It returns the number of entries updated.
func (c *StructuredCV) BackfillDurations(now time.Time) int {
	updated := 0
	for i := range c.Experience {
		entry := &c.Experience[i]
		if entry.DurationMonths != nil || !IsOpenEnded(entry.End) || strings.TrimSpace(entry.Start) == "" {
			continue
		}
		months := MonthsBetween(entry.Start, entry.End, now)
		entry.DurationMonths = &months
		updated++
	}
	return updated
}

// ExperienceMonths returns the months an entry contributes: the extracted duration when present,
// otherwise the computed span.
func ExperienceMonths(entry ExperienceEntry, now time.Time) int {
	if entry.DurationMonths != nil {
		if *entry.DurationMonths < 0 {
			return 0
		}
		return *entry.DurationMonths
	}
	return MonthsBetween(entry.Start, entry.End, now)
}
