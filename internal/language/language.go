// Package language provides best-effort document language detection.
package language

import (
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

const (
	// Unknown is returned whenever detection cannot produce an answer.
	Unknown = "unknown"

	defaultMinRunes = 20
)

// Detector wraps whatlanggo with a confidence floor and a minimum sample size.
type Detector struct {
	minRunes      int
	minConfidence float64
	detect        func(string) whatlanggo.Info
}

// NewDetector creates a Detector. Non-positive values fall back to defaults.
func NewDetector(minRunes int, minConfidence float64) *Detector {
	if minRunes <= 0 {
		minRunes = defaultMinRunes
	}
	if minConfidence < 0 {
		minConfidence = 0
	}
	return &Detector{
		minRunes:      minRunes,
		minConfidence: minConfidence,
		detect:        whatlanggo.Detect,
	}
}

// Detect returns the ISO 639-1 code of the text language, or Unknown. It never panics.
func (d *Detector) Detect(text string) (code string) {
	defer func() {
		if r := recover(); r != nil {
			code = Unknown
		}
	}()

	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < d.minRunes {
		return Unknown
	}

	info := d.detect(text)
	if info.Confidence < d.minConfidence {
		return Unknown
	}

	iso := strings.TrimSpace(info.Lang.Iso6391())
	if iso == "" {
		return Unknown
	}
	return iso
}
