package language

import (
	"testing"

	"github.com/abadojack/whatlanggo"
)

func TestDetectEnglish(t *testing.T) {
	d := NewDetector(0, 0)
	text := "Senior software engineer with ten years of experience building distributed systems and leading teams."
	if got := d.Detect(text); got != "en" {
		t.Fatalf("expected en, got %q", got)
	}
}

func TestDetectShortTextIsUnknown(t *testing.T) {
	d := NewDetector(0, 0)
	if got := d.Detect("  hi  "); got != Unknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestDetectRecoversFromPanic(t *testing.T) {
	d := NewDetector(1, 0)
	d.detect = func(string) whatlanggo.Info { panic("boom") }
	if got := d.Detect("any text at all"); got != Unknown {
		t.Fatalf("expected unknown after panic, got %q", got)
	}
}

func TestDetectBelowConfidenceIsUnknown(t *testing.T) {
	d := NewDetector(1, 0.9)
	d.detect = func(string) whatlanggo.Info {
		return whatlanggo.Info{Lang: whatlanggo.Eng, Confidence: 0.2}
	}
	if got := d.Detect("some text"); got != Unknown {
		t.Fatalf("expected unknown, got %q", got)
	}
}
