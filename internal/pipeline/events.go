package pipeline

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
)

// Step messages written for every document.
const (
	MsgUnsupportedFormat = "unsupported format"
	MsgExtractionDone    = "extraction done"
	MsgExtractionFailed  = "extraction failed"
	MsgNonEnglish        = "non-English, skipped"
	MsgLanguageMismatch  = "language mismatch, skipped"
	MsgLanguagePassed    = "language check passed"
	MsgCleaningDone      = "cleaning done"
	MsgParsingDone       = "parsing done"
	MsgParsingFailed     = "parsing failed"
	MsgDurationDone      = "duration calculation done"
	MsgAdded             = "added to final JSON"
)

// Event is one pipeline step for one document.
type Event struct {
	Time     time.Time
	Document string
	Stage    Stage
	Message  string
	// Reason explains a skip. It is empty for progress events.
	Reason string
}

func (e Event) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Document, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Document, e.Message, e.Reason)
}

// Observer receives pipeline events. Implementations must be safe for concurrent use.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type logObserver struct {
	logger *zap.Logger
}

// NewLogObserver writes events as structured log entries.
func NewLogObserver(log *zap.Logger) Observer {
	if log == nil {
		log = zap.NewNop()
	}
	return logObserver{logger: log}
}

func (o logObserver) Observe(e Event) {
	fields := []zap.Field{
		zap.String(logger.FieldDocument, e.Document),
		zap.String("stage", string(e.Stage)),
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
		o.logger.Warn(e.Message, fields...)
		return
	}
	o.logger.Info(e.Message, fields...)
}

type stepLogObserver struct {
	logger *zap.Logger
}

// NewStepLogObserver writes "<document>: <message> (<reason>)" lines to a step log built by
// logger.NewStepLog. The reason is omitted when empty.
func NewStepLogObserver(stepLog *zap.Logger) Observer {
	return stepLogObserver{logger: stepLog}
}

func (o stepLogObserver) Observe(e Event) {
	o.logger.Info(e.String())
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many recorded events carry message.
func (r *Recorder) Count(message string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.events {
		if e.Message == message {
			n++
		}
	}
	return n
}
