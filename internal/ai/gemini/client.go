package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider = "gemini"

	DefaultModel         = "gemini-2.0-flash-lite"
	DefaultFallbackModel = "gemini-1.5-flash"
	DefaultMaxAttempts   = 3
	DefaultTimeout       = 90 * time.Second

	// NoFallback as FallbackModel disables the fallback call.
	NoFallback = "none"
)

// DefaultBackoff is the delay after the first, second and third transient failure.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// ErrEmptyResponse is returned when the model answered without any text.
var ErrEmptyResponse = errors.New("gemini api returned empty response")

// ErrFallbackFailed is returned when retries ran out and the fallback model failed too.
var ErrFallbackFailed = errors.New("fallback model failed")

var wait = utils.WaitFor

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options tune retry and fallback behaviour. Zero values take the defaults.
type Options struct {
	Model         string          `mapstructure:"model"`
	FallbackModel string          `mapstructure:"fallback-model"`
	MaxAttempts   int             `mapstructure:"max-attempts"`
	Backoff       []time.Duration `mapstructure:"backoff"`
	Timeout       time.Duration   `mapstructure:"timeout"`
	MaxLogLength  int             `mapstructure:"max-log-length"`
}

func (o *Options) defaults() {
	if o.Model = strings.TrimSpace(o.Model); o.Model == "" {
		o.Model = DefaultModel
	}
	switch o.FallbackModel = strings.TrimSpace(o.FallbackModel); {
	case o.FallbackModel == "":
		o.FallbackModel = DefaultFallbackModel
	case strings.EqualFold(o.FallbackModel, NoFallback):
		o.FallbackModel = ""
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if len(o.Backoff) == 0 {
		o.Backoff = DefaultBackoff
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxLogLength <= 0 {
		o.MaxLogLength = defaultMaxLogLength
	}
}

// Response is a model answer together with the model that produced it.
type Response struct {
	Text     string
	Model    string
	Fallback bool
}

// Generator sends prompts to Gemini, retrying transient failures on the primary
// model and falling back to a secondary model once retries run out.
type Generator struct {
	models contentModels
	opts   Options
	logger *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts Options, log *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts, log), nil
}

func newGenerator(models contentModels, opts Options, log *zap.Logger) *Generator {
	opts.defaults()
	return &Generator{
		models: models,
		opts:   opts,
		logger: logger.WithCommonFields(log, Provider, opts.Model),
	}
}

// Model returns the primary model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.opts.Model
}

// Generate runs prompt against the primary model. Transient failures are retried with
// backoff up to the attempt limit; the fallback model is then tried once. Any other
// failure of the primary model is returned immediately.
func (g *Generator) Generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (Response, error) {
	if g == nil || g.models == nil {
		return Response{}, errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Response{}, errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		text, err := g.call(ctx, g.opts.Model, prompt, config)
		if err == nil {
			return Response{Text: text, Model: g.opts.Model}, nil
		}
		if !IsTransient(err) {
			return Response{}, err
		}
		lastErr = err

		delay := g.backoff(attempt)
		g.logger.Warn("transient gemini failure",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.opts.MaxAttempts),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return Response{}, fmt.Errorf("waiting to retry: %w", err)
		}
	}

	if g.opts.FallbackModel == "" {
		return Response{}, fmt.Errorf("%w: no fallback model configured: %w", ErrFallbackFailed, lastErr)
	}

	g.logger.Warn("retries exhausted, switching to fallback model",
		zap.String("fallback_model", g.opts.FallbackModel),
		zap.Error(lastErr),
	)

	text, err := g.call(ctx, g.opts.FallbackModel, prompt, config)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %w", ErrFallbackFailed, g.opts.FallbackModel, err)
	}

	return Response{Text: text, Model: g.opts.FallbackModel, Fallback: true}, nil
}

func (g *Generator) backoff(attempt int) time.Duration {
	idx := attempt - 1
	if idx >= len(g.opts.Backoff) {
		idx = len(g.opts.Backoff) - 1
	}
	return g.opts.Backoff[idx]
}

func (g *Generator) call(ctx context.Context, model, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	resp, err := g.models.GenerateContent(callCtx, model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", model, err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ErrEmptyResponse
	}

	return output, nil
}

// IsTransient reports whether err signals an overloaded or unavailable backend.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return transientAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return transientAPIError(*apiErrPtr)
	}

	return strings.Contains(strings.ToLower(err.Error()), "overloaded")
}

func transientAPIError(e genai.APIError) bool {
	return e.Code == http.StatusServiceUnavailable ||
		strings.EqualFold(e.Status, "UNAVAILABLE") ||
		strings.Contains(strings.ToLower(e.Message), "overloaded")
}
