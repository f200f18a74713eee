// Package server exposes ranking over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/ai"
	"github.com/spigell/cv-ranker/internal/pipeline"
	"github.com/spigell/cv-ranker/internal/ranking"
)

const (
	DefaultAddr            = ":8080"
	DefaultMaxUploadBytes  = 100 << 20
	DefaultMaxArchiveFiles = 500
	shutdownTimeout        = 15 * time.Second
)

// Config configures the HTTP endpoint.
type Config struct {
	Addr            string        `mapstructure:"addr"`
	MaxUploadBytes  int64         `mapstructure:"max-upload-bytes"`
	MaxArchiveFiles int           `mapstructure:"max-archive-files"`
	RequestTimeout  time.Duration `mapstructure:"request-timeout"`
	Language        string        `mapstructure:"language"`
	Workers         int           `mapstructure:"workers"`
	// Coherence is applied to every candidate. Nil means ranking.DefaultCoherence; zero is kept.
	Coherence       *float64      `mapstructure:"coherence"`
	MinCandidates   int           `mapstructure:"min-candidates"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.MaxArchiveFiles <= 0 {
		c.MaxArchiveFiles = DefaultMaxArchiveFiles
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Minute
	}
	if c.Coherence == nil {
		coherence := ranking.DefaultCoherence
		c.Coherence = &coherence
	}
}

// Server ranks uploaded CV archives.
type Server struct {
	cfg       Config
	deps      pipeline.Deps
	explainer ai.Explainer
	logger    *zap.Logger
	router    chi.Router
}

// New builds the router. explainer may be nil.
func New(cfg Config, deps pipeline.Deps, explainer ai.Explainer, logger *zap.Logger) *Server {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger

	s := &Server{cfg: cfg, deps: deps, explainer: explainer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.With(middleware.Timeout(cfg.RequestTimeout)).Post("/rank", s.handleRank)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
