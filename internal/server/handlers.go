package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/pipeline"
	"github.com/spigell/cv-ranker/internal/ranking"
	"github.com/spigell/cv-ranker/internal/scoring"
)

// archive content may expand past the upload size; cap it at this multiple.
const expansionFactor = 10

type rankResponse struct {
	RunID string `json:"run_id"`
	*ranking.Ranking
	Skipped []pipeline.Skip `json:"skipped,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	log := logger.WithRun(s.logger, runID)
	w.Header().Set("X-Run-ID", runID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := scoring.ParseConfig([]byte(r.FormValue("config")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid config/mappings: %w", err))
		return
	}
	tables, err := scoring.ParseMappings([]byte(r.FormValue("mappings")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid config/mappings: %w", err))
		return
	}

	upload, _, err := r.FormFile("cvs_zip")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("cvs_zip file is required: %w", err))
		return
	}
	defer upload.Close()

	tmp, err := os.MkdirTemp("", "cv-rank-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(tmp)

	paths, err := s.unpack(upload, tmp)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	log.Info("archive extracted", zap.Int("files", len(paths)))

	p, err := pipeline.New(s.deps, pipeline.Options{
		Language:  s.cfg.Language,
		Workers:   s.cfg.Workers,
		Observers: []pipeline.Observer{pipeline.NewLogObserver(log)},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	report, err := p.Run(r.Context(), paths)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	orch, err := ranking.New(cfg, tables, s.explainer, ranking.Options{
		MinCandidates: s.cfg.MinCandidates,
		Coherence:     *s.cfg.Coherence,
	}, log)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := orch.Rank(r.Context(), report.Records)
	if errors.Is(err, ranking.ErrTooFewCandidates) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at least %d processed CVs required: %w", max(s.cfg.MinCandidates, ranking.DefaultMinCandidates), err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	log.Info("ranking completed", zap.Int("ranked", len(result.Candidates)), zap.Int("skipped", len(report.Skipped)))
	writeJSON(w, http.StatusOK, rankResponse{RunID: runID, Ranking: result, Skipped: report.Skipped})
}

func (s *Server) unpack(upload io.Reader, tmp string) ([]string, error) {
	zipPath := filepath.Join(tmp, "upload.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, upload); err != nil {
		f.Close()
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	dest := filepath.Join(tmp, "cvs")
	if err := os.Mkdir(dest, 0o755); err != nil {
		return nil, err
	}
	if _, err := extractZip(zipPath, dest, s.cfg.MaxArchiveFiles, s.cfg.MaxUploadBytes*expansionFactor); err != nil {
		return nil, fmt.Errorf("invalid cvs_zip: %w", err)
	}

	return pipeline.Collect(dest)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
