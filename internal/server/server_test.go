package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/cv-ranker/internal/ai/heuristic"
	"github.com/spigell/cv-ranker/internal/document"
	"github.com/spigell/cv-ranker/internal/pipeline"
	"github.com/spigell/cv-ranker/internal/ranking"
)

const testConfig = `{
  "weights": {"education": 0.3, "experience": 0.3, "publications": 0.2, "awards": 0.1, "coherence": 0.1},
  "subweights": {"education": {"degree_level": 0.5, "university_tier": 0.3, "gpa": 0.2}, "experience": {"duration_months": 0.7, "domain_match": 0.3}},
  "policies": {"target_domain": "research", "min_months_experience": 36, "missing_value_penalty": 0.5}
}`

const testMappings = `{"degree_levels": {"phd": 1.0, "bachelor": 0.6}, "university_tiers": {}, "journal_impact": {}}`

type englishDetector struct{}

func (englishDetector) Detect(string) string { return "en" }

func docxBytes(t *testing.T, lines ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	var body strings.Builder
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, line := range lines {
		body.WriteString("<w:p><w:r><w:t>" + line + "</w:t></w:r></w:p>")
	}
	body.WriteString(`</w:body></w:document>`)
	_, err = w.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func zipBytes(t *testing.T, files map[string][]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func rankRequest(t *testing.T, archive []byte, config, mappings string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if archive != nil {
		fw, err := mw.CreateFormFile("cvs_zip", "cvs.zip")
		require.NoError(t, err)
		_, err = fw.Write(archive)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("config", config))
	require.NoError(t, mw.WriteField("mappings", mappings))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/rank", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestServer() *Server {
	return newTestServerWith(Config{})
}

func newTestServerWith(cfg Config) *Server {
	return New(cfg, pipeline.Deps{
		Extractor:  document.NewExtractor(document.Config{}, nil),
		Detector:   englishDetector{},
		Structurer: heuristic.New(),
	}, nil, nil)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRankOrdersUploadedCVs(t *testing.T) {
	archive := zipBytes(t, map[string][]byte{
		"cvs/bachelor.docx": docxBytes(t, "Bob", "Bachelor of Arts"),
		"cvs/phd.docx":      docxBytes(t, "Ada", "PhD in Physics", "Research Scientist at Lab, 2018-01 to 2022-01"),
		"cvs/readme.txt":    []byte("ignored"),
	})

	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, rankRequest(t, archive, testConfig, testMappings))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Run-ID"))

	var resp struct {
		Ranked []struct {
			Name     string  `json:"name"`
			SysScore float64 `json:"sys_score"`
			Rank     int     `json:"rank"`
		} `json:"ranked_candidates"`
		Skipped []pipeline.Skip `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Len(t, resp.Ranked, 2)
	assert.Equal(t, "phd.docx", resp.Ranked[0].Name)
	assert.Equal(t, "bachelor.docx", resp.Ranked[1].Name)
	assert.Greater(t, resp.Ranked[0].SysScore, resp.Ranked[1].SysScore)

	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "readme.txt", resp.Skipped[0].Document)
}

func TestRankKeepsExplicitZeroCoherence(t *testing.T) {
	archive := zipBytes(t, map[string][]byte{
		"bachelor.docx": docxBytes(t, "Bob", "Bachelor of Arts"),
		"phd.docx":      docxBytes(t, "Ada", "PhD in Physics"),
	})

	scores := func(srv *Server) map[string]float64 {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, rankRequest(t, archive, testConfig, testMappings))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Ranked []struct {
				Name     string  `json:"name"`
				SysScore float64 `json:"sys_score"`
			} `json:"ranked_candidates"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

		out := make(map[string]float64, len(resp.Ranked))
		for _, c := range resp.Ranked {
			out[c.Name] = c.SysScore
		}
		return out
	}

	zero := 0.0
	withDefault := scores(newTestServer())
	withZero := scores(newTestServerWith(Config{Coherence: &zero}))

	require.Len(t, withZero, 2)
	for name, score := range withZero {
		assert.Less(t, score, withDefault[name], name)
	}
}

func TestConfigDefaultsCoherence(t *testing.T) {
	var cfg Config
	cfg.defaults()
	require.NotNil(t, cfg.Coherence)
	assert.Equal(t, ranking.DefaultCoherence, *cfg.Coherence)

	zero := 0.0
	cfg = Config{Coherence: &zero}
	cfg.defaults()
	assert.Equal(t, 0.0, *cfg.Coherence)
}

func TestRankRejectsBadRequests(t *testing.T) {
	oneCV := zipBytes(t, map[string][]byte{"only.docx": docxBytes(t, "PhD")})
	twoCVs := zipBytes(t, map[string][]byte{"a.docx": docxBytes(t, "PhD"), "b.docx": docxBytes(t, "Bachelor")})
	escaping := zipBytes(t, map[string][]byte{"../../evil.docx": docxBytes(t, "PhD"), "b.docx": docxBytes(t, "Bachelor")})

	tests := []struct {
		name     string
		archive  []byte
		config   string
		mappings string
		contains string
	}{
		{name: "single cv", archive: oneCV, config: testConfig, mappings: testMappings, contains: "at least 2"},
		{name: "invalid config", archive: twoCVs, config: `{"weights": {}}`, mappings: testMappings, contains: "invalid config/mappings"},
		{name: "invalid mappings", archive: twoCVs, config: testConfig, mappings: `{"tiers": {}}`, contains: "invalid config/mappings"},
		{name: "missing archive", archive: nil, config: testConfig, mappings: testMappings, contains: "cvs_zip"},
		{name: "not a zip", archive: []byte("plain text"), config: testConfig, mappings: testMappings, contains: "invalid cvs_zip"},
		{name: "path traversal", archive: escaping, config: testConfig, mappings: testMappings, contains: "escapes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestServer().Handler().ServeHTTP(rec, rankRequest(t, tt.archive, tt.config, tt.mappings))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string][]byte{"../outside.pdf": []byte("x")}), 0o600))

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(dest, 0o755))

	_, err := extractZip(src, dest, 10, 1<<20)
	require.ErrorIs(t, err, errUnsafePath)

	_, statErr := os.Stat(filepath.Join(dir, "outside.pdf"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractZipEnforcesLimits(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.zip")
	require.NoError(t, os.WriteFile(src, zipBytes(t, map[string][]byte{
		"a.pdf": bytes.Repeat([]byte("a"), 100),
		"b.pdf": bytes.Repeat([]byte("b"), 100),
	}), 0o600))

	dest := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(dest, 0o755))

	_, err := extractZip(src, dest, 1, 1<<20)
	assert.ErrorContains(t, err, "more than 1 files")

	_, err = extractZip(src, dest, 10, 150)
	assert.ErrorContains(t, err, "size limit")
}
