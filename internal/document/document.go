// Package document turns CV files into raw text.
//
// PDF pages are read with pdfcpu; a page without embedded text is rasterized with pdftoppm and
// passed through tesseract. DOCX paragraphs are read from word/document.xml in document order.
// Extraction never fails loudly: problems are reported through Result.Err wrapping ErrExtraction.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Format identifies a supported document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
)

const (
	MethodPDFText  = "pdf-text"
	MethodPDFOCR   = "pdf-ocr"
	MethodPDFMixed = "pdf-mixed"
	MethodDocx     = "docx"
)

var (
	// ErrUnsupportedFormat is returned by DetectFormat for extensions other than .pdf and .docx.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtraction marks any failure to read text out of a supported document.
	ErrExtraction = errors.New("extraction failed")
)

// Config configures external tools and limits.
type Config struct {
	Pdftoppm      string `mapstructure:"pdftoppm"`
	Tesseract     string `mapstructure:"tesseract"`
	TesseractLang string `mapstructure:"tesseract-lang"`
	DPI           int    `mapstructure:"dpi"`
	MaxFileSize   int64  `mapstructure:"max-file-size"`
}

func (c *Config) defaults() {
	if c.Pdftoppm == "" {
		c.Pdftoppm = "pdftoppm"
	}
	if c.Tesseract == "" {
		c.Tesseract = "tesseract"
	}
	if c.TesseractLang == "" {
		c.TesseractLang = "eng"
	}
	if c.DPI <= 0 {
		c.DPI = 300
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
}

// Result is the outcome of a single extraction.
type Result struct {
	Path     string
	Format   Format
	Text     string
	Pages    int
	OCRPages int
	Method   string
	Duration time.Duration
	Warnings []string
	// Err is nil on success and wraps ErrExtraction otherwise.
	Err error
}

// Failed reports whether the extraction produced no usable text.
func (r Result) Failed() bool {
	return r.Err != nil || strings.TrimSpace(r.Text) == ""
}

// Extractor reads text from PDF and DOCX files.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *zap.Logger
}

// NewExtractor creates an Extractor. A nil logger is replaced with a no-op logger.
func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// DetectFormat maps a file extension to a supported format.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDocx, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Extract reads the text of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (res Result) {
	start := time.Now()
	res = Result{Path: path}

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %s: panic: %v", ErrExtraction, filepath.Base(path), r)
		}
		res.Duration = time.Since(start)
	}()

	format, err := DetectFormat(path)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrExtraction, err)
		return res
	}
	res.Format = format

	info, err := os.Stat(path)
	if err != nil {
		res.Err = fmt.Errorf("%w: stat: %w", ErrExtraction, err)
		return res
	}
	if info.Size() > e.cfg.MaxFileSize {
		res.Err = fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrExtraction, info.Size(), e.cfg.MaxFileSize)
		return res
	}

	e.logger.Debug("extracting document", zap.String("path", path), zap.String("format", string(format)))

	switch format {
	case FormatPDF:
		err = e.extractPDF(ctx, path, &res)
	case FormatDocx:
		res.Text, err = extractDocx(path)
		res.Pages = 1
		res.Method = MethodDocx
	}

	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrExtraction, err)
		return res
	}

	if strings.TrimSpace(res.Text) == "" {
		res.Err = fmt.Errorf("%w: no text content", ErrExtraction)
	}

	return res
}
