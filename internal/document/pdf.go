package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// extractPDF reads embedded text page by page and OCRs pages that have none.
func (e *Extractor) extractPDF(ctx context.Context, path string, res *Result) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return fmt.Errorf("pdfcpu read: %w", err)
	}

	res.Pages = pdfCtx.PageCount
	pages := make([]string, 0, pdfCtx.PageCount)

	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		text := pageText(pdfCtx, pageNr)
		if text == "" {
			ocr, err := e.ocrPage(ctx, path, pageNr)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("page %d: ocr: %v", pageNr, err))
				e.logger.Warn("ocr failed", zap.String("path", path), zap.Int("page", pageNr), zap.Error(err))
				continue
			}
			text = ocr
			res.OCRPages++
		}

		if text != "" {
			pages = append(pages, text)
		}
	}

	switch {
	case res.OCRPages == 0:
		res.Method = MethodPDFText
	case res.OCRPages == res.Pages:
		res.Method = MethodPDFOCR
	default:
		res.Method = MethodPDFMixed
	}

	res.Text = strings.Join(pages, "\n")
	return nil
}

// ocrPage rasterizes one page with pdftoppm and runs tesseract on the image.
func (e *Extractor) ocrPage(ctx context.Context, path string, pageNr int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "cv-ocr-*")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove temp dir", zap.String("dir", tmpDir), zap.Error(err))
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	page := strconv.Itoa(pageNr)

	// pdftoppm -f N -l N -r 300 -png -singlefile <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-f", page, "-l", page, "-r", strconv.Itoa(e.cfg.DPI), "-png", "-singlefile", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	// tesseract <img> stdout -l eng
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, prefix+".png", "stdout", "-l", e.cfg.TesseractLang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}

	return strings.TrimSpace(string(out)), nil
}

func pageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromStream(data)
}

// pdfStringRe matches string literals in a content stream: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromStream collects text shown by the Tj, TJ and ' operators.
func textFromStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}

	return cleanPDFText(sb.String())
}

func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			// octal, up to three digits
			val := int(raw[i] - '0')
			for n := 0; n < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanPDFText drops unprintable runes and squeezes spaces while keeping line breaks.
func cleanPDFText(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, "\n")
}
