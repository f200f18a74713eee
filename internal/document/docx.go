package document

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// extractDocx reads paragraph text from word/document.xml in document order.
func extractDocx(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("word/document.xml not found in archive")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	return docxParagraphs(rc)
}

const (
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	markupCompatNS   = "http://schemas.openxmlformats.org/markup-compatibility/2006"
)

// docxParagraphs collects WordprocessingML paragraphs. A paragraph nested in a text box
// is emitted when it closes, before the paragraph that contains it. DrawingML paragraphs
// and mc:Fallback copies of text boxes are ignored.
func docxParagraphs(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		open       []*strings.Builder
		inText     bool
	)

	top := func() *strings.Builder {
		if len(open) == 0 {
			return nil
		}
		return open[len(open)-1]
	}

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space == markupCompatNS && t.Name.Local == "Fallback" {
				if err := decoder.Skip(); err != nil {
					return "", fmt.Errorf("parse document.xml: %w", err)
				}
				continue
			}
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = len(open) > 0
			case "tab":
				if b := top(); b != nil {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if b := top(); b != nil {
					b.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				top().Write(t)
			}
		case xml.EndElement:
			if t.Name.Space != wordprocessingNS {
				continue
			}
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if b := top(); b != nil {
					open = open[:len(open)-1]
					if text := strings.TrimSpace(b.String()); text != "" {
						paragraphs = append(paragraphs, text)
					}
				}
				inText = false
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
