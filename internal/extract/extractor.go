// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat is returned for file suffixes the extractor
// does not know how to read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Result is the outcome of a single extraction. Failure is carried as
// a typed error instead of being folded into the text payload; callers
// that want the legacy error-as-content behavior render it with
// LegacyErrorText.
type Result struct {
	Text string
	Err  error
}

// Extractor turns an uploaded file into plain text.
type Extractor interface {
	Extract(filename string, data []byte) Result
}

// DocExtractor dispatches on the lower-cased filename suffix.
type DocExtractor struct{}

func NewDocExtractor() *DocExtractor {
	return &DocExtractor{}
}

func (e *DocExtractor) Extract(filename string, data []byte) Result {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return e.extractPDF(data)
	case ".docx":
		return e.extractDOCX(data)
	case ".txt":
		return e.extractTXT(data)
	default:
		return Result{Err: ErrUnsupportedFormat}
	}
}

func (e *DocExtractor) extractPDF(data []byte) (res Result) {
	// The pdf library panics on some malformed files.
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Err: fmt.Errorf("parse pdf: %v", rec)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{Err: fmt.Errorf("open pdf: %w", err)}
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{Err: fmt.Errorf("pdf page %d: %w", i, err)}
		}
		pages = append(pages, text)
	}

	return Result{Text: strings.TrimSpace(strings.Join(pages, "\n"))}
}

// extractDOCX reads paragraph text runs from word/document.xml. A DOCX
// file is a zip archive; only local element names are matched so the
// parser is independent of namespace prefixes.
func (e *DocExtractor) extractDOCX(data []byte) Result {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{Err: fmt.Errorf("open docx: %w", err)}
	}

	var document *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			document = f
			break
		}
	}
	if document == nil {
		return Result{Err: errors.New("word/document.xml not found")}
	}

	rc, err := document.Open()
	if err != nil {
		return Result{Err: fmt.Errorf("parse docx: %w", err)}
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inRun      bool
	)
	decoder := xml.NewDecoder(rc)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{Err: fmt.Errorf("parse docx: %w", err)}
		}

		switch el := token.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inRun = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inRun = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inRun {
				current.Write(el)
			}
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	return Result{Text: strings.TrimSpace(strings.Join(paragraphs, "\n"))}
}

func (e *DocExtractor) extractTXT(data []byte) Result {
	if !utf8.Valid(data) {
		return Result{Err: errors.New("content is not valid UTF-8")}
	}
	return Result{Text: strings.TrimSpace(string(data))}
}

// LegacyErrorText renders an extraction failure the way the original
// backend embedded it into document content: "Error reading PDF: ...".
func LegacyErrorText(filename string, err error) string {
	if errors.Is(err, ErrUnsupportedFormat) {
		return "Unsupported file format"
	}
	label := strings.ToUpper(strings.TrimPrefix(filepath.Ext(filename), "."))
	if label == "" {
		label = "FILE"
	}
	return fmt.Sprintf("Error reading %s: %v", label, err)
}
