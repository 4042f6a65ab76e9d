// Package extract turns uploaded document bytes into plain text.
//
// Supported formats are PDF, plain text, and Markdown. Format detection
// prefers the file extension and falls back to the declared content type,
// so files arriving without one of the two still ingest.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/skigaudi/skibot/internal/log"
)

var (
	// ErrUnsupportedFormat indicates the file is not PDF, TXT, or Markdown.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrInvalidEncoding indicates a text file that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("invalid text encoding")

	// ErrEmptyDocument indicates no extractable text was found.
	ErrEmptyDocument = errors.New("document contains no extractable text")
)

// format identifiers returned by detect.
const (
	formatPDF      = "pdf"
	formatText     = "text"
	formatMarkdown = "markdown"
)

var extFormats = map[string]string{
	".pdf": formatPDF,
	".txt": formatText,
	".md":  formatMarkdown,
}

var mimeFormats = map[string]string{
	"application/pdf": formatPDF,
	"text/plain":      formatText,
	"text/markdown":   formatMarkdown,
}

// Extractor converts document bytes to plain text.
type Extractor struct {
	logger  log.Logger
	tempDir string
}

// New creates an Extractor. PDF processing uses a scratch directory under
// the system temp dir.
func New(logger log.Logger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "skibot-extract")
	_ = os.MkdirAll(tempDir, 0o750)

	return &Extractor{
		logger:  logger.With("component", "extract"),
		tempDir: tempDir,
	}
}

// Accepts reports whether a file with the given name and content type can
// be ingested. Either signal is sufficient.
func Accepts(name, contentType string) bool {
	_, err := detect(name, contentType)
	return err == nil
}

// detect resolves the document format from extension, then content type.
func detect(name, contentType string) (string, error) {
	if f, ok := extFormats[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}
	// Content types may carry parameters, e.g. "text/plain; charset=utf-8".
	mime, _, _ := strings.Cut(contentType, ";")
	if f, ok := mimeFormats[strings.TrimSpace(strings.ToLower(mime))]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: name=%q content_type=%q", ErrUnsupportedFormat, name, contentType)
}

// Text extracts plain text from data. The name and contentType drive format
// detection; the returned text is trimmed and guaranteed non-empty.
func (e *Extractor) Text(ctx context.Context, data []byte, name, contentType string) (string, error) {
	format, err := detect(name, contentType)
	if err != nil {
		return "", err
	}

	var text string
	switch format {
	case formatPDF:
		text, err = e.pdfText(ctx, data)
		if err != nil {
			return "", fmt.Errorf("extracting pdf text: %w", err)
		}
	case formatText, formatMarkdown:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidEncoding, name)
		}
		text = string(data)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyDocument, name)
	}

	e.logger.Debug("extracted document text",
		"name", name, "format", format, "chars", len(text))
	return text, nil
}

// pdfText extracts text from PDF bytes. pdfcpu works on files, so the bytes
// pass through a scratch file and a per-call content directory.
func (e *Extractor) pdfText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	scratch := filepath.Join(e.tempDir, uuid.NewString()+".pdf")
	if err := os.WriteFile(scratch, data, 0o600); err != nil {
		return "", fmt.Errorf("writing scratch pdf: %w", err)
	}
	defer os.Remove(scratch)

	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadContextFile(scratch)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(e.tempDir, uuid.NewString())
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("creating content dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(scratch, outDir, nil, conf); err != nil {
		return "", fmt.Errorf("extracting pdf content: %w", err)
	}

	// Content files are named Content_page_N; collect them in page order.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", fmt.Errorf("reading content dir: %w", err)
	}

	pageTexts := make(map[int]string, pageCount)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(entry.Name(), "Content_page_%d", &pageNum); err != nil {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, entry.Name()))
		if err != nil {
			e.logger.Warn("skipping unreadable page content", "file", entry.Name(), "error", err)
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	var b strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	return b.String(), nil
}
