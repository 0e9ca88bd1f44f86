// Package pdf extracts text from PDF documents.
//
// Pages are read with github.com/ledongthuc/pdf. When that yields no usable
// text, the layout-aware pdftotext tool from poppler is tried before failing.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const layoutTool = "pdftotext"

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// PageReader returns the plain text of each page of a PDF.
type PageReader func(path string) ([]string, error)

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor handles PDF documents.
type Extractor struct {
	pages  PageReader
	runner CommandRunner
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner sets the runner used for the pdftotext fallback.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) {
		e.runner = r
	}
}

// WithPageReader replaces the primary page reader.
func WithPageReader(r PageReader) Option {
	return func(e *Extractor) {
		e.pages = r
	}
}

// New creates a new PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		pages:  readPages,
		runner: execRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypePDF}
}

// Extract returns page text joined by blank lines.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}

	pages, err := e.pages(path)
	if err == nil {
		if text := joinPages(pages); text != "" {
			return text, nil
		}
		logger.Debug("pdf: no text from page reader for %s, trying %s", path, layoutTool)
	} else {
		logger.Debug("pdf: page reader failed for %s: %v, trying %s", path, err, layoutTool)
	}

	out, err := e.runner.Run(ctx, layoutTool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("%w: %s failed: %w", domain.ErrExtractionFailed, layoutTool, err)
	}
	text := joinPages(strings.Split(string(out), "\f"))
	if text == "" {
		return "", fmt.Errorf("%w: no text found in pdf", domain.ErrExtractionFailed)
	}
	return text, nil
}

// joinPages trims each page and joins the non-empty ones with blank lines.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\r\n", "\n"))
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// readPages extracts plain text per page. Malformed files can panic inside
// the parser, which is reported as an error.
func readPages(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// InstallInstructions returns how to install the fallback tool.
func InstallInstructions() string {
	return `pdftotext improves extraction of scanned or complex PDFs.

Install it with:
  macOS:  brew install poppler
  Ubuntu: apt install poppler-utils
  Fedora: dnf install poppler-utils`
}
