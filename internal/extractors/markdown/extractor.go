// Package markdown extracts readable text from Markdown files.
package markdown

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/extractors/plaintext"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var (
	fencedCode    = regexp.MustCompile("(?s)(```|~~~).*?(```|~~~)")
	headings      = regexp.MustCompile(`(?m)^[ \t]*(#{1,6}[ \t]+)`)
	boldStars     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnders    = regexp.MustCompile(`__(.+?)__`)
	italicStars   = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnders  = regexp.MustCompile(`\b_([^_\n]+)_\b`)
	inlineCode    = regexp.MustCompile("`([^`\n]+)`")
	images        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	links         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// Extractor handles Markdown documents.
type Extractor struct {
	keepHeadings bool
}

// Option configures the extractor.
type Option func(*Extractor)

// KeepHeadings leaves ATX heading markers in the output so a header-aware
// chunker can still split on them.
func KeepHeadings() Option {
	return func(e *Extractor) {
		e.keepHeadings = true
	}
}

// New creates a new Markdown extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FileTypes returns the file types this extractor handles.
func (e *Extractor) FileTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeMarkdown}
}

// Extract reads the file and strips markdown formatting.
func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}
	if e.keepHeadings {
		return StripKeepHeadings(plaintext.Decode(raw)), nil
	}
	return Strip(plaintext.Decode(raw)), nil
}

// Strip removes heading markers, emphasis markers and fenced code blocks.
// Inline text, including link and inline code text, is kept.
func Strip(content string) string {
	return strip(content, "")
}

// StripKeepHeadings is Strip with heading markers left at the start of their line.
func StripKeepHeadings(content string) string {
	return strip(content, "$1")
}

func strip(content, heading string) string {
	content = fencedCode.ReplaceAllString(content, "")
	content = headings.ReplaceAllString(content, heading)
	content = boldStars.ReplaceAllString(content, "$1")
	content = boldUnders.ReplaceAllString(content, "$1")
	content = italicStars.ReplaceAllString(content, "$1")
	content = italicUnders.ReplaceAllString(content, "$1")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = multiNewlines.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
