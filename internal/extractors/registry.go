package extractors

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/extractors/docx"
	"github.com/custodia-labs/docrag/internal/extractors/markdown"
	"github.com/custodia-labs/docrag/internal/extractors/pdf"
	"github.com/custodia-labs/docrag/internal/extractors/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps file types to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.FileType]driven.Extractor
}

// NewRegistry creates a registry holding the given extractors.
// A later extractor replaces an earlier one for the same file type.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{extractors: make(map[domain.FileType]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Default returns a registry with the built-in pdf, docx, markdown and plain text extractors.
func Default() *Registry {
	return NewRegistry(pdf.New(), docx.New(), markdown.New(), plaintext.New())
}

// ForStrategy returns Default, except that markdown headings survive
// extraction when the markdown chunking strategy needs them.
func ForStrategy(strategy domain.ChunkingStrategy) *Registry {
	if strategy != domain.ChunkingMarkdown {
		return Default()
	}
	return NewRegistry(pdf.New(), docx.New(), markdown.New(markdown.KeepHeadings()), plaintext.New())
}

// Register adds an extractor for every file type it handles.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ft := range e.FileTypes() {
		r.extractors[ft] = e
	}
}

// Extract dispatches to the extractor for fileType.
func (r *Registry) Extract(ctx context.Context, path string, fileType domain.FileType) (string, error) {
	r.mu.RLock()
	e, ok := r.extractors[fileType]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, fileType)
	}
	return e.Extract(ctx, path)
}
