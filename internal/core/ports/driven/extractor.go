package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// Extractor converts a stored file into a single text blob.
// Each extractor handles specific file types.
type Extractor interface {
	// FileTypes returns the file types this extractor handles.
	FileTypes() []domain.FileType

	// Extract reads the file at path and returns its text.
	// Never modifies the file.
	Extract(ctx context.Context, path string) (string, error)
}

// ExtractorRegistry selects an extractor by file type.
type ExtractorRegistry interface {
	// Extract dispatches to the extractor registered for fileType.
	// Returns domain.ErrUnsupportedFileType when none is registered.
	Extract(ctx context.Context, path string, fileType domain.FileType) (string, error)
}

// Chunker splits text into ordered, overlapping segments.
// Implementations are deterministic: equal input yields equal output.
type Chunker interface {
	// Name identifies the chunking strategy.
	Name() string

	// Chunk splits text. Empty text yields no chunks.
	Chunk(text string) []string
}
