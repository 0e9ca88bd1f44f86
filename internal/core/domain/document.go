package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// FileType identifies the kind of source file a document was uploaded as.
type FileType string

// Accepted file types.
const (
	FileTypePDF      FileType = "pdf"
	FileTypeText     FileType = "txt"
	FileTypeDOCX     FileType = "docx"
	FileTypeMarkdown FileType = "md"
)

// SupportedFileTypes lists every file type accepted on upload.
func SupportedFileTypes() []FileType {
	return []FileType{FileTypePDF, FileTypeText, FileTypeDOCX, FileTypeMarkdown}
}

// FileTypeFromFilename derives the file type from a filename extension.
// Returns ErrUnsupportedFileType for anything outside SupportedFileTypes.
func FileTypeFromFilename(name string) (FileType, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	ft := FileType(ext)
	if !ft.IsValid() {
		return "", ErrUnsupportedFileType
	}
	return ft, nil
}

// IsValid returns true if the file type is accepted.
func (f FileType) IsValid() bool {
	switch f {
	case FileTypePDF, FileTypeText, FileTypeDOCX, FileTypeMarkdown:
		return true
	default:
		return false
	}
}

// Extension returns the file extension including the leading dot.
func (f FileType) Extension() string {
	return "." + string(f)
}

// String returns the string representation.
func (f FileType) String() string {
	return string(f)
}

// ProcessingStatus is the lifecycle state of a document's indexing.
type ProcessingStatus string

// Processing states. Transitions are pending -> processing -> completed|failed.
const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// String returns the string representation.
func (s ProcessingStatus) String() string {
	return string(s)
}

// Document is an uploaded file and its processing state.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// Description is optional free text supplied on upload.
	Description string

	// FilePath is the stored file location, relative to the upload store.
	FilePath string

	// FileType is the kind of file that was uploaded.
	FileType FileType

	// OriginalFilename is the name the file had when it was uploaded.
	OriginalFilename string

	// Status is the processing state.
	Status ProcessingStatus

	// IsProcessed is set once text has been extracted and chunked.
	IsProcessed bool

	// IsIndexed is set once every chunk has had an embedding attempt.
	IsIndexed bool

	// Error holds the reason for the last failure. Empty unless Status is failed.
	Error string

	// ChunkCount is the number of chunks produced by the last indexing run.
	ChunkCount int

	// OwnerID identifies the user who uploaded the document.
	OwnerID string

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document record last changed.
	UpdatedAt time.Time
}

// Queryable reports whether the document can take part in retrieval.
func (d *Document) Queryable() bool {
	return d.Status == StatusCompleted && d.IsProcessed && d.IsIndexed
}

// StatusUpdate describes a state transition written by the indexing task.
type StatusUpdate struct {
	Status      ProcessingStatus
	IsProcessed bool
	IsIndexed   bool
	Error       string
	ChunkCount  int
}

// Chunk is a retrievable text segment of a document.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the zero-based ordinal position within the document.
	Index int

	// Content is the text of this chunk.
	Content string

	// EmbeddingRef is the key of the stored embedding.
	// Empty while no embedding has been stored for the chunk. Prefixed with
	// "placeholder:" when the vector is a substitute, not a model embedding.
	EmbeddingRef string

	// CreatedAt is when the chunk was written.
	CreatedAt time.Time
}

// HasEmbedding reports whether an embedding has been stored for the chunk.
func (c *Chunk) HasEmbedding() bool {
	return c.EmbeddingRef != ""
}

// HasPlaceholderEmbedding reports whether the stored vector was substituted
// for a failed provider call. Such vectors carry no meaning for similarity.
func (c *Chunk) HasPlaceholderEmbedding() bool {
	return strings.HasPrefix(c.EmbeddingRef, placeholderRefPrefix)
}

// Key returns the embedding key addressing this chunk's vector.
func (c *Chunk) Key() EmbeddingKey {
	return EmbeddingKey{DocumentID: c.DocumentID, ChunkID: c.ID}
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64

	// DocumentTitle labels the chunk in answer prompts and sources.
	DocumentTitle string
}

// Source converts the scored chunk into an answer source.
func (s ScoredChunk) Source() Source {
	return Source{
		DocumentID:    s.Chunk.DocumentID,
		DocumentTitle: s.DocumentTitle,
		ChunkID:       s.Chunk.ID,
		Similarity:    s.Score,
	}
}
