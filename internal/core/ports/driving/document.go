package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// DocumentService manages uploaded documents.
// Every call acts on behalf of an owner and rejects access to other owners' documents.
type DocumentService interface {
	// Upload stores a file, creates a pending document and schedules indexing.
	// Returns before indexing starts.
	Upload(ctx context.Context, req UploadRequest) (*domain.Document, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error)

	// List returns the owner's documents.
	List(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Chunks returns the chunks of a document in order.
	Chunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error)

	// Embedding returns the stored vector of one chunk.
	Embedding(ctx context.Context, ownerID, documentID, chunkID string) ([]float32, error)

	// Delete removes a document with its chunks, embeddings and stored file.
	Delete(ctx context.Context, ownerID, documentID string) error

	// Reindex resets a document to pending and schedules indexing again.
	Reindex(ctx context.Context, ownerID, documentID string) (*domain.Document, error)
}

// UploadRequest describes a new document.
type UploadRequest struct {
	// OwnerID is the uploading user.
	OwnerID string

	// Title defaults to the filename without extension.
	Title string

	// Description is optional free text.
	Description string

	// Filename is the original name of the file. Its extension selects the file type.
	Filename string

	// Content is the file body.
	Content io.Reader
}
