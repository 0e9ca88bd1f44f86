// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - OpenAI-compatible APIs (text-embedding-3-small)
//   - Deterministic placeholder vectors for offline use
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// FallbackEmbedder is implemented by embedding services that substitute
// placeholder vectors when the provider fails. substituted reports whether
// the returned vector is such a substitute.
type FallbackEmbedder interface {
	EmbedWithFallback(ctx context.Context, text string) (vector []float32, substituted bool, err error)
}

// EmbeddingStore persists embeddings keyed by (document id, chunk id).
// Each key is written once. Backends include the filesystem, badger, bbolt,
// sqlite and postgres.
type EmbeddingStore interface {
	// Put stores the vector for key. Returns domain.ErrAlreadyExists if the key is taken.
	Put(ctx context.Context, key domain.EmbeddingKey, vector []float32) error

	// Get returns the vector for key, or domain.ErrNotFound.
	Get(ctx context.Context, key domain.EmbeddingKey) ([]float32, error)

	// Scan calls fn for every stored embedding of the given documents.
	// Iteration stops at the first error returned by fn.
	Scan(ctx context.Context, documentIDs []string, fn func(key domain.EmbeddingKey, vector []float32) error) error

	// DeleteDocument removes every embedding of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
