package domain

import (
	"fmt"
	"strings"
)

// DefaultEmbeddingDimensions is the vector length used when none is configured.
const DefaultEmbeddingDimensions = 768

// EmbeddingKey is the content address of one stored embedding.
type EmbeddingKey struct {
	DocumentID string
	ChunkID    string
}

// String renders the key as doc_<document>/chunk_<chunk>.
func (k EmbeddingKey) String() string {
	return fmt.Sprintf("doc_%s/chunk_%s", k.DocumentID, k.ChunkID)
}

// IsZero reports whether either component is missing.
func (k EmbeddingKey) IsZero() bool {
	return k.DocumentID == "" || k.ChunkID == ""
}

// placeholderRefPrefix marks a chunk whose stored vector was substituted
// because the embedding provider failed.
const placeholderRefPrefix = "placeholder:"

// PlaceholderEmbeddingRef is the EmbeddingRef of a chunk embedded with a
// substituted placeholder vector.
func PlaceholderEmbeddingRef(key EmbeddingKey) string {
	return placeholderRefPrefix + key.String()
}

// ParseEmbeddingKey parses the String form of a key.
func ParseEmbeddingKey(s string) (EmbeddingKey, error) {
	docPart, chunkPart, ok := strings.Cut(s, "/")
	if !ok || !strings.HasPrefix(docPart, "doc_") || !strings.HasPrefix(chunkPart, "chunk_") {
		return EmbeddingKey{}, fmt.Errorf("%w: embedding key %q", ErrInvalidInput, s)
	}
	key := EmbeddingKey{
		DocumentID: strings.TrimPrefix(docPart, "doc_"),
		ChunkID:    strings.TrimPrefix(chunkPart, "chunk_"),
	}
	if key.IsZero() {
		return EmbeddingKey{}, fmt.Errorf("%w: embedding key %q", ErrInvalidInput, s)
	}
	return key, nil
}
