package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure EmbeddingStore implements the interface.
var _ driven.EmbeddingStore = (*EmbeddingStore)(nil)

// EmbeddingStore is an in-memory implementation of driven.EmbeddingStore.
type EmbeddingStore struct {
	mu      sync.RWMutex
	vectors map[string]map[string][]float32 // document ID -> chunk ID -> vector
}

// NewEmbeddingStore creates a new in-memory embedding store.
func NewEmbeddingStore() *EmbeddingStore {
	return &EmbeddingStore{vectors: make(map[string]map[string][]float32)}
}

// Put stores a copy of vector unless key exists.
func (s *EmbeddingStore) Put(_ context.Context, key domain.EmbeddingKey, vector []float32) error {
	if key.IsZero() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.vectors[key.DocumentID]
	if !ok {
		doc = make(map[string][]float32)
		s.vectors[key.DocumentID] = doc
	}
	if _, ok := doc[key.ChunkID]; ok {
		return domain.ErrAlreadyExists
	}
	doc[key.ChunkID] = append([]float32(nil), vector...)
	return nil
}

// Get returns a copy of the vector for key.
func (s *EmbeddingStore) Get(_ context.Context, key domain.EmbeddingKey) ([]float32, error) {
	if key.IsZero() {
		return nil, domain.ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	vec, ok := s.vectors[key.DocumentID][key.ChunkID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]float32(nil), vec...), nil
}

// Scan visits the given documents' embeddings in chunk ID order.
// fn runs on a snapshot, outside the store lock.
func (s *EmbeddingStore) Scan(
	_ context.Context,
	documentIDs []string,
	fn func(key domain.EmbeddingKey, vector []float32) error,
) error {
	type entry struct {
		key domain.EmbeddingKey
		vec []float32
	}

	s.mu.RLock()
	var entries []entry
	for _, docID := range documentIDs {
		chunkIDs := make([]string, 0, len(s.vectors[docID]))
		for id := range s.vectors[docID] {
			chunkIDs = append(chunkIDs, id)
		}
		sort.Strings(chunkIDs)
		for _, id := range chunkIDs {
			entries = append(entries, entry{
				key: domain.EmbeddingKey{DocumentID: docID, ChunkID: id},
				vec: append([]float32(nil), s.vectors[docID][id]...),
			})
		}
	}
	s.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e.key, e.vec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDocument removes every embedding of a document.
func (s *EmbeddingStore) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vectors, documentID)
	return nil
}

// Close is a no-op.
func (s *EmbeddingStore) Close() error {
	return nil
}

// Len returns the number of stored embeddings.
func (s *EmbeddingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.vectors {
		n += len(doc)
	}
	return n
}
