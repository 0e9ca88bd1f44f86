package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// IndexingService turns a pending document into retrievable chunks.
type IndexingService struct {
	docs       driven.DocumentStore
	files      driven.FileStore
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	embeddings driven.EmbeddingStore
}

// NewIndexingService creates an indexing service.
// A nil embedder indexes chunks without embeddings, leaving them non-retrievable.
func NewIndexingService(
	docs driven.DocumentStore,
	files driven.FileStore,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	embeddings driven.EmbeddingStore,
) *IndexingService {
	return &IndexingService{
		docs:       docs,
		files:      files,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		embeddings: embeddings,
	}
}

// Task wraps Index for the task queue.
func (s *IndexingService) Task(documentID string) driven.Task {
	return driven.Task{
		Name: "index " + documentID,
		Run: func(ctx context.Context) error {
			return s.Index(ctx, documentID)
		},
	}
}

// Index claims a pending document and runs extraction, chunking and embedding.
// A document that is not pending is left alone. Any failure after the claim
// is recorded on the document before it is returned.
func (s *IndexingService) Index(ctx context.Context, documentID string) (err error) {
	claimed, err := s.docs.ClaimDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		logger.Info("index: document %s is not pending, skipping", documentID)
		return nil
	}

	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		s.fail(ctx, documentID, false, err)
		return fmt.Errorf("get document: %w", err)
	}

	start := time.Now()
	processed := false
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("index %s: panic: %v", documentID, r)
		}
		if err != nil {
			s.fail(ctx, documentID, processed, err)
		}
	}()

	logger.Info("index: document %s (%s) started", doc.ID, doc.FileType)

	path := s.files.Path(doc.FilePath)
	if _, statErr := os.Stat(path); statErr != nil {
		return fmt.Errorf("source file: %w", statErr)
	}

	text, err := s.extractors.Extract(ctx, path, doc.FileType)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	pieces := s.chunker.Chunk(text)
	logger.Debug("index: %s produced %d chunks with %s", doc.ID, len(pieces), s.chunker.Name())

	if err := s.docs.DeleteChunks(ctx, doc.ID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	if s.embeddings != nil {
		if err := s.embeddings.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("clear embeddings: %w", err)
		}
	}

	processed = true
	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.StatusUpdate{
		Status:      domain.StatusProcessing,
		IsProcessed: true,
		ChunkCount:  len(pieces),
	}); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	embedded := 0
	for i, content := range pieces {
		chunk := &domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    content,
			CreatedAt:  time.Now(),
		}
		if err := s.docs.SaveChunk(ctx, chunk); err != nil {
			return fmt.Errorf("save chunk %d: %w", i, err)
		}

		ok, err := s.embedChunk(ctx, chunk)
		if err != nil {
			return err
		}
		if ok {
			embedded++
		}
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.StatusUpdate{
		Status:      domain.StatusCompleted,
		IsProcessed: true,
		IsIndexed:   true,
		ChunkCount:  len(pieces),
	}); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	logger.Info("index: document %s completed, %d/%d chunks embedded in %s",
		doc.ID, embedded, len(pieces), time.Since(start).Round(time.Millisecond))
	return nil
}

// embedChunk computes and stores one chunk's embedding.
// Provider failures skip the chunk. Storage failures are returned.
func (s *IndexingService) embedChunk(ctx context.Context, chunk *domain.Chunk) (bool, error) {
	if s.embedder == nil || s.embeddings == nil {
		return false, nil
	}

	vector, substituted, err := s.embed(ctx, chunk.Content)
	if err != nil {
		logger.Warn("index: embedding chunk %d of %s failed, skipping: %v", chunk.Index, chunk.DocumentID, err)
		return false, nil
	}

	key := chunk.Key()
	if err := s.embeddings.Put(ctx, key, vector); err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
		return false, fmt.Errorf("store embedding of chunk %d: %w", chunk.Index, err)
	}
	ref := key.String()
	if substituted {
		ref = domain.PlaceholderEmbeddingRef(key)
	}
	if err := s.docs.SetChunkEmbedding(ctx, chunk.ID, ref); err != nil {
		return false, fmt.Errorf("link embedding of chunk %d: %w", chunk.Index, err)
	}
	return true, nil
}

// embed reports whether the vector is a placeholder substitute when the
// embedder can tell.
func (s *IndexingService) embed(ctx context.Context, text string) ([]float32, bool, error) {
	if fb, ok := s.embedder.(driven.FallbackEmbedder); ok {
		return fb.EmbedWithFallback(ctx, text)
	}
	vec, err := s.embedder.Embed(ctx, text)
	return vec, false, err
}

// fail records a failed run. It uses a fresh context so a cancelled task
// still leaves the document out of processing.
func (s *IndexingService) fail(ctx context.Context, documentID string, processed bool, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Error("index: document %s failed: %v", documentID, cause)
	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusUpdate{
		Status:      domain.StatusFailed,
		IsProcessed: processed,
		Error:       cause.Error(),
	}); err != nil {
		logger.Error("index: recording failure of %s: %v", documentID, err)
	}
}
