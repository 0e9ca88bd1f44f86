package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// ErrDocumentBusy is returned when a document cannot change while it is being indexed.
var ErrDocumentBusy = errors.New("document is being processed")

// DocumentService manages uploaded documents and schedules their indexing.
type DocumentService struct {
	docs       driven.DocumentStore
	files      driven.FileStore
	embeddings driven.EmbeddingStore
	queue      driven.TaskQueue
	indexer    *IndexingService
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docs driven.DocumentStore,
	files driven.FileStore,
	embeddings driven.EmbeddingStore,
	queue driven.TaskQueue,
	indexer *IndexingService,
) *DocumentService {
	return &DocumentService{
		docs:       docs,
		files:      files,
		embeddings: embeddings,
		queue:      queue,
		indexer:    indexer,
	}
}

// Upload stores the file, records a pending document and schedules indexing.
func (s *DocumentService) Upload(ctx context.Context, req driving.UploadRequest) (*domain.Document, error) {
	if req.Content == nil || req.Filename == "" {
		return nil, fmt.Errorf("%w: filename and content are required", domain.ErrInvalidInput)
	}
	fileType, err := domain.FileTypeFromFilename(req.Filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, filepath.Ext(req.Filename))
	}

	stored, err := s.files.Save(ctx, fileType.Extension(), req.Content)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		base := filepath.Base(req.Filename)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	now := time.Now()
	doc := &domain.Document{
		ID:               uuid.NewString(),
		Title:            title,
		Description:      req.Description,
		FilePath:         stored,
		FileType:         fileType,
		OriginalFilename: filepath.Base(req.Filename),
		Status:           domain.StatusPending,
		OwnerID:          req.OwnerID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		_ = s.files.Remove(ctx, stored)
		return nil, fmt.Errorf("save document: %w", err)
	}

	logger.Info("upload: document %s stored as %s", doc.ID, stored)
	if err := s.schedule(ctx, doc.ID); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get retrieves a document owned by ownerID.
func (s *DocumentService) Get(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		return nil, fmt.Errorf("%w for document %s", domain.ErrPermissionDenied, documentID)
	}
	return doc, nil
}

// List returns the owner's documents, newest first.
func (s *DocumentService) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx, ownerID)
}

// Chunks returns a document's chunks in order.
func (s *DocumentService) Chunks(ctx context.Context, ownerID, documentID string) ([]domain.Chunk, error) {
	if _, err := s.Get(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	return s.docs.GetChunks(ctx, documentID)
}

// Embedding returns the stored vector of one chunk of a document.
func (s *DocumentService) Embedding(ctx context.Context, ownerID, documentID, chunkID string) ([]float32, error) {
	if _, err := s.Get(ctx, ownerID, documentID); err != nil {
		return nil, err
	}
	if s.embeddings == nil {
		return nil, domain.ErrNotFound
	}
	return s.embeddings.Get(ctx, domain.EmbeddingKey{DocumentID: documentID, ChunkID: chunkID})
}

// Delete removes the document, its chunks, its embeddings and the stored file.
func (s *DocumentService) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return err
	}
	if doc.Status == domain.StatusProcessing {
		return fmt.Errorf("delete %s: %w", documentID, ErrDocumentBusy)
	}

	if err := s.clearIndex(ctx, documentID); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.files.Remove(ctx, doc.FilePath); err != nil {
		logger.Warn("delete: removing stored file %s: %v", doc.FilePath, err)
	}

	logger.Info("delete: document %s removed", documentID)
	return nil
}

// Reindex drops the document's chunks and embeddings, resets it to pending
// and schedules indexing again.
func (s *DocumentService) Reindex(ctx context.Context, ownerID, documentID string) (*domain.Document, error) {
	doc, err := s.Get(ctx, ownerID, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.StatusProcessing {
		return nil, fmt.Errorf("reindex %s: %w", documentID, ErrDocumentBusy)
	}

	if err := s.clearIndex(ctx, documentID); err != nil {
		return nil, err
	}

	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusUpdate{Status: domain.StatusPending}); err != nil {
		return nil, fmt.Errorf("reset document: %w", err)
	}
	if err := s.schedule(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docs.GetDocument(ctx, documentID)
}

// schedule submits the indexing task. A document that cannot be
// scheduled is marked failed so it does not stay pending forever.
func (s *DocumentService) schedule(ctx context.Context, documentID string) error {
	if s.queue == nil || s.indexer == nil {
		err := errors.New("indexing not configured")
		s.markUnscheduled(ctx, documentID, err)
		return err
	}
	if err := s.queue.Submit(ctx, s.indexer.Task(documentID)); err != nil {
		s.markUnscheduled(ctx, documentID, err)
		return fmt.Errorf("schedule indexing: %w", err)
	}
	return nil
}

// markUnscheduled records the scheduling failure even when ctx is already done.
func (s *DocumentService) markUnscheduled(ctx context.Context, documentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.docs.UpdateStatus(ctx, documentID, domain.StatusUpdate{
		Status: domain.StatusFailed,
		Error:  cause.Error(),
	}); err != nil {
		logger.Error("schedule: marking document %s failed: %v", documentID, err)
	}
}

// clearIndex removes the document's embeddings and chunks.
func (s *DocumentService) clearIndex(ctx context.Context, documentID string) error {
	if s.embeddings != nil {
		if err := s.embeddings.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("delete embeddings: %w", err)
		}
	}
	if err := s.docs.DeleteChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
