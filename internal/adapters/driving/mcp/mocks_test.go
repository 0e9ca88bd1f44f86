package mcp

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	response      *driving.QueryResponse
	view          *domain.ConversationView
	conversations []domain.Conversation
	err           error

	lastRequest driving.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req driving.QueryRequest) (*driving.QueryResponse, error) {
	m.lastRequest = req
	return m.response, m.err
}

func (m *mockQueryService) Conversation(_ context.Context, _, _ string) (*domain.ConversationView, error) {
	return m.view, m.err
}

func (m *mockQueryService) ListConversations(_ context.Context, _ string) ([]domain.Conversation, error) {
	return m.conversations, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	chunks    []domain.Chunk
	err       error

	uploaded        driving.UploadRequest
	uploadedContent string
}

func (m *mockDocumentService) Upload(_ context.Context, req driving.UploadRequest) (*domain.Document, error) {
	m.uploaded = req
	if req.Content != nil {
		data, _ := io.ReadAll(req.Content)
		m.uploadedContent = string(data)
	}
	return m.document, m.err
}

func (m *mockDocumentService) Get(_ context.Context, _, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, _ string) ([]domain.Document, error) {
	return m.documents, m.err
}

func (m *mockDocumentService) Chunks(_ context.Context, _, _ string) ([]domain.Chunk, error) {
	return m.chunks, m.err
}

func (m *mockDocumentService) Embedding(_ context.Context, _, _, _ string) ([]float32, error) {
	return nil, m.err
}

func (m *mockDocumentService) Delete(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockDocumentService) Reindex(_ context.Context, _, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func newTestServer(t testing.TB, q *mockQueryService, d *mockDocumentService) *Server {
	t.Helper()
	s, err := NewServer(&Ports{Query: q, Document: d, OwnerID: "alice"})
	require.NoError(t, err)
	return s
}
