package mcp

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("waits for the answer and returns sources", func(t *testing.T) {
		q := &mockQueryService{response: &driving.QueryResponse{
			Answer:         "42",
			ConversationID: "conv-1",
			MessageID:      "msg-2",
			Sources:        []domain.Source{{DocumentID: "doc-1", ChunkID: "c1", Similarity: 0.9}},
			State:          domain.MessageFinal,
		}}
		server := newTestServer(t, q, &mockDocumentService{})

		_, out, err := server.handleAsk(ctx, nil, AskInput{
			Question:     "what?",
			DocumentIDs:  []string{"doc-1"},
			MaxDocuments: 3,
		})

		require.NoError(t, err)
		assert.Equal(t, "42", out.Answer)
		assert.Equal(t, "conv-1", out.ConversationID)
		assert.Len(t, out.Sources, 1)
		assert.True(t, q.lastRequest.Wait)
		assert.Equal(t, "alice", q.lastRequest.OwnerID)
		assert.Equal(t, 3, q.lastRequest.MaxDocuments)
	})

	t.Run("nil sources become empty", func(t *testing.T) {
		q := &mockQueryService{response: &driving.QueryResponse{Answer: domain.NoRelevantInformationAnswer}}
		server := newTestServer(t, q, &mockDocumentService{})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "what?"})

		require.NoError(t, err)
		assert.NotNil(t, out.Sources)
		assert.Empty(t, out.Sources)
	})

	t.Run("returns query errors", func(t *testing.T) {
		q := &mockQueryService{err: domain.ErrDocumentsNotReady}
		server := newTestServer(t, q, &mockDocumentService{})

		_, _, err := server.handleAsk(ctx, nil, AskInput{Question: "what?", DocumentIDs: []string{"x"}})

		assert.ErrorIs(t, err, domain.ErrDocumentsNotReady)
	})
}

func TestServer_handleListDocuments(t *testing.T) {
	ctx := context.Background()
	d := &mockDocumentService{documents: []domain.Document{
		{ID: "a", Title: "A", FileType: domain.FileTypeText, Status: domain.StatusCompleted, ChunkCount: 2},
		{ID: "b", Title: "B", FileType: domain.FileTypePDF, Status: domain.StatusFailed, Error: "boom"},
	}}
	server := newTestServer(t, &mockQueryService{}, d)

	t.Run("lists all", func(t *testing.T) {
		_, out, err := server.handleListDocuments(ctx, nil, ListDocumentsInput{})

		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "txt", out.Documents[0].FileType)
		assert.Equal(t, 2, out.Documents[0].ChunkCount)
	})

	t.Run("filters by status", func(t *testing.T) {
		_, out, err := server.handleListDocuments(ctx, nil, ListDocumentsInput{Status: "failed"})

		require.NoError(t, err)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, "b", out.Documents[0].ID)
		assert.Equal(t, "boom", out.Documents[0].Error)
	})
}

func TestServer_handleUploadDocument(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads text content", func(t *testing.T) {
		d := &mockDocumentService{document: &domain.Document{ID: "doc-1", Status: domain.StatusPending}}
		server := newTestServer(t, &mockQueryService{}, d)

		_, out, err := server.handleUploadDocument(ctx, nil, UploadDocumentInput{
			Filename: "notes.md",
			Content:  "# Notes",
			Title:    "My notes",
		})

		require.NoError(t, err)
		assert.Equal(t, "doc-1", out.ID)
		assert.Equal(t, "pending", out.Status)
		assert.Equal(t, "notes.md", d.uploaded.Filename)
		assert.Equal(t, "My notes", d.uploaded.Title)
		assert.Equal(t, "alice", d.uploaded.OwnerID)
		assert.Equal(t, "# Notes", d.uploadedContent)
	})

	t.Run("decodes base64 content", func(t *testing.T) {
		d := &mockDocumentService{document: &domain.Document{ID: "doc-2"}}
		server := newTestServer(t, &mockQueryService{}, d)

		_, _, err := server.handleUploadDocument(ctx, nil, UploadDocumentInput{
			Filename:      "a.pdf",
			ContentBase64: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")),
		})

		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", d.uploadedContent)
	})

	t.Run("rejects bad base64", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{}, &mockDocumentService{})

		_, _, err := server.handleUploadDocument(ctx, nil, UploadDocumentInput{
			Filename:      "a.pdf",
			ContentBase64: "!!!",
		})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects missing content", func(t *testing.T) {
		server := newTestServer(t, &mockQueryService{}, &mockDocumentService{})

		_, _, err := server.handleUploadDocument(ctx, nil, UploadDocumentInput{Filename: "a.txt"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("returns upload errors", func(t *testing.T) {
		d := &mockDocumentService{err: domain.ErrUnsupportedFileType}
		server := newTestServer(t, &mockQueryService{}, d)

		_, _, err := server.handleUploadDocument(ctx, nil, UploadDocumentInput{Filename: "a.exe", Content: "x"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
	})
}

func TestServer_handleGetConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("returns messages in order", func(t *testing.T) {
		q := &mockQueryService{view: &domain.ConversationView{
			Conversation: domain.Conversation{ID: "conv-1", Title: "What?"},
			Messages: []domain.Message{
				{ID: "m1", Role: domain.RoleUser, Content: "What?", State: domain.MessageFinal},
				{ID: "m2", Role: domain.RoleAssistant, Content: domain.PlaceholderAnswer, State: domain.MessageDraft},
			},
		}}
		server := newTestServer(t, q, &mockDocumentService{})

		_, out, err := server.handleGetConversation(ctx, nil, GetConversationInput{ConversationID: "conv-1"})

		require.NoError(t, err)
		assert.Equal(t, "What?", out.Title)
		require.Len(t, out.Messages, 2)
		assert.Equal(t, "user", out.Messages[0].Role)
		assert.Equal(t, "draft", out.Messages[1].State)
	})

	t.Run("returns errors", func(t *testing.T) {
		q := &mockQueryService{err: errors.New("boom")}
		server := newTestServer(t, q, &mockDocumentService{})

		_, _, err := server.handleGetConversation(ctx, nil, GetConversationInput{ConversationID: "x"})

		assert.Error(t, err)
	})
}
