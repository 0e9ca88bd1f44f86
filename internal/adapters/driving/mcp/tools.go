package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question       string   `json:"question" jsonschema:"the question to answer from the indexed documents"`
	ConversationID string   `json:"conversation_id,omitempty" jsonschema:"continue an existing conversation"`
	DocumentIDs    []string `json:"document_ids,omitempty" jsonschema:"restrict the search to these documents"`
	MaxDocuments   int      `json:"max_documents,omitempty" jsonschema:"number of chunks to retrieve (default 5)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer         string          `json:"answer"`
	ConversationID string          `json:"conversation_id"`
	MessageID      string          `json:"message_id"`
	Sources        []domain.Source `json:"sources"`
}

// DocumentOutput describes one document.
type DocumentOutput struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	FileType   string    `json:"file_type"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListDocumentsInput is the input schema for the list_documents tool.
type ListDocumentsInput struct {
	Status string `json:"status,omitempty" jsonschema:"only return documents in this processing status"`
}

// ListDocumentsOutput is the output schema for the list_documents tool.
type ListDocumentsOutput struct {
	Documents []DocumentOutput `json:"documents"`
	Count     int              `json:"count"`
}

// UploadDocumentInput is the input schema for the upload_document tool.
type UploadDocumentInput struct {
	Filename      string `json:"filename" jsonschema:"file name; the extension selects pdf, txt, docx or md"`
	Content       string `json:"content,omitempty" jsonschema:"text content of the file"`
	ContentBase64 string `json:"content_base64,omitempty" jsonschema:"base64 encoded content for binary files"`
	Title         string `json:"title,omitempty" jsonschema:"document title (defaults to the file name)"`
	Description   string `json:"description,omitempty" jsonschema:"optional description"`
}

// GetConversationInput is the input schema for the get_conversation tool.
type GetConversationInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"the conversation to fetch"`
}

// MessageOutput is one message of a conversation.
type MessageOutput struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content string          `json:"content"`
	State   string          `json:"state"`
	Sources []domain.Source `json:"sources,omitempty"`
}

// ConversationOutput is the output schema for the get_conversation tool.
type ConversationOutput struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Messages []MessageOutput `json:"messages"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question using the indexed documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_documents",
		Description: "List uploaded documents with their processing status",
	}, s.handleListDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "upload_document",
		Description: "Upload a document and schedule it for indexing",
	}, s.handleUploadDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Fetch a conversation with all its messages",
	}, s.handleGetConversation)
}

// handleAsk handles the ask tool invocation. It waits for the final answer.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	resp, err := s.ports.Query.Query(ctx, driving.QueryRequest{
		OwnerID:        s.ports.OwnerID,
		Question:       input.Question,
		ConversationID: input.ConversationID,
		DocumentIDs:    input.DocumentIDs,
		MaxDocuments:   input.MaxDocuments,
		Wait:           true,
	})
	if err != nil {
		return nil, AskOutput{}, err
	}

	sources := resp.Sources
	if sources == nil {
		sources = []domain.Source{}
	}

	return nil, AskOutput{
		Answer:         resp.Answer,
		ConversationID: resp.ConversationID,
		MessageID:      resp.MessageID,
		Sources:        sources,
	}, nil
}

// handleListDocuments handles the list_documents tool invocation.
func (s *Server) handleListDocuments(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	docs, err := s.ports.Document.List(ctx, s.ports.OwnerID)
	if err != nil {
		return nil, ListDocumentsOutput{}, err
	}

	output := ListDocumentsOutput{Documents: []DocumentOutput{}}
	for i := range docs {
		if input.Status != "" && string(docs[i].Status) != input.Status {
			continue
		}
		output.Documents = append(output.Documents, toDocumentOutput(&docs[i]))
	}
	output.Count = len(output.Documents)

	return nil, output, nil
}

// handleUploadDocument handles the upload_document tool invocation.
func (s *Server) handleUploadDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UploadDocumentInput,
) (*mcp.CallToolResult, DocumentOutput, error) {
	var content io.Reader
	switch {
	case input.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(input.ContentBase64)
		if err != nil {
			return nil, DocumentOutput{}, fmt.Errorf("%w: content_base64: %v", domain.ErrInvalidInput, err)
		}
		content = bytes.NewReader(data)
	case input.Content != "":
		content = strings.NewReader(input.Content)
	default:
		return nil, DocumentOutput{}, fmt.Errorf("%w: content is required", domain.ErrInvalidInput)
	}

	doc, err := s.ports.Document.Upload(ctx, driving.UploadRequest{
		OwnerID:     s.ports.OwnerID,
		Title:       input.Title,
		Description: input.Description,
		Filename:    input.Filename,
		Content:     content,
	})
	if err != nil {
		return nil, DocumentOutput{}, err
	}

	return nil, toDocumentOutput(doc), nil
}

// handleGetConversation handles the get_conversation tool invocation.
func (s *Server) handleGetConversation(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetConversationInput,
) (*mcp.CallToolResult, ConversationOutput, error) {
	view, err := s.ports.Query.Conversation(ctx, s.ports.OwnerID, input.ConversationID)
	if err != nil {
		return nil, ConversationOutput{}, err
	}
	return nil, toConversationOutput(view), nil
}

func toDocumentOutput(doc *domain.Document) DocumentOutput {
	return DocumentOutput{
		ID:         doc.ID,
		Title:      doc.Title,
		FileType:   doc.FileType.String(),
		Status:     doc.Status.String(),
		Error:      doc.Error,
		ChunkCount: doc.ChunkCount,
		CreatedAt:  doc.CreatedAt,
	}
}

func toConversationOutput(view *domain.ConversationView) ConversationOutput {
	out := ConversationOutput{
		ID:       view.Conversation.ID,
		Title:    view.Conversation.Title,
		Messages: make([]MessageOutput, len(view.Messages)),
	}
	for i := range view.Messages {
		m := &view.Messages[i]
		out.Messages[i] = MessageOutput{
			ID:      m.ID,
			Role:    string(m.Role),
			Content: m.Content,
			State:   string(m.State),
			Sources: m.Sources,
		}
	}
	return out
}
