package driving

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// QueryService answers questions over indexed documents.
type QueryService interface {
	// Query validates the request, records the question and schedules the answer.
	// With Wait set it blocks until the answer has been written.
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)

	// Conversation returns a conversation with its messages.
	Conversation(ctx context.Context, ownerID, conversationID string) (*domain.ConversationView, error)

	// ListConversations returns the owner's conversations, most recent first.
	ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)
}

// QueryRequest is a question to answer.
type QueryRequest struct {
	// OwnerID is the asking user.
	OwnerID string

	// Question is the free-text question.
	Question string

	// ConversationID continues an existing conversation. Empty starts a new one.
	ConversationID string

	// DocumentIDs restricts retrieval to these documents. Empty searches all.
	DocumentIDs []string

	// MaxDocuments overrides the number of chunks retrieved. Zero uses the default.
	MaxDocuments int

	// Wait blocks until the answer is final.
	Wait bool
}

// QueryResponse is the outcome of a query.
type QueryResponse struct {
	// Answer is the generated text, or an acknowledgement while the answer is pending.
	Answer string

	ConversationID string
	MessageID      string

	// Sources lists the chunks the answer was based on.
	Sources []domain.Source

	// State is draft while the answer is pending.
	State domain.MessageState
}
