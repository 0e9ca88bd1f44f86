package driven

import (
	"context"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
type DocumentStore interface {
	// SaveDocument creates or replaces a document record.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns the documents of an owner, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)

	// ClaimDocument atomically moves a document from pending to processing.
	// Returns false without error when the document is in any other state.
	ClaimDocument(ctx context.Context, id string) (bool, error)

	// UpdateStatus writes a state transition.
	UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) error

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// SaveChunk writes one chunk.
	SaveChunk(ctx context.Context, chunk *domain.Chunk) error

	// SetChunkEmbedding records the embedding reference of a chunk.
	SetChunkEmbedding(ctx context.Context, chunkID, ref string) error

	// GetChunks returns the chunks of a document ordered by index.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteChunks removes every chunk of a document.
	DeleteChunks(ctx context.Context, documentID string) error
}

// ConversationStore persists conversations and messages.
type ConversationStore interface {
	// CreateConversation stores a new conversation.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// ListConversations returns the conversations of an owner, most recently updated first.
	ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error)

	// AppendMessage adds a message to its conversation and assigns its Seq.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// ListMessages returns a conversation's messages in creation order.
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)

	// FinalizeMessage writes the final content of a draft message.
	// Returns domain.ErrMessageFinalized if the message is no longer a draft.
	FinalizeMessage(ctx context.Context, id, content string, sources []domain.Source) error
}
