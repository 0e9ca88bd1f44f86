package domain

import (
	"time"
	"unicode/utf8"
)

// conversationTitleLimit is the number of runes of the opening question kept as a title.
const conversationTitleLimit = 50

// Conversation is an ordered exchange of messages owned by one user.
type Conversation struct {
	// ID is the unique identifier for the conversation.
	ID string

	// Title is derived from the first question asked.
	Title string

	// OwnerID identifies the user the conversation belongs to.
	OwnerID string

	// CreatedAt is when the conversation was started.
	CreatedAt time.Time

	// UpdatedAt is when a message was last added or finalized.
	UpdatedAt time.Time
}

// ConversationTitle derives a conversation title from its opening question.
func ConversationTitle(question string) string {
	if utf8.RuneCountInString(question) <= conversationTitleLimit {
		return question
	}
	runes := []rune(question)
	return string(runes[:conversationTitleLimit]) + "..."
}

// MessageRole identifies who authored a message.
type MessageRole string

// Message roles.
const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// MessageState is the phase of a message.
// Assistant messages start as drafts and are finalized exactly once.
type MessageState string

// Message states.
const (
	MessageDraft MessageState = "draft"
	MessageFinal MessageState = "final"
)

// Message is one turn of a conversation.
type Message struct {
	// ID is the unique identifier for the message.
	ID string

	// ConversationID links to the parent Conversation.
	ConversationID string

	// Role is user or assistant.
	Role MessageRole

	// Content is the message text. For a draft it is placeholder text.
	Content string

	// Sources lists the chunks used to produce an assistant answer.
	Sources []Source

	// State is draft until the answer has been written.
	State MessageState

	// Seq is the creation order within the conversation, starting at 1.
	Seq int64

	// CreatedAt is when the message was appended.
	CreatedAt time.Time

	// UpdatedAt is when the message was finalized.
	UpdatedAt time.Time
}

// IsDraft reports whether the message is still awaiting its final content.
func (m *Message) IsDraft() bool {
	return m.State == MessageDraft
}

// Source records a chunk that contributed to an answer.
// Similarity is a snapshot taken when the answer was generated.
type Source struct {
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	ChunkID       string  `json:"chunk_id"`
	Similarity    float64 `json:"similarity"`
}

// ConversationView is a conversation together with its messages in order.
type ConversationView struct {
	Conversation Conversation
	Messages     []Message
}

// Fixed texts written into conversations.
const (
	// PlaceholderAnswer is the content of an assistant draft.
	PlaceholderAnswer = "Processing your query..."

	// ProcessingAcknowledgement is returned to callers that do not wait for the answer.
	ProcessingAcknowledgement = "Your query is being processed. Please check the conversation for the response."

	// NoRelevantInformationAnswer is written when retrieval finds nothing above the threshold.
	NoRelevantInformationAnswer = "I couldn't find any relevant information in your documents to answer this question."

	// EmptyAnswerApology is written when the language model returns no text.
	EmptyAnswerApology = "I'm sorry, but I encountered an issue while processing your query. Please try again later."

	// ConnectionApology is written when the AI provider could not be reached.
	ConnectionApology = "I'm sorry, but I couldn't connect to the AI service to answer your query. Please try again later."

	// TimeoutApology is written when the AI provider did not respond in time.
	TimeoutApology = "I'm sorry, but the AI service took too long to answer your query. Please try again later."

	// GenericApology is written for any other failure.
	GenericApology = "I'm sorry, but an error occurred while processing your query. Please try again later."
)
