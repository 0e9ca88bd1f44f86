package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure ConversationStore implements the interface.
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore is an in-memory implementation of driven.ConversationStore.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	messages      map[string]domain.Message
	order         map[string][]string // conversation ID -> message IDs by seq
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string]domain.Message),
		order:         make(map[string][]string),
	}
}

// CreateConversation stores a new conversation.
func (s *ConversationStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.conversations[conv.ID] = *conv
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *ConversationStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &conv, nil
}

// ListConversations returns the conversations of an owner, most recently updated first.
func (s *ConversationStore) ListConversations(_ context.Context, ownerID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Conversation
	for _, conv := range s.conversations {
		if conv.OwnerID == ownerID {
			result = append(result, conv)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// AppendMessage adds a message and assigns its Seq.
func (s *ConversationStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.messages[msg.ID]; ok {
		return domain.ErrAlreadyExists
	}

	msg.Seq = int64(len(s.order[msg.ConversationID]) + 1)
	s.messages[msg.ID] = cloneMessage(*msg)
	s.order[msg.ConversationID] = append(s.order[msg.ConversationID], msg.ID)

	conv.UpdatedAt = msg.CreatedAt
	s.conversations[conv.ID] = conv
	return nil
}

// GetMessage retrieves a message by ID.
func (s *ConversationStore) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	msg = cloneMessage(msg)
	return &msg, nil
}

// ListMessages returns a conversation's messages in creation order.
func (s *ConversationStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order[conversationID]
	result := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneMessage(s.messages[id]))
	}
	return result, nil
}

// FinalizeMessage writes the final content of a draft message.
func (s *ConversationStore) FinalizeMessage(_ context.Context, id, content string, sources []domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !msg.IsDraft() {
		return domain.ErrMessageFinalized
	}

	now := time.Now()
	msg.Content = content
	msg.Sources = append([]domain.Source(nil), sources...)
	if len(msg.Sources) == 0 {
		msg.Sources = nil
	}
	msg.State = domain.MessageFinal
	msg.UpdatedAt = now
	s.messages[id] = msg

	if conv, ok := s.conversations[msg.ConversationID]; ok {
		conv.UpdatedAt = now
		s.conversations[conv.ID] = conv
	}
	return nil
}

func cloneMessage(m domain.Message) domain.Message {
	if m.Sources != nil {
		m.Sources = append([]domain.Source(nil), m.Sources...)
	}
	return m
}
