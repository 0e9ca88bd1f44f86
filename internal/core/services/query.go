package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryService records questions and answers them in the background.
type QueryService struct {
	docs          driven.DocumentStore
	conversations driven.ConversationStore
	retriever     *Retriever
	responder     *Responder
	queue         driven.TaskQueue
	maxAttempts   int
	baseDelay     time.Duration
}

// QueryOption configures a QueryService.
type QueryOption func(*QueryService)

// WithMaxAttempts bounds the attempts of each answer.
func WithMaxAttempts(n int) QueryOption {
	return func(s *QueryService) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay sets the wait before the second attempt.
func WithRetryBaseDelay(d time.Duration) QueryOption {
	return func(s *QueryService) {
		if d >= 0 {
			s.baseDelay = d
		}
	}
}

// NewQueryService creates a new query service.
func NewQueryService(
	docs driven.DocumentStore,
	conversations driven.ConversationStore,
	retriever *Retriever,
	responder *Responder,
	queue driven.TaskQueue,
	opts ...QueryOption,
) *QueryService {
	s := &QueryService{
		docs:          docs,
		conversations: conversations,
		retriever:     retriever,
		responder:     responder,
		queue:         queue,
		maxAttempts:   domain.DefaultMaxAttempts,
		baseDelay:     DefaultRetryBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// answerJob carries what the background task needs to answer one question.
type answerJob struct {
	ownerID        string
	question       string
	conversationID string
	messageID      string
	questionSeq    int64
	documentIDs    []string
	maxDocuments   int
}

// Query validates the request, records the question with a draft answer
// and schedules the answer task.
func (s *QueryService) Query(ctx context.Context, req driving.QueryRequest) (*driving.QueryResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if req.MaxDocuments < 0 {
		return nil, fmt.Errorf("%w: max documents must not be negative", domain.ErrInvalidInput)
	}

	var conv *domain.Conversation
	if req.ConversationID != "" {
		c, err := s.conversations.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", req.ConversationID, err)
		}
		if c.OwnerID != req.OwnerID {
			return nil, domain.ErrPermissionDenied
		}
		conv = c
	}

	if err := s.checkDocuments(ctx, req.OwnerID, req.DocumentIDs); err != nil {
		return nil, err
	}

	if conv == nil {
		now := time.Now()
		conv = &domain.Conversation{
			ID:        uuid.NewString(),
			Title:     domain.ConversationTitle(question),
			OwnerID:   req.OwnerID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.conversations.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	userMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        question,
		State:          domain.MessageFinal,
		CreatedAt:      time.Now(),
	}
	if err := s.conversations.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("record question: %w", err)
	}

	draft := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        domain.PlaceholderAnswer,
		State:          domain.MessageDraft,
		CreatedAt:      time.Now(),
	}
	if err := s.conversations.AppendMessage(ctx, draft); err != nil {
		return nil, fmt.Errorf("record draft answer: %w", err)
	}

	job := answerJob{
		ownerID:        req.OwnerID,
		question:       question,
		conversationID: conv.ID,
		messageID:      draft.ID,
		questionSeq:    userMsg.Seq,
		documentIDs:    req.DocumentIDs,
		maxDocuments:   req.MaxDocuments,
	}

	done := make(chan struct{})
	if err := s.submit(ctx, job, done); err != nil {
		return nil, err
	}

	if !req.Wait {
		return &driving.QueryResponse{
			Answer:         domain.ProcessingAcknowledgement,
			ConversationID: conv.ID,
			MessageID:      draft.ID,
			Sources:        []domain.Source{},
			State:          domain.MessageDraft,
		}, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	msg, err := s.conversations.GetMessage(ctx, draft.ID)
	if err != nil {
		return nil, fmt.Errorf("read answer: %w", err)
	}
	sources := msg.Sources
	if sources == nil {
		sources = []domain.Source{}
	}
	return &driving.QueryResponse{
		Answer:         msg.Content,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		Sources:        sources,
		State:          msg.State,
	}, nil
}

// checkDocuments requires every listed document to exist, be indexed and
// belong to ownerID.
func (s *QueryService) checkDocuments(ctx context.Context, ownerID string, ids []string) error {
	docs := make([]*domain.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := s.docs.GetDocument(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrDocumentsNotReady
		}
		if err != nil {
			return fmt.Errorf("get document %s: %w", id, err)
		}
		if !doc.Queryable() {
			return domain.ErrDocumentsNotReady
		}
		docs = append(docs, doc)
	}
	for _, doc := range docs {
		if doc.OwnerID != ownerID {
			return fmt.Errorf("%w for document %s", domain.ErrPermissionDenied, doc.ID)
		}
	}
	return nil
}

// submit schedules the answer task. done is closed when the task ends.
// If the task cannot be scheduled the draft is finalized with an apology.
func (s *QueryService) submit(ctx context.Context, job answerJob, done chan struct{}) error {
	task := driven.Task{
		Name: "answer " + job.messageID,
		Run: func(ctx context.Context) error {
			defer close(done)
			return s.answer(ctx, job)
		},
	}
	if s.queue == nil {
		close(done)
		s.finalize(ctx, job.messageID, domain.GenericApology, nil)
		return errors.New("query queue not configured")
	}
	if err := s.queue.Submit(ctx, task); err != nil {
		close(done)
		s.finalize(ctx, job.messageID, domain.ApologyFor(err), nil)
		return fmt.Errorf("schedule answer: %w", err)
	}
	return nil
}

// answer retrieves context and generates the answer, retrying with backoff.
// After the last attempt the draft is finalized with an apology matching
// the failure and the error is returned to the queue.
func (s *QueryService) answer(ctx context.Context, job answerJob) error {
	var (
		text    string
		sources []domain.Source
	)

	err := retryWithBackoff(ctx, s.maxAttempts, s.baseDelay, func(attempt int) error {
		logger.Debug("answer %s: attempt %d", job.messageID, attempt)

		if s.retriever == nil {
			return domain.ErrEmbeddingUnavailable
		}
		chunks, err := s.retriever.Retrieve(ctx, RetrieveRequest{
			OwnerID:     job.ownerID,
			Query:       job.question,
			DocumentIDs: job.documentIDs,
			TopK:        job.maxDocuments,
		})
		if err != nil {
			return fmt.Errorf("retrieve: %w", err)
		}

		history, err := s.history(ctx, job)
		if err != nil {
			return err
		}

		if s.responder == nil {
			return domain.ErrLLMUnavailable
		}
		text, sources, err = s.responder.Respond(ctx, job.question, history, chunks)
		if err != nil {
			return fmt.Errorf("respond: %w", err)
		}
		return nil
	})

	if err != nil {
		apology := domain.ApologyFor(err)
		logger.Error("answer %s failed after %d attempts: %v", job.messageID, s.maxAttempts, err)
		s.finalize(ctx, job.messageID, apology, nil)
		return fmt.Errorf("answer %s: %w", job.messageID, err)
	}

	if err := s.conversations.FinalizeMessage(ctx, job.messageID, text, sources); err != nil {
		return fmt.Errorf("finalize answer %s: %w", job.messageID, err)
	}
	logger.Info("answer %s written with %d sources", job.messageID, len(sources))
	return nil
}

// history returns the final messages written before the question.
func (s *QueryService) history(ctx context.Context, job answerJob) ([]domain.Message, error) {
	msgs, err := s.conversations.ListMessages(ctx, job.conversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Seq >= job.questionSeq {
			break
		}
		if m.IsDraft() {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// finalize writes an apology or fallback text, tolerating a message that
// was already finalized.
func (s *QueryService) finalize(ctx context.Context, messageID, content string, sources []domain.Source) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := s.conversations.FinalizeMessage(ctx, messageID, content, sources)
	if err != nil && !errors.Is(err, domain.ErrMessageFinalized) {
		logger.Error("finalize %s: %v", messageID, err)
	}
}

// Conversation returns a conversation owned by ownerID with its messages.
func (s *QueryService) Conversation(ctx context.Context, ownerID, conversationID string) (*domain.ConversationView, error) {
	conv, err := s.conversations.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != ownerID {
		return nil, domain.ErrPermissionDenied
	}
	msgs, err := s.conversations.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &domain.ConversationView{Conversation: *conv, Messages: msgs}, nil
}

// ListConversations returns the owner's conversations, most recent first.
func (s *QueryService) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	return s.conversations.ListConversations(ctx, ownerID)
}
