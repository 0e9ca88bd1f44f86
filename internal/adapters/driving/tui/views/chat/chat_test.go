package chat

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

type stubQuery struct {
	response *driving.QueryResponse
	view     *domain.ConversationView
	err      error
	requests []driving.QueryRequest
}

func (s *stubQuery) Query(_ context.Context, req driving.QueryRequest) (*driving.QueryResponse, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func (s *stubQuery) Conversation(_ context.Context, _, _ string) (*domain.ConversationView, error) {
	return s.view, s.err
}

func (s *stubQuery) ListConversations(_ context.Context, _ string) ([]domain.Conversation, error) {
	return nil, s.err
}

func newChat(q *stubQuery) *View {
	v := NewView(nil, nil, Config{Query: q, OwnerID: "alice", DocumentIDs: []string{"doc-1"}})
	v.SetDimensions(100, 30)
	return v
}

func typeQuestion(v *View, q string) *View {
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	return v
}

func TestView_SendQuestion(t *testing.T) {
	q := &stubQuery{response: &driving.QueryResponse{
		Answer:         "Refunds take 5 days.",
		ConversationID: "conv-1",
		Sources:        []domain.Source{{DocumentID: "doc-1", DocumentTitle: "Policy", Similarity: 0.91}},
		State:          domain.MessageFinal,
	}}
	v := typeQuestion(newChat(q), "How long do refunds take?")

	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, v.Pending())
	assert.Contains(t, v.View(), "Thinking...")

	msg := cmd()
	answer, ok := msg.(messages.AnswerReceived)
	require.True(t, ok)
	require.Len(t, q.requests, 1)
	assert.True(t, q.requests[0].Wait)
	assert.Equal(t, "alice", q.requests[0].OwnerID)
	assert.Equal(t, []string{"doc-1"}, q.requests[0].DocumentIDs)

	v, _ = v.Update(answer)
	assert.False(t, v.Pending())
	assert.Equal(t, "conv-1", v.ConversationID())
	assert.Equal(t, 1, v.Turns())

	view := v.View()
	assert.Contains(t, view, "Refunds take 5 days.")
	assert.Contains(t, view, "[1] Policy (0.91)")
}

func TestView_FollowUpUsesConversation(t *testing.T) {
	q := &stubQuery{response: &driving.QueryResponse{Answer: "a", ConversationID: "conv-1"}}
	v := newChat(q)

	for _, question := range []string{"first", "second"} {
		v = typeQuestion(v, question)
		var cmd tea.Cmd
		v, cmd = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
		require.NotNil(t, cmd)
		v, _ = v.Update(cmd())
	}

	require.Len(t, q.requests, 2)
	assert.Equal(t, "", q.requests[0].ConversationID)
	assert.Equal(t, "conv-1", q.requests[1].ConversationID)
	assert.Equal(t, 2, v.Turns())
}

func TestView_BlankQuestionIgnored(t *testing.T) {
	v := typeQuestion(newChat(&stubQuery{}), "   ")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, 0, v.Turns())
}

func TestView_SendWhilePendingIgnored(t *testing.T) {
	v := typeQuestion(newChat(&stubQuery{}), "first")
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v = typeQuestion(v, "second")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Equal(t, 1, v.Turns())
}

func TestView_QueryErrorRestoresQuestion(t *testing.T) {
	q := &stubQuery{err: domain.ErrDocumentsNotReady}
	v := typeQuestion(newChat(q), "why?")
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	v, _ = v.Update(cmd())

	assert.ErrorIs(t, v.Err(), domain.ErrDocumentsNotReady)
	assert.Equal(t, 0, v.Turns())
	assert.Equal(t, "why?", v.input.Value())
	assert.Contains(t, v.View(), "Error:")
}

func TestView_NilQueryService(t *testing.T) {
	v := NewView(nil, nil, Config{OwnerID: "alice"})
	v.SetDimensions(80, 24)
	v = typeQuestion(v, "q")
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	v, _ = v.Update(cmd())

	assert.ErrorIs(t, v.Err(), ErrNoQueryService)
}

func TestView_NewConversationResets(t *testing.T) {
	q := &stubQuery{response: &driving.QueryResponse{Answer: "a", ConversationID: "conv-1"}}
	v := typeQuestion(newChat(q), "first")
	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	v, _ = v.Update(cmd())

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyCtrlN})

	assert.Equal(t, "", v.ConversationID())
	assert.Equal(t, 0, v.Turns())
	assert.Contains(t, v.View(), "New conversation")
}

func TestView_QuitKeys(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		v := newChat(&stubQuery{})

		_, cmd := v.Update(tea.KeyMsg{Type: k})

		require.NotNil(t, cmd)
		assert.Equal(t, messages.Quit{}, cmd())
	}
}

func TestView_ResumeConversation(t *testing.T) {
	q := &stubQuery{view: &domain.ConversationView{
		Conversation: domain.Conversation{ID: "conv-9", Title: "Old chat"},
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "hello?"},
			{Role: domain.RoleAssistant, Content: "hi there", State: domain.MessageFinal},
			{Role: domain.RoleUser, Content: "more?"},
			{Role: domain.RoleAssistant, Content: domain.PlaceholderAnswer, State: domain.MessageDraft},
		},
	}}
	v := NewView(nil, nil, Config{Query: q, OwnerID: "alice", ConversationID: "conv-9"})
	v.SetDimensions(100, 30)

	msg := v.loadConversation("conv-9")()
	v, _ = v.Update(msg)

	assert.Equal(t, 2, v.Turns())
	assert.False(t, v.Pending())
	assert.Contains(t, v.View(), "hi there")
	assert.Contains(t, v.View(), "Old chat")
}

func TestView_ResumeConversationError(t *testing.T) {
	v := newChat(&stubQuery{})

	v, _ = v.Update(messages.ConversationLoaded{Err: errors.New("not found")})

	assert.EqualError(t, v.Err(), "not found")
}

func TestView_NotReady(t *testing.T) {
	v := NewView(nil, nil, Config{})

	assert.False(t, v.Ready())
	assert.Equal(t, "Initialising...", v.View())
}
