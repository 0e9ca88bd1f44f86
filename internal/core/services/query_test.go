package services

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

type queryHarness struct {
	docs   *memory.DocumentStore
	embeds *memory.EmbeddingStore
	convs  *memory.ConversationStore
	queue  *syncQueue
	llm    *fakeLLM
	svc    *QueryService
}

func newQueryHarness(t *testing.T, embedder *fakeEmbedder, llm *fakeLLM) *queryHarness {
	t.Helper()
	h := &queryHarness{
		docs:   memory.NewDocumentStore(),
		embeds: memory.NewEmbeddingStore(),
		convs:  memory.NewConversationStore(),
		queue:  &syncQueue{},
		llm:    llm,
	}
	retriever := NewRetriever(h.docs, h.embeds, embedder, domain.RetrievalSettings{TopK: 5, Threshold: 0.5})
	h.svc = NewQueryService(h.docs, h.convs, retriever, NewResponder(llm), h.queue,
		WithMaxAttempts(3), WithRetryBaseDelay(time.Millisecond))
	return h
}

func (h *queryHarness) ask(t *testing.T, req driving.QueryRequest) *driving.QueryResponse {
	t.Helper()
	if req.OwnerID == "" {
		req.OwnerID = "alice"
	}
	resp, err := h.svc.Query(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func TestQuery_ScenarioB_NoIndexedDocuments(t *testing.T) {
	llm := &fakeLLM{reply: "made up"}
	h := newQueryHarness(t, constEmbedder(1, 0), llm)

	resp := h.ask(t, driving.QueryRequest{Question: "What is in my documents?", Wait: true})

	assert.Equal(t, domain.NoRelevantInformationAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
	assert.Equal(t, domain.MessageFinal, resp.State)
	assert.Empty(t, llm.Prompts())
	assert.NoError(t, h.queue.LastErr())
}

func TestQuery_ScenarioC_EmbeddingConnectionFailure(t *testing.T) {
	embedder := refusedEmbedder()
	h := newQueryHarness(t, embedder, &fakeLLM{reply: "unused"})
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "d1", title: "Doc", vectors: [][]float32{{1, 0}}})

	resp := h.ask(t, driving.QueryRequest{Question: "Will this work?", Wait: true})

	assert.Equal(t, domain.ConnectionApology, resp.Answer)
	assert.Equal(t, domain.MessageFinal, resp.State)
	assert.Equal(t, 3, embedder.Calls())

	taskErr := h.queue.LastErr()
	require.Error(t, taskErr)
	assert.ErrorIs(t, taskErr, domain.ErrEmbeddingProvider)

	view, err := h.svc.Conversation(context.Background(), "alice", resp.ConversationID)
	require.NoError(t, err)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, domain.ConnectionApology, view.Messages[1].Content)
	assert.False(t, view.Messages[1].IsDraft())
}

func TestQuery_LLMTimeoutApology(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{err: context.DeadlineExceeded})
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "d1", title: "Doc", vectors: [][]float32{{1, 0}}})

	resp := h.ask(t, driving.QueryRequest{Question: "slow?", Wait: true})

	assert.Equal(t, domain.TimeoutApology, resp.Answer)
	assert.Len(t, h.llm.Prompts(), 3)
	assert.Error(t, h.queue.LastErr())
}

func TestQuery_AnswersWithSources(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{reply: "The answer."})
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "d1", title: "Handbook", vectors: [][]float32{{1, 0}, {0, 1}}})

	resp := h.ask(t, driving.QueryRequest{Question: "What does the handbook say?", Wait: true})

	assert.Equal(t, "The answer.", resp.Answer)
	assert.Equal(t, domain.MessageFinal, resp.State)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "d1", resp.Sources[0].DocumentID)
	assert.Equal(t, "Handbook", resp.Sources[0].DocumentTitle)
	assert.Equal(t, "d1-c0", resp.Sources[0].ChunkID)
	assert.InDelta(t, 1.0, resp.Sources[0].Similarity, 1e-9)
}

func TestQuery_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	embedder := &fakeEmbedder{fn: func(string) ([]float32, error) {
		if calls.Add(1) < 3 {
			return nil, connectionRefused()
		}
		return []float32{1, 0}, nil
	}}
	h := newQueryHarness(t, embedder, &fakeLLM{reply: "Recovered."})
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "d1", vectors: [][]float32{{1, 0}}})

	resp := h.ask(t, driving.QueryRequest{Question: "q", Wait: true})

	assert.Equal(t, "Recovered.", resp.Answer)
	assert.NoError(t, h.queue.LastErr())
}

func TestQuery_WithoutWaitReturnsAcknowledgement(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{reply: "Later."})

	resp := h.ask(t, driving.QueryRequest{Question: "q"})

	assert.Equal(t, domain.ProcessingAcknowledgement, resp.Answer)
	assert.Equal(t, domain.MessageDraft, resp.State)
	assert.NotEmpty(t, resp.ConversationID)
	assert.NotEmpty(t, resp.MessageID)
}

func TestQuery_NewConversationTitle(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{})
	question := strings.Repeat("a", 60)

	resp := h.ask(t, driving.QueryRequest{Question: question, Wait: true})

	view, err := h.svc.Conversation(context.Background(), "alice", resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", view.Conversation.Title)
	assert.Equal(t, domain.RoleUser, view.Messages[0].Role)
	assert.Equal(t, question, view.Messages[0].Content)
}

func TestQuery_HistoryExcludesCurrentQuestion(t *testing.T) {
	llm := &fakeLLM{reply: "Fine."}
	h := newQueryHarness(t, constEmbedder(1, 0), llm)
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "d1", title: "Doc", vectors: [][]float32{{1, 0}}})

	first := h.ask(t, driving.QueryRequest{Question: "First question", Wait: true})
	h.ask(t, driving.QueryRequest{Question: "Second question", ConversationID: first.ConversationID, Wait: true})

	prompts := llm.Prompts()
	require.Len(t, prompts, 2)
	assert.NotContains(t, prompts[0], "Previous conversation:")
	assert.Contains(t, prompts[1], "Previous conversation:\n\nHuman: First question\n\nAssistant: Fine.\n\n")
	assert.Contains(t, prompts[1], "Human question: Second question\n\n")
	assert.NotContains(t, prompts[1], "Human: Second question")
}

func TestQuery_Validation(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{})
	ctx := context.Background()
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "mine", vectors: [][]float32{{1, 0}}})
	seedIndexed(t, h.docs, h.embeds, indexedDoc{id: "bobs", owner: "bob", vectors: [][]float32{{1, 0}}})
	require.NoError(t, h.docs.SaveDocument(ctx, &domain.Document{ID: "pending", OwnerID: "alice", Status: domain.StatusPending}))
	bobConv := h.ask(t, driving.QueryRequest{OwnerID: "bob", Question: "hi"})

	tests := []struct {
		name    string
		req     driving.QueryRequest
		wantErr error
		wantMsg string
	}{
		{"empty question", driving.QueryRequest{Question: "  "}, domain.ErrInvalidInput, ""},
		{"unknown conversation", driving.QueryRequest{Question: "q", ConversationID: "nope"}, domain.ErrNotFound, ""},
		{"foreign conversation", driving.QueryRequest{Question: "q", ConversationID: bobConv.ConversationID}, domain.ErrPermissionDenied, ""},
		{"missing document", driving.QueryRequest{Question: "q", DocumentIDs: []string{"mine", "ghost"}}, domain.ErrDocumentsNotReady, ""},
		{"unindexed document", driving.QueryRequest{Question: "q", DocumentIDs: []string{"pending"}}, domain.ErrDocumentsNotReady, ""},
		{"foreign document", driving.QueryRequest{Question: "q", DocumentIDs: []string{"bobs"}}, domain.ErrPermissionDenied, "not enough permissions for document bobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.OwnerID = "alice"
			_, err := h.svc.Query(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}

	convs, err := h.svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, convs, "rejected queries must not start conversations")
}

func TestQuery_ConversationOwnerCheck(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{})
	resp := h.ask(t, driving.QueryRequest{Question: "q"})

	_, err := h.svc.Conversation(context.Background(), "bob", resp.ConversationID)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	convs, err := h.svc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestQuery_ScheduleFailureFinalizesDraft(t *testing.T) {
	h := newQueryHarness(t, constEmbedder(1, 0), &fakeLLM{})
	h.queue.submitErr = assert.AnError

	_, err := h.svc.Query(context.Background(), driving.QueryRequest{OwnerID: "alice", Question: "q"})
	require.Error(t, err)

	convs, err := h.svc.ListConversations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	view, err := h.svc.Conversation(context.Background(), "alice", convs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenericApology, view.Messages[1].Content)
}
