package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func newTestDocument(id, owner string) *domain.Document {
	now := time.Now().UTC().Truncate(time.Second)
	return &domain.Document{
		ID:               id,
		Title:            "Document " + id,
		Description:      "about " + id,
		FilePath:         id + ".txt",
		FileType:         domain.FileTypeText,
		OriginalFilename: id + ".txt",
		Status:           domain.StatusPending,
		OwnerID:          owner,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ==================== Store Creation ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "metadata.db"), store.Path())
	assert.FileExists(t, store.Path())
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.DocumentStore().SaveDocument(ctx, newTestDocument("d1", "alice")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.DocumentStore().GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Document d1", doc.Title)

	var versions int
	require.NoError(t, reopened.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

// ==================== Document Store ====================

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	want := newTestDocument("d1", "alice")
	require.NoError(t, docs.SaveDocument(ctx, want))

	got, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Description, got.Description)
	assert.Equal(t, want.FileType, got.FileType)
	assert.Equal(t, want.OriginalFilename, got.OriginalFilename)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, got.IsProcessed)
	assert.False(t, got.IsIndexed)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
}

func TestDocumentStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.DocumentStore().GetDocument(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListByOwnerNewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	older := newTestDocument("d1", "alice")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	require.NoError(t, docs.SaveDocument(ctx, older))
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d2", "alice")))
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d3", "bob")))

	list, err := docs.ListDocuments(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "d2", list[0].ID)
	assert.Equal(t, "d1", list[1].ID)

	none, err := docs.ListDocuments(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDocumentStore_ClaimIsExclusive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d1", "alice")))

	claimed, err := docs.ClaimDocument(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, claimed)

	again, err := docs.ClaimDocument(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, again)

	doc, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, doc.Status)

	_, err = docs.ClaimDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_UpdateStatus(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d1", "alice")))

	require.NoError(t, docs.UpdateStatus(ctx, "d1", domain.StatusUpdate{
		Status:      domain.StatusCompleted,
		IsProcessed: true,
		IsIndexed:   true,
		ChunkCount:  4,
	}))

	doc, err := docs.GetDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, doc.Status)
	assert.True(t, doc.Queryable())
	assert.Equal(t, 4, doc.ChunkCount)

	err = docs.UpdateStatus(ctx, "missing", domain.StatusUpdate{Status: domain.StatusFailed})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_Chunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d1", "alice")))

	for _, i := range []int{2, 0, 1} {
		require.NoError(t, docs.SaveChunk(ctx, &domain.Chunk{
			ID:         "c" + string(rune('0'+i)),
			DocumentID: "d1",
			Index:      i,
			Content:    "chunk content",
			CreatedAt:  time.Now(),
		}))
	}
	require.NoError(t, docs.SetChunkEmbedding(ctx, "c1", "doc_d1/chunk_c1"))

	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.False(t, chunks[0].HasEmbedding())
	assert.Equal(t, "doc_d1/chunk_c1", chunks[1].EmbeddingRef)

	assert.ErrorIs(t, docs.SetChunkEmbedding(ctx, "missing", "x"), domain.ErrNotFound)

	require.NoError(t, docs.DeleteChunks(ctx, "d1"))
	chunks, err = docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDocumentStore_DeleteRemovesChunks(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()
	require.NoError(t, docs.SaveDocument(ctx, newTestDocument("d1", "alice")))
	require.NoError(t, docs.SaveChunk(ctx, &domain.Chunk{ID: "c0", DocumentID: "d1", Content: "x", CreatedAt: time.Now()}))

	require.NoError(t, docs.DeleteDocument(ctx, "d1"))

	_, err := docs.GetDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	chunks, err := docs.GetChunks(ctx, "d1")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// ==================== Conversation Store ====================

func newTestConversation(t *testing.T, store *Store, id, owner string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, store.ConversationStore().CreateConversation(context.Background(), &domain.Conversation{
		ID: id, Title: "Title " + id, OwnerID: owner, CreatedAt: now, UpdatedAt: now,
	}))
}

func TestConversationStore_CreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	newTestConversation(t, store, "conv1", "alice")

	conv, err := store.ConversationStore().GetConversation(ctx, "conv1")
	require.NoError(t, err)
	assert.Equal(t, "alice", conv.OwnerID)
	assert.Equal(t, "Title conv1", conv.Title)

	err = store.ConversationStore().CreateConversation(ctx, &domain.Conversation{ID: "conv1", OwnerID: "bob"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	_, err = store.ConversationStore().GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_MessagesInOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	convs := store.ConversationStore()
	newTestConversation(t, store, "conv1", "alice")

	user := &domain.Message{
		ID: "m1", ConversationID: "conv1", Role: domain.RoleUser,
		Content: "What is Go?", State: domain.MessageFinal, CreatedAt: time.Now(),
	}
	draft := &domain.Message{
		ID: "m2", ConversationID: "conv1", Role: domain.RoleAssistant,
		Content: domain.PlaceholderAnswer, State: domain.MessageDraft, CreatedAt: time.Now(),
	}
	require.NoError(t, convs.AppendMessage(ctx, user))
	require.NoError(t, convs.AppendMessage(ctx, draft))
	assert.Equal(t, int64(1), user.Seq)
	assert.Equal(t, int64(2), draft.Seq)

	msgs, err := convs.ListMessages(ctx, "conv1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.True(t, msgs[1].IsDraft())
	assert.Nil(t, msgs[1].Sources)
}

func TestConversationStore_AppendToMissingConversation(t *testing.T) {
	store := setupTestStore(t)
	err := store.ConversationStore().AppendMessage(context.Background(), &domain.Message{
		ID: "m1", ConversationID: "missing", Role: domain.RoleUser, State: domain.MessageFinal,
	})
	assert.Error(t, err)
}

func TestConversationStore_FinalizeOnce(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	convs := store.ConversationStore()
	newTestConversation(t, store, "conv1", "alice")
	require.NoError(t, convs.AppendMessage(ctx, &domain.Message{
		ID: "m1", ConversationID: "conv1", Role: domain.RoleAssistant,
		Content: domain.PlaceholderAnswer, State: domain.MessageDraft, CreatedAt: time.Now(),
	}))

	sources := []domain.Source{{DocumentID: "d1", DocumentTitle: "Doc", ChunkID: "c1", Similarity: 0.91}}
	require.NoError(t, convs.FinalizeMessage(ctx, "m1", "Go is a language.", sources))

	msg, err := convs.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.MessageFinal, msg.State)
	assert.Equal(t, "Go is a language.", msg.Content)
	assert.Equal(t, sources, msg.Sources)

	err = convs.FinalizeMessage(ctx, "m1", "again", nil)
	assert.ErrorIs(t, err, domain.ErrMessageFinalized)

	err = convs.FinalizeMessage(ctx, "missing", "x", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_ListByRecentActivity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	convs := store.ConversationStore()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"a", "b"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, convs.CreateConversation(ctx, &domain.Conversation{
			ID: id, Title: id, OwnerID: "alice", CreatedAt: ts, UpdatedAt: ts,
		}))
	}
	require.NoError(t, convs.AppendMessage(ctx, &domain.Message{
		ID: "m1", ConversationID: "a", Role: domain.RoleUser, State: domain.MessageFinal,
		CreatedAt: time.Now().UTC(),
	}))

	list, err := convs.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

// ==================== Helpers ====================

func TestFloat32Conversion(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.4e38}
	assert.Equal(t, in, bytesToFloat32Slice(float32SliceToBytes(in)))
	assert.Nil(t, bytesToFloat32Slice(nil))
	assert.Len(t, float32SliceToBytes([]float32{1, 2}), 8)
}
