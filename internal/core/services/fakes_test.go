package services

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// --- Fakes shared by the service tests ---

// fakeEmbedder maps text to a vector through fn.
type fakeEmbedder struct {
	mu    sync.Mutex
	fn    func(text string) ([]float32, error)
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(text)
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int              { return 3 }
func (f *fakeEmbedder) ModelName() string            { return "fake" }
func (f *fakeEmbedder) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedder) Close() error                 { return nil }

func (f *fakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// constEmbedder returns the same vector for every text.
func constEmbedder(v ...float32) *fakeEmbedder {
	return &fakeEmbedder{fn: func(string) ([]float32, error) { return v, nil }}
}

// refusedEmbedder fails every call as if the provider refused the connection.
func refusedEmbedder() *fakeEmbedder {
	return &fakeEmbedder{fn: func(string) ([]float32, error) { return nil, connectionRefused() }}
}

// substituteVector is what substitutingEmbedder returns when its provider fails.
var substituteVector = []float32{0, 0, 1}

// substitutingEmbedder replaces provider failures with substituteVector
// and reports the substitution.
type substitutingEmbedder struct {
	*fakeEmbedder
}

var _ driven.FallbackEmbedder = (*substitutingEmbedder)(nil)

func (s *substitutingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := s.EmbedWithFallback(ctx, text)
	return vec, err
}

func (s *substitutingEmbedder) EmbedWithFallback(ctx context.Context, text string) ([]float32, bool, error) {
	vec, err := s.fakeEmbedder.Embed(ctx, text)
	if err != nil {
		return substituteVector, true, nil
	}
	return vec, false, nil
}

func connectionRefused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}
}

// fakeLLM records prompts and replies with reply or err.
type fakeLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeLLM) ModelName() string            { return "fake-llm" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

func (f *fakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// syncQueue runs each task inline and keeps its error.
type syncQueue struct {
	mu        sync.Mutex
	errs      []error
	submitErr error

	// beforeSubmit runs at the start of every Submit.
	beforeSubmit func()
}

func (q *syncQueue) Submit(ctx context.Context, task driven.Task) error {
	if q.beforeSubmit != nil {
		q.beforeSubmit()
	}
	if q.submitErr != nil {
		return q.submitErr
	}
	err := task.Run(ctx)
	q.mu.Lock()
	q.errs = append(q.errs, err)
	q.mu.Unlock()
	return nil
}

func (q *syncQueue) Drain(_ context.Context) error { return nil }
func (q *syncQueue) Close() error                  { return nil }

func (q *syncQueue) LastErr() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.errs) == 0 {
		return nil
	}
	return q.errs[len(q.errs)-1]
}

// ctxDocs is a document store whose status writes honour cancellation.
type ctxDocs struct {
	*memory.DocumentStore
}

func (d ctxDocs) UpdateStatus(ctx context.Context, id string, update domain.StatusUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.DocumentStore.UpdateStatus(ctx, id, update)
}

// heldQueue keeps submitted tasks until RunAll is called.
type heldQueue struct {
	mu    sync.Mutex
	tasks []driven.Task
}

func (q *heldQueue) Submit(_ context.Context, task driven.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *heldQueue) Drain(_ context.Context) error { return nil }
func (q *heldQueue) Close() error                  { return nil }

func (q *heldQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// RunAll runs and clears the held tasks, returning the first error.
func (q *heldQueue) RunAll(ctx context.Context) error {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	var first error
	for _, task := range tasks {
		if err := task.Run(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// --- Fixtures ---

// indexedDoc describes a completed document with one vector per chunk.
type indexedDoc struct {
	id      string
	owner   string
	title   string
	vectors [][]float32
}

// seedIndexed stores a queryable document with embedded chunks.
func seedIndexed(t *testing.T, docs *memory.DocumentStore, embeds *memory.EmbeddingStore, d indexedDoc) {
	t.Helper()
	ctx := context.Background()
	owner := d.owner
	if owner == "" {
		owner = "alice"
	}
	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{
		ID:          d.id,
		Title:       d.title,
		OwnerID:     owner,
		FileType:    domain.FileTypeText,
		Status:      domain.StatusCompleted,
		IsProcessed: true,
		IsIndexed:   true,
		ChunkCount:  len(d.vectors),
		CreatedAt:   time.Now(),
	}))
	for i, vec := range d.vectors {
		chunk := &domain.Chunk{
			ID:         fmt.Sprintf("%s-c%d", d.id, i),
			DocumentID: d.id,
			Index:      i,
			Content:    fmt.Sprintf("content %d of %s", i, d.id),
		}
		require.NoError(t, docs.SaveChunk(ctx, chunk))
		if vec == nil {
			continue
		}
		require.NoError(t, embeds.Put(ctx, chunk.Key(), vec))
		require.NoError(t, docs.SetChunkEmbedding(ctx, chunk.ID, chunk.Key().String()))
	}
}
