// Package storetest is a conformance suite for driven.EmbeddingStore backends.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) driven.EmbeddingStore

func key(doc, chunk string) domain.EmbeddingKey {
	return domain.EmbeddingKey{DocumentID: doc, ChunkID: chunk}
}

// Run exercises every EmbeddingStore contract against stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	open := func(t *testing.T) driven.EmbeddingStore {
		s := newStore(t)
		t.Cleanup(func() { assert.NoError(t, s.Close()) })
		return s
	}

	t.Run("put then get", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		vec := []float32{0.1, -0.2, 0.3}

		require.NoError(t, s.Put(ctx, key("d1", "c1"), vec))

		got, err := s.Get(ctx, key("d1", "c1"))
		require.NoError(t, err)
		assert.Equal(t, vec, got)
	})

	t.Run("put never overwrites", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{1, 2}))

		err := s.Put(ctx, key("d1", "c1"), []float32{3, 4})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)

		got, err := s.Get(ctx, key("d1", "c1"))
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2}, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(context.Background(), key("d1", "nope"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("invalid key", func(t *testing.T) {
		s := open(t)
		err := s.Put(context.Background(), key("", "c1"), []float32{1})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("scan selected documents", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{1}))
		require.NoError(t, s.Put(ctx, key("d1", "c2"), []float32{2}))
		require.NoError(t, s.Put(ctx, key("d2", "c3"), []float32{3}))
		require.NoError(t, s.Put(ctx, key("d3", "c4"), []float32{4}))

		var seen []string
		err := s.Scan(ctx, []string{"d1", "d3", "missing"}, func(k domain.EmbeddingKey, v []float32) error {
			require.Len(t, v, 1)
			seen = append(seen, k.String())
			return nil
		})
		require.NoError(t, err)

		sort.Strings(seen)
		assert.Equal(t, []string{"doc_d1/chunk_c1", "doc_d1/chunk_c2", "doc_d3/chunk_c4"}, seen)
	})

	t.Run("scan with no documents", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{1}))

		calls := 0
		require.NoError(t, s.Scan(ctx, nil, func(domain.EmbeddingKey, []float32) error {
			calls++
			return nil
		}))
		assert.Zero(t, calls)
	})

	t.Run("scan stops on callback error", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{1}))
		require.NoError(t, s.Put(ctx, key("d1", "c2"), []float32{2}))

		stop := errors.New("stop")
		calls := 0
		err := s.Scan(ctx, []string{"d1"}, func(domain.EmbeddingKey, []float32) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("delete document", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{1}))
		require.NoError(t, s.Put(ctx, key("d2", "c2"), []float32{2}))

		require.NoError(t, s.DeleteDocument(ctx, "d1"))
		require.NoError(t, s.DeleteDocument(ctx, "never-stored"))

		_, err := s.Get(ctx, key("d1", "c1"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = s.Get(ctx, key("d2", "c2"))
		assert.NoError(t, err)

		// A deleted key can be written again.
		assert.NoError(t, s.Put(ctx, key("d1", "c1"), []float32{5}))
	})
}
