package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driven/vectorstore/storetest"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func TestConformance_InMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) driven.EmbeddingStore {
		s, err := Open("")
		require.NoError(t, err)
		return s
	})
}

func TestOpen_PersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := domain.EmbeddingKey{DocumentID: "d1", ChunkID: "c1"}

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, key, []float32{0.5, 0.25}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, got)
}

func TestKeys_DoNotCollideAcrossDocuments(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, domain.EmbeddingKey{DocumentID: "d1", ChunkID: "c"}, []float32{1}))
	require.NoError(t, s.Put(ctx, domain.EmbeddingKey{DocumentID: "d10", ChunkID: "c"}, []float32{2}))

	var seen []string
	require.NoError(t, s.Scan(ctx, []string{"d1"}, func(k domain.EmbeddingKey, _ []float32) error {
		seen = append(seen, k.String())
		return nil
	}))
	assert.Equal(t, []string{"doc_d1/chunk_c"}, seen)
}
