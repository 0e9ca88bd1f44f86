package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func TestNew_SelectsStrategy(t *testing.T) {
	tests := []struct {
		strategy domain.ChunkingStrategy
		want     string
	}{
		{"", "paragraph"},
		{domain.ChunkingParagraph, "paragraph"},
		{domain.ChunkingMarkdown, "markdown"},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			c, err := New(domain.ChunkingSettings{Strategy: tt.strategy, MaxSize: 500, Overlap: 50})
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Name())
		})
	}
}

func TestNew_ParagraphUsesSettings(t *testing.T) {
	c, err := New(domain.ChunkingSettings{Strategy: domain.ChunkingParagraph, MaxSize: 500, Overlap: 50})
	require.NoError(t, err)

	p, ok := c.(*Paragraph)
	require.True(t, ok)
	assert.Equal(t, 500, p.maxSize)
	assert.Equal(t, 50, p.overlap)
}

func TestNew_UnknownStrategy(t *testing.T) {
	_, err := New(domain.ChunkingSettings{Strategy: "semantic"})
	assert.ErrorContains(t, err, "unknown chunking strategy")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	assert.True(t, r.Has(domain.ChunkingToken))
	assert.False(t, r.Has("semantic"))
	assert.Equal(t, []domain.ChunkingStrategy{"markdown", "paragraph", "token"}, r.Names())

	r.Register(domain.ChunkingToken, func(cfg domain.ChunkingSettings) (driven.Chunker, error) {
		return NewToken(newWordTokenizer(), cfg.TokenSize, cfg.TokenOverlap), nil
	})
	c, err := r.Build(domain.ChunkingSettings{Strategy: domain.ChunkingToken, TokenSize: 4, TokenOverlap: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c d", "d e f"}, c.Chunk("a b c d e f"))
}
