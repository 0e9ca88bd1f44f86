package ai

import (
	"context"

	"github.com/custodia-labs/docrag/internal/adapters/driven/embedding/placeholder"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// Ensure FallbackEmbedding implements the interfaces.
var (
	_ driven.EmbeddingService = (*FallbackEmbedding)(nil)
	_ driven.FallbackEmbedder = (*FallbackEmbedding)(nil)
)

// FallbackEmbedding substitutes placeholder vectors when the provider fails.
// Retrieval over substituted vectors is not semantic, so this is opt-in and
// only used for indexing. Queries go to the undecorated provider.
type FallbackEmbedding struct {
	driven.EmbeddingService
}

// NewFallbackEmbedding wraps svc with placeholder substitution.
func NewFallbackEmbedding(svc driven.EmbeddingService) *FallbackEmbedding {
	return &FallbackEmbedding{EmbeddingService: svc}
}

// Embed returns the provider's vector, or a placeholder if the provider fails.
func (f *FallbackEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := f.EmbedWithFallback(ctx, text)
	return vec, err
}

// EmbedWithFallback is Embed that also reports whether the vector was substituted.
func (f *FallbackEmbedding) EmbedWithFallback(ctx context.Context, text string) ([]float32, bool, error) {
	vec, err := f.EmbeddingService.Embed(ctx, text)
	if err == nil {
		return vec, false, nil
	}
	if ctx.Err() != nil {
		return nil, false, err
	}
	logger.Warn("embedding provider failed, using placeholder vector: %v", err)
	return placeholder.Vector(text, f.Dimensions()), true, nil
}

// EmbedBatch returns the provider's vectors, or placeholders if the provider fails.
func (f *FallbackEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := f.EmbeddingService.EmbedBatch(ctx, texts)
	if err == nil {
		return vecs, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	logger.Warn("embedding provider failed for batch of %d, using placeholder vectors: %v", len(texts), err)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = placeholder.Vector(text, f.Dimensions())
	}
	return out, nil
}
