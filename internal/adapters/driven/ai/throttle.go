package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// Ensure the throttled services implement the interfaces.
var (
	_ driven.EmbeddingService = (*ThrottledEmbedding)(nil)
	_ driven.LLMService       = (*ThrottledLLM)(nil)
)

// newLimiter builds a token bucket of perSecond requests with a burst of one.
func newLimiter(perSecond float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), 1)
}

// ThrottledEmbedding caps the request rate of an embedding service.
type ThrottledEmbedding struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// NewThrottledEmbedding wraps svc so it makes at most perSecond calls per second.
// A non-positive rate returns svc unchanged.
func NewThrottledEmbedding(svc driven.EmbeddingService, perSecond float64) driven.EmbeddingService {
	if perSecond <= 0 {
		return svc
	}
	return &ThrottledEmbedding{EmbeddingService: svc, limiter: newLimiter(perSecond)}
}

// Embed waits for a token, then embeds.
func (t *ThrottledEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapProviderError(domain.ProviderEmbedding, fmt.Errorf("rate limit: %w", err))
	}
	return t.EmbeddingService.Embed(ctx, text)
}

// EmbedBatch waits for a single token per batch request.
func (t *ThrottledEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, domain.WrapProviderError(domain.ProviderEmbedding, fmt.Errorf("rate limit: %w", err))
	}
	return t.EmbeddingService.EmbedBatch(ctx, texts)
}

// ThrottledLLM caps the request rate of an LLM service.
type ThrottledLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewThrottledLLM wraps svc so it makes at most perSecond calls per second.
// A non-positive rate returns svc unchanged.
func NewThrottledLLM(svc driven.LLMService, perSecond float64) driven.LLMService {
	if perSecond <= 0 {
		return svc
	}
	return &ThrottledLLM{LLMService: svc, limiter: newLimiter(perSecond)}
}

// Generate waits for a token, then generates.
func (t *ThrottledLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", domain.WrapProviderError(domain.ProviderLLM, fmt.Errorf("rate limit: %w", err))
	}
	return t.LLMService.Generate(ctx, prompt, opts)
}
