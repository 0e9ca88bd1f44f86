package ai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docrag/internal/adapters/driven/embedding/placeholder"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

func TestInitResult_Close(t *testing.T) {
	result := &InitResult{}
	result.Close()

	result = &InitResult{EmbeddingService: placeholder.New(4), LLMService: &stubLLM{}}
	result.Close()
}

func TestInit(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderPlaceholder, Dimensions: 8}
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI}

	result, err := Init(&settings)
	require.NoError(t, err)
	defer result.Close()

	assert.Equal(t, 8, result.EmbeddingService.Dimensions())
	assert.Nil(t, result.LLMService)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "not configured")
}

func TestInit_QueryEmbeddingHasNoFallback(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderOllama, RateLimit: 10, Fallback: true}
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOpenAI}

	result, err := Init(&settings)
	require.NoError(t, err)
	defer result.Close()

	_, ok := result.EmbeddingService.(*FallbackEmbedding)
	assert.True(t, ok)
	_, ok = result.QueryEmbeddingService.(*ThrottledEmbedding)
	assert.True(t, ok)
	_, ok = result.QueryEmbeddingService.(driven.FallbackEmbedder)
	assert.False(t, ok)
}

func TestQueryEmbedding(t *testing.T) {
	inner := newStubEmbedding(4, errors.New("down"))
	assert.Same(t, driven.EmbeddingService(inner), QueryEmbedding(inner))

	// A failing provider surfaces as an error for a question, never a vector.
	query := QueryEmbedding(NewFallbackEmbedding(inner))
	vec, err := query.Embed(context.Background(), "what is the refund policy")
	require.Error(t, err)
	assert.Nil(t, vec)
}

func TestInit_NoEmbedding(t *testing.T) {
	settings := domain.DefaultAppSettings()
	settings.Embedding = domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic}

	_, err := Init(&settings)
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantNil  bool
		wantErr  bool
		model    string
		dims     int
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "unconfigured", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{name: "anthropic has no embeddings", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"}, wantNil: true},
		{name: "unknown provider", settings: &domain.EmbeddingSettings{Provider: "unknown"}, wantNil: true},
		{
			name:     "ollama with known model",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "mxbai-embed-large"},
			model:    "mxbai-embed-large",
			dims:     1024,
		},
		{
			name:     "ollama with unknown model",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "custom"},
			model:    "custom",
			dims:     768,
		},
		{
			name:     "configured dimensions win",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm", Dimensions: 100},
			model:    "all-minilm",
			dims:     100,
		},
		{
			name:     "openai",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "text-embedding-3-large"},
			model:    "text-embedding-3-large",
			dims:     3072,
		},
		{
			name:     "placeholder",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderPlaceholder, Dimensions: 16},
			model:    placeholder.ModelName,
			dims:     16,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.model, svc.ModelName())
			assert.Equal(t, tt.dims, svc.Dimensions())
		})
	}
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name     string
		settings *domain.LLMSettings
		wantNil  bool
		model    string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "placeholder is not an LLM", settings: &domain.LLMSettings{Provider: domain.AIProviderPlaceholder}, wantNil: true},
		{name: "openai without key", settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI}, wantNil: true},
		{name: "ollama", settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}, model: "llama3.2"},
		{name: "openai", settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, APIKey: "k", Model: "gpt-4o"}, model: "gpt-4o"},
		{name: "anthropic", settings: &domain.LLMSettings{Provider: domain.AIProviderAnthropic, APIKey: "k", Model: "claude"}, model: "claude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, svc)
				return
			}
			require.NotNil(t, svc)
			assert.Equal(t, tt.model, svc.ModelName())
		})
	}
}

func TestNewEmbeddingService_Decorators(t *testing.T) {
	svc, err := NewEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, RateLimit: 10, Fallback: true})
	require.NoError(t, err)

	fb, ok := svc.(*FallbackEmbedding)
	require.True(t, ok)
	_, ok = fb.EmbeddingService.(*ThrottledEmbedding)
	assert.True(t, ok)

	// Placeholder never needs a fallback.
	svc, err = NewEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderPlaceholder, Fallback: true})
	require.NoError(t, err)
	_, ok = svc.(*placeholder.EmbeddingService)
	assert.True(t, ok)
}

func TestNewLLMService_Throttled(t *testing.T) {
	svc, err := NewLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, RateLimit: 2})
	require.NoError(t, err)
	_, ok := svc.(*ThrottledLLM)
	assert.True(t, ok)

	svc, err = NewLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama})
	require.NoError(t, err)
	_, ok = svc.(*ThrottledLLM)
	assert.False(t, ok)
}

func TestCreateAndValidateEmbeddingService(t *testing.T) {
	svc, err := CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderPlaceholder})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	svc, err = CreateAndValidateEmbeddingService(nil)
	require.NoError(t, err)
	assert.Nil(t, svc)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err = CreateAndValidateEmbeddingService(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestCreateAndValidateLLMService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	svc, err := CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NotNil(t, svc)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()

	_, err = CreateAndValidateLLMService(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: url})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

// ==================== Decorators ====================

type stubEmbedding struct {
	placeholder.EmbeddingService
	err   error
	calls int
}

func (s *stubEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 2}, nil
}

func (s *stubEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2}
	}
	return out, nil
}

type stubLLM struct {
	calls int
}

func (s *stubLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	s.calls++
	return "ok", nil
}
func (s *stubLLM) ModelName() string { return "stub" }
func (s *stubLLM) Ping(context.Context) error { return nil }
func (s *stubLLM) Close() error { return nil }

func newStubEmbedding(dims int, err error) *stubEmbedding {
	return &stubEmbedding{EmbeddingService: *placeholder.New(dims), err: err}
}

func TestFallbackEmbedding_PassesThrough(t *testing.T) {
	inner := newStubEmbedding(2, nil)
	svc := NewFallbackEmbedding(inner)

	vec, err := svc.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestFallbackEmbedding_SubstitutesOnError(t *testing.T) {
	inner := newStubEmbedding(4, errors.New("down"))
	svc := NewFallbackEmbedding(inner)

	vec, err := svc.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, placeholder.Vector("text", 4), vec)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, placeholder.Vector("b", 4), vecs[1])
}

func TestFallbackEmbedding_ReportsSubstitution(t *testing.T) {
	ctx := context.Background()

	vec, substituted, err := NewFallbackEmbedding(newStubEmbedding(4, nil)).EmbedWithFallback(ctx, "x")
	require.NoError(t, err)
	assert.False(t, substituted)
	assert.Equal(t, []float32{1, 2}, vec)

	vec, substituted, err = NewFallbackEmbedding(newStubEmbedding(4, errors.New("down"))).EmbedWithFallback(ctx, "x")
	require.NoError(t, err)
	assert.True(t, substituted)
	assert.Equal(t, placeholder.Vector("x", 4), vec)
}

func TestFallbackEmbedding_KeepsContextErrors(t *testing.T) {
	inner := newStubEmbedding(4, context.Canceled)
	svc := NewFallbackEmbedding(inner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThrottledEmbedding_ZeroRateIsIdentity(t *testing.T) {
	inner := newStubEmbedding(2, nil)
	assert.Same(t, driven.EmbeddingService(inner), NewThrottledEmbedding(inner, 0))
}

func TestThrottledEmbedding_Limits(t *testing.T) {
	inner := newStubEmbedding(2, nil)
	svc := NewThrottledEmbedding(inner, 20)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := svc.Embed(context.Background(), "x")
		require.NoError(t, err)
	}
	// Burst of one: the second and third calls each wait about 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 3, inner.calls)
}

func TestThrottledEmbedding_ContextDeadline(t *testing.T) {
	inner := newStubEmbedding(2, nil)
	svc := NewThrottledEmbedding(inner, 0.1)

	_, err := svc.Embed(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = svc.EmbedBatch(ctx, []string{"y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Equal(t, 1, inner.calls)
}

func TestThrottledLLM(t *testing.T) {
	inner := &stubLLM{}
	assert.Same(t, driven.LLMService(inner), NewThrottledLLM(inner, 0))

	svc := NewThrottledLLM(inner, 100)
	out, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 1, inner.calls)
}
