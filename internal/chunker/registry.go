package chunker

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
)

// BuilderFunc creates a Chunker from chunking settings.
type BuilderFunc func(cfg domain.ChunkingSettings) (driven.Chunker, error)

// Registry maps strategy names to their builders.
type Registry struct {
	builders map[domain.ChunkingStrategy]BuilderFunc
}

// NewRegistry creates an empty chunker registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[domain.ChunkingStrategy]BuilderFunc),
	}
}

// Register adds a builder for strategy.
func (r *Registry) Register(strategy domain.ChunkingStrategy, builder BuilderFunc) {
	r.builders[strategy] = builder
}

// Build creates the chunker for cfg.Strategy.
// An empty strategy selects the paragraph chunker.
func (r *Registry) Build(cfg domain.ChunkingSettings) (driven.Chunker, error) {
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = domain.ChunkingParagraph
	}
	builder, ok := r.builders[strategy]
	if !ok {
		return nil, fmt.Errorf("unknown chunking strategy: %s", strategy)
	}
	return builder(cfg)
}

// Has returns true if a builder is registered for strategy.
func (r *Registry) Has(strategy domain.ChunkingStrategy) bool {
	_, ok := r.builders[strategy]
	return ok
}

// Names returns the registered strategies in sorted order.
func (r *Registry) Names() []domain.ChunkingStrategy {
	names := make([]domain.ChunkingStrategy, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// RegisterDefaults registers the built-in strategies.
func RegisterDefaults(r *Registry) {
	r.Register(domain.ChunkingParagraph, buildParagraph)
	r.Register(domain.ChunkingToken, buildToken)
	r.Register(domain.ChunkingMarkdown, buildMarkdown)
}

// New builds the chunker selected by cfg using the built-in strategies.
func New(cfg domain.ChunkingSettings) (driven.Chunker, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.Build(cfg)
}

func buildParagraph(cfg domain.ChunkingSettings) (driven.Chunker, error) {
	return NewParagraph(WithMaxSize(cfg.MaxSize), WithOverlap(cfg.Overlap)), nil
}

func buildMarkdown(cfg domain.ChunkingSettings) (driven.Chunker, error) {
	return NewMarkdown(cfg.MaxSize), nil
}

func buildToken(cfg domain.ChunkingSettings) (driven.Chunker, error) {
	model := cfg.TokenModel
	if model == "" {
		model = domain.DefaultTokenModel
	}
	tok, err := NewTiktoken(model)
	if err != nil {
		return nil, err
	}
	return NewToken(tok, cfg.TokenSize, cfg.TokenOverlap), nil
}
