package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driven"
	"github.com/custodia-labs/docrag/internal/logger"
)

// RetrieveRequest describes a similarity search over indexed chunks.
type RetrieveRequest struct {
	// OwnerID limits candidates to this owner's documents.
	OwnerID string

	// Query is the text to match.
	Query string

	// DocumentIDs restricts candidates. Empty means every queryable document of the owner.
	DocumentIDs []string

	// TopK caps the result length. Zero uses the retriever default.
	TopK int

	// Threshold is the minimum score. Zero uses the retriever default.
	Threshold float64
}

// Retriever ranks stored chunk embeddings by cosine similarity to a query.
type Retriever struct {
	docs       driven.DocumentStore
	embeddings driven.EmbeddingStore
	embedder   driven.EmbeddingService
	topK       int
	threshold  float64
}

// NewRetriever creates a retriever. Non-positive settings use the domain defaults.
func NewRetriever(
	docs driven.DocumentStore,
	embeddings driven.EmbeddingStore,
	embedder driven.EmbeddingService,
	settings domain.RetrievalSettings,
) *Retriever {
	r := &Retriever{
		docs:       docs,
		embeddings: embeddings,
		embedder:   embedder,
		topK:       settings.TopK,
		threshold:  settings.Threshold,
	}
	if r.topK <= 0 {
		r.topK = domain.DefaultTopK
	}
	if r.threshold < 0 {
		r.threshold = domain.DefaultThreshold
	}
	return r
}

// Retrieve returns at most TopK chunks scoring at least Threshold, best first.
// No candidates or no score above the threshold is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, req RetrieveRequest) ([]domain.ScoredChunk, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = r.topK
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = r.threshold
	}

	candidates, err := r.candidates(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		logger.Debug("retrieve: no queryable documents")
		return []domain.ScoredChunk{}, nil
	}

	queryVec, err := r.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	chunks := make(map[domain.EmbeddingKey]domain.Chunk)
	docIDs := make([]string, 0, len(candidates))
	for _, doc := range candidates {
		docChunks, err := r.docs.GetChunks(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunks of %s: %w", doc.ID, err)
		}
		for _, c := range docChunks {
			if c.HasEmbedding() && !c.HasPlaceholderEmbedding() {
				chunks[c.Key()] = c
			}
		}
		docIDs = append(docIDs, doc.ID)
	}

	titles := make(map[string]string, len(candidates))
	for _, doc := range candidates {
		titles[doc.ID] = doc.Title
	}

	var scored []domain.ScoredChunk //nolint:prealloc // size unknown until scan
	err = r.embeddings.Scan(ctx, docIDs, func(key domain.EmbeddingKey, vec []float32) error {
		chunk, ok := chunks[key]
		if !ok {
			return nil
		}
		scored = append(scored, domain.ScoredChunk{
			Chunk:         chunk,
			Score:         CosineSimilarity(queryVec, vec),
			DocumentTitle: titles[key.DocumentID],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan embeddings: %w", err)
	}

	rank(scored)

	out := make([]domain.ScoredChunk, 0, topK)
	for _, sc := range scored {
		if len(out) == topK {
			break
		}
		if sc.Score < threshold {
			break
		}
		out = append(out, sc)
	}

	logger.Debug("retrieve: %d candidates scored, %d returned (top_k=%d, threshold=%.2f)",
		len(scored), len(out), topK, threshold)
	return out, nil
}

// embedQuery embeds the query with the provider. A placeholder substitute
// would score arbitrary chunks, so it is treated as a provider failure.
func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if r.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	var (
		vec         []float32
		substituted bool
		err         error
	)
	if fb, ok := r.embedder.(driven.FallbackEmbedder); ok {
		vec, substituted, err = fb.EmbedWithFallback(ctx, query)
		if err == nil && substituted {
			err = errors.New("provider unavailable, placeholder vector refused")
		}
	} else {
		vec, err = r.embedder.Embed(ctx, query)
	}
	if err != nil {
		return nil, domain.WrapProviderError(domain.ProviderEmbedding, fmt.Errorf("embed query: %w", err))
	}
	return vec, nil
}

// candidates resolves the documents a request may search.
func (r *Retriever) candidates(ctx context.Context, req RetrieveRequest) ([]domain.Document, error) {
	if len(req.DocumentIDs) == 0 {
		docs, err := r.docs.ListDocuments(ctx, req.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out := docs[:0]
		for _, d := range docs {
			if d.Queryable() {
				out = append(out, d)
			}
		}
		return out, nil
	}

	seen := make(map[string]bool, len(req.DocumentIDs))
	out := make([]domain.Document, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		doc, err := r.docs.GetDocument(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get document %s: %w", id, err)
		}
		if !doc.Queryable() || (req.OwnerID != "" && doc.OwnerID != req.OwnerID) {
			continue
		}
		out = append(out, *doc)
	}
	return out, nil
}

// rank sorts by score, best first. Ties go to the lower chunk index,
// then document ID, then chunk ID, so the order is deterministic.
func rank(scored []domain.ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Chunk.Index != b.Chunk.Index {
			return a.Chunk.Index < b.Chunk.Index
		}
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
