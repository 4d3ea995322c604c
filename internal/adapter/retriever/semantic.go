package retriever

import (
	"context"
	"errors"
	"fmt"

	"virtualta/internal/domain"
	"virtualta/internal/port"
)

// SemanticRetriever embeds the query and searches the vector index.
//
// The embedder must use the same model that built the index. Vectors from
// another model still produce scores, but they carry no meaning.
type SemanticRetriever struct {
	index    port.VectorSearcher
	embedder port.Embedder
}

func NewSemanticRetriever(index port.VectorSearcher, embedder port.Embedder) *SemanticRetriever {
	return &SemanticRetriever{
		index:    index,
		embedder: embedder,
	}
}

func (r *SemanticRetriever) Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error) {
	if r.index == nil || r.embedder == nil {
		return nil, errors.New("semantic search not available: index or embedder not configured")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: embedding returned empty result", domain.ErrUpstream)
	}

	results, err := r.index.Search(embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	return results, nil
}
