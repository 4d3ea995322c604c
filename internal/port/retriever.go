package port

import (
	"context"

	"virtualta/internal/domain"
)

// Retriever defines the interface for searching indexed content.
type Retriever interface {
	// Search returns up to k chunks ordered by descending similarity to the query.
	Search(ctx context.Context, query string, k int) ([]domain.ScoredChunk, error)
}
