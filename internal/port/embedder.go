package port

import "context"

// Embedder generates vector embeddings for text.
//
// The model used at query time must be the one the index was built with;
// vectors from different models are not comparable.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
