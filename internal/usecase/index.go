package usecase

import (
	"context"
	"fmt"

	"virtualta/internal/adapter/store"
	"virtualta/internal/domain"
	"virtualta/internal/port"
)

// DefaultBatchSize is the number of chunks sent per embeddings request.
const DefaultBatchSize = 100

// ProgressFunc is called after each embedded batch.
type ProgressFunc func(embedded, total int)

// IndexBuilder chunks documents, embeds the chunks in fixed-size batches,
// and assembles an in-memory vector index. Persisting it is a separate step.
type IndexBuilder struct {
	chunker   port.Chunker
	embedder  port.Embedder
	batchSize int
	progress  ProgressFunc
}

func NewIndexBuilder(chunker port.Chunker, embedder port.Embedder, batchSize int) *IndexBuilder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IndexBuilder{
		chunker:   chunker,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

// WithProgress sets a callback invoked after every batch.
func (b *IndexBuilder) WithProgress(fn ProgressFunc) *IndexBuilder {
	b.progress = fn
	return b
}

// Chunk splits every document in order.
func (b *IndexBuilder) Chunk(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		chunks = append(chunks, b.chunker.Split(doc)...)
	}
	return chunks
}

// Build embeds the chunks of docs. Embedding errors are returned as-is;
// the builder never retries.
func (b *IndexBuilder) Build(ctx context.Context, docs []domain.Document) (*store.VectorIndex, error) {
	return b.BuildChunks(ctx, b.Chunk(docs))
}

func (b *IndexBuilder) BuildChunks(ctx context.Context, chunks []domain.Chunk) (*store.VectorIndex, error) {
	index := store.NewVectorIndex()

	for i := 0; i < len(chunks); i += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := i + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embeddings, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d failed: %w", i, end, err)
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("%w: embedder returned %d vectors for %d chunks", domain.ErrUpstream, len(embeddings), len(batch))
		}

		records := make([]domain.VectorRecord, len(batch))
		for j, c := range batch {
			records[j] = domain.VectorRecord{Embedding: embeddings[j], Chunk: c}
		}
		if err := index.Add(records...); err != nil {
			return nil, fmt.Errorf("failed to add batch %d-%d: %w", i, end, err)
		}

		if b.progress != nil {
			b.progress(end, len(chunks))
		}
	}

	return index, nil
}
