package usecase

import (
	"context"
	"errors"
	"sync"

	"virtualta/internal/domain"
)

// fakeEmbedder embeds text as {len(text), 1} and records each batch.
type fakeEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	failOn  int
	err     error
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batches = append(e.batches, append([]string(nil), texts...))
	if e.err != nil && len(e.batches) == e.failOn {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (e *fakeEmbedder) ModelName() string { return "fake" }

type fakeRetriever struct {
	mu     sync.Mutex
	chunks []domain.ScoredChunk
	err    error
	gotK   int
}

func (r *fakeRetriever) Search(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	r.mu.Lock()
	r.gotK = k
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.chunks) > k {
		return r.chunks[:k], nil
	}
	return r.chunks, nil
}

type fakeChat struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  int
	system string
	user   string
}

func (c *fakeChat) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.system = systemPrompt
	c.user = userPrompt
	return c.answer, c.err
}

func (c *fakeChat) ModelName() string { return "fake-chat" }

type fakeReader struct {
	indexes map[string]fakeStored
}

type fakeStored struct {
	info    domain.IndexInfo
	records []domain.VectorRecord
}

func (r *fakeReader) Load(dir string) (domain.IndexInfo, []domain.VectorRecord, error) {
	s, ok := r.indexes[dir]
	if !ok {
		return domain.IndexInfo{}, nil, errors.New("index not found at " + dir)
	}
	return s.info, s.records, nil
}

func scored(text, source, image string) domain.ScoredChunk {
	return domain.ScoredChunk{Chunk: domain.Chunk{
		Text:     text,
		Metadata: domain.Metadata{Source: source, Image: image},
	}}
}
