package usecase

import (
	"context"
	"fmt"
	"strings"

	"virtualta/internal/domain"
	"virtualta/internal/port"
)

// systemPrompt instructs the model to stay within the supplied passages.
// {context} is replaced by the retrieved chunk texts.
const systemPrompt = "Use the following pieces of context to answer the user's question. \n" +
	"If you don't know the answer, just say that you don't know, don't try to make up an answer.\n" +
	"----------------\n" +
	"{context}"

// Answerer stuffs every retrieved chunk into one prompt and asks the chat
// model for an answer.
type Answerer struct {
	model port.ChatModel
}

func NewAnswerer(model port.ChatModel) *Answerer {
	return &Answerer{model: model}
}

// Generate returns the model's raw text. There is no fallback generation;
// a failed call fails the query.
func (a *Answerer) Generate(ctx context.Context, question string, chunks []domain.ScoredChunk) (string, error) {
	answer, err := a.model.Complete(ctx, SystemPrompt(chunks), question)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

// SystemPrompt returns the instructions sent with every question, with the
// chunk texts filled in.
func SystemPrompt(chunks []domain.ScoredChunk) string {
	return strings.Replace(systemPrompt, "{context}", BuildContext(chunks), 1)
}

// BuildContext joins chunk texts in rank order, separated by blank lines.
func BuildContext(chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}
