package port

import "context"

// ChatModel represents a chat-completion language model.
type ChatModel interface {
	// Complete sends a system and user message and returns the generated text.
	// Implementations decode deterministically (temperature 0).
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
