package cli

import (
	"fmt"

	"virtualta/config"
	"virtualta/internal/adapter/embedding"
	"virtualta/internal/adapter/llm"
	"virtualta/internal/adapter/retriever"
	"virtualta/internal/adapter/store"
	"virtualta/internal/domain"
	"virtualta/internal/port"
	"virtualta/internal/usecase"
)

// newEmbedder returns the embedder named by embedding.provider.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "openai":
		key, err := cfg.APIKey()
		if err != nil {
			return nil, err
		}
		return embedding.NewOpenAIEmbedder(embedding.Config{
			BaseURL:           cfg.Provider.EmbeddingURL,
			APIKey:            key,
			Model:             cfg.Embedding.Model,
			Timeout:           cfg.Service.RequestTimeout,
			MaxRetries:        cfg.Provider.MaxRetries,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		})
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrConfiguration, cfg.Embedding.Provider)
	}
}

func newChatModel(cfg *config.Config) (port.ChatModel, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}
	return llm.NewOpenAIChat(llm.Config{
		BaseURL:    cfg.Provider.ChatURL,
		APIKey:     key,
		Model:      cfg.Chat.Model,
		Timeout:    cfg.Service.RequestTimeout,
		MaxRetries: cfg.Provider.MaxRetries,
	})
}

// loadRetriever loads every index in load order and puts the merged index
// behind a semantic retriever.
func loadRetriever(cfg *config.Config, embedder port.Embedder) (*retriever.SemanticRetriever, *store.VectorIndex, error) {
	paths, err := cfg.IndexPaths()
	if err != nil {
		return nil, nil, err
	}
	for i, p := range paths {
		paths[i] = resolvePath(p)
	}

	index, err := usecase.NewIndexLoader(store.NewBoltIndexStore(), embedder.ModelName(), logger).Load(paths)
	if err != nil {
		return nil, nil, err
	}
	return retriever.NewSemanticRetriever(index, embedder), index, nil
}

// newQueryUseCase wires the full question-answering pipeline from config.
func newQueryUseCase(cfg *config.Config) (*usecase.QueryUseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	chat, err := newChatModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	retr, index, err := loadRetriever(cfg, embedder)
	if err != nil {
		return nil, err
	}
	logger.Info("knowledge base ready", "records", index.Len(), "dimension", index.Dimension())

	return usecase.NewQueryUseCase(retr, usecase.NewAnswerer(chat), usecase.NewConfidenceGate(), cfg.Retrieve.TopK, logger), nil
}
