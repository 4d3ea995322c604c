package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"virtualta/internal/adapter/store"
	"virtualta/internal/domain"
	"virtualta/internal/port"
)

// IndexLoader loads persisted indexes and merges them, in the order given,
// into one index. Every failure is a configuration error: the service
// cannot answer without its knowledge base.
type IndexLoader struct {
	reader port.IndexReader
	model  string
	logger *slog.Logger
}

// NewIndexLoader returns a loader that rejects indexes built with an
// embedding model other than model. An empty model disables the check.
func NewIndexLoader(reader port.IndexReader, model string, logger *slog.Logger) *IndexLoader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &IndexLoader{reader: reader, model: model, logger: logger}
}

func (l *IndexLoader) Load(dirs []string) (*store.VectorIndex, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no index locations configured", domain.ErrConfiguration)
	}

	merged := store.NewVectorIndex()
	for _, dir := range dirs {
		info, records, err := l.reader.Load(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}

		if l.model != "" && info.EmbeddingModel != "" && info.EmbeddingModel != l.model {
			return nil, fmt.Errorf("%w: index %s was built with %q but queries use %q",
				domain.ErrConfiguration, dir, info.EmbeddingModel, l.model)
		}

		part := store.NewVectorIndex()
		if err := part.Add(records...); err != nil {
			return nil, fmt.Errorf("%w: index %s: %w", domain.ErrConfiguration, dir, err)
		}
		if err := merged.Merge(part); err != nil {
			return nil, fmt.Errorf("%w: merging %s: %w", domain.ErrConfiguration, dir, err)
		}

		l.logger.Info("index loaded",
			"path", dir,
			"collection", info.Collection,
			"records", part.Len(),
			"dimension", part.Dimension())
	}

	if merged.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.New("all indexes are empty"))
	}
	return merged, nil
}
