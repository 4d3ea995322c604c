package port

import "virtualta/internal/domain"

type Chunker interface {
	Split(doc domain.Document) []domain.Chunk
}
