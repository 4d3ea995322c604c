package port

import "virtualta/internal/domain"

// IndexReader loads persisted vector records.
type IndexReader interface {
	// Load returns the index metadata and records of the index stored at dir,
	// in insertion order.
	Load(dir string) (domain.IndexInfo, []domain.VectorRecord, error)
}

// IndexWriter persists vector records.
type IndexWriter interface {
	Save(dir string, info domain.IndexInfo, records []domain.VectorRecord) error
}

// VectorSearcher finds the records nearest to a query vector.
type VectorSearcher interface {
	// Search returns up to k chunks, best first.
	Search(query []float32, k int) ([]domain.ScoredChunk, error)
}
