package store

import (
	"fmt"
	"math"
	"sort"

	"virtualta/internal/domain"
)

// VectorIndex is an ordered in-memory collection of vector records searched
// by brute-force cosine similarity.
//
// Add and Merge are not safe to call concurrently with Search. The serving
// process builds its index once at startup and only searches it afterwards,
// so Search needs no locking.
type VectorIndex struct {
	dimension int
	records   []domain.VectorRecord
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{}
}

// Add appends records in order. All records in an index share one dimension,
// fixed by the first record added.
func (x *VectorIndex) Add(records ...domain.VectorRecord) error {
	for i, r := range records {
		if len(r.Embedding) == 0 {
			return fmt.Errorf("record %d has an empty embedding", i)
		}
		if x.dimension == 0 {
			x.dimension = len(r.Embedding)
		}
		if len(r.Embedding) != x.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, x.dimension, len(r.Embedding))
		}
	}
	x.records = append(x.records, records...)
	return nil
}

// Merge appends every record of other after the records already held.
// Search ranks merged records by score alone; origin plays no part.
func (x *VectorIndex) Merge(other *VectorIndex) error {
	if other == nil || other.Len() == 0 {
		return nil
	}
	if x.dimension != 0 && other.dimension != x.dimension {
		return fmt.Errorf("%w: cannot merge index of dimension %d into %d", domain.ErrDimensionMismatch, other.dimension, x.dimension)
	}
	return x.Add(other.records...)
}

// Search returns the k records most similar to query, best first. Equal
// scores keep insertion order.
func (x *VectorIndex) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(x.records) == 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), x.dimension)
	}

	scored := make([]domain.ScoredChunk, len(x.records))
	for i, r := range x.records {
		scored[i] = domain.ScoredChunk{
			Chunk: r.Chunk,
			Score: cosineSimilarity(query, r.Embedding),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (x *VectorIndex) Len() int {
	return len(x.records)
}

// Dimension returns the embedding dimension, or 0 for an empty index.
func (x *VectorIndex) Dimension() int {
	return x.dimension
}

// Records returns a copy of the records in insertion order.
func (x *VectorIndex) Records() []domain.VectorRecord {
	out := make([]domain.VectorRecord, len(x.records))
	copy(out, x.records)
	return out
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
