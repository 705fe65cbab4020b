package ports

import (
	"context"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// ReferenceStore holds reference snippets with their embeddings.
type ReferenceStore interface {
	// Upsert stores references with their vectors. vectors[i] belongs to refs[i].
	Upsert(ctx context.Context, refs []entities.Reference, vectors [][]float32) error

	// Search returns the references nearest to the vector, best first, with Score set.
	Search(ctx context.Context, vector []float32, limit int) ([]entities.Reference, error)

	// Count returns the number of stored references.
	Count(ctx context.Context) (uint64, error)
}
