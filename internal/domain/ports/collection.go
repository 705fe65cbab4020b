// Package ports defines the interfaces the domain uses to reach external services:
// the assist model, the embedder, the reference store and the run store.
package ports

import "context"

// CollectionManager handles vector collection lifecycle operations.
// It is kept apart from ReferenceStore so read-only callers do not depend on it.
type CollectionManager interface {
	// EnsureCollection creates the collection if it doesn't exist.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// DeleteCollection removes the collection and all its data.
	DeleteCollection(ctx context.Context) error
}
