package mocks

import (
	"context"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// ReferenceStore is a mock implementation of ports.ReferenceStore and
// ports.CollectionManager.
type ReferenceStore struct {
	References []entities.Reference
	Err        error

	EnsureCollectionErr error
	DeleteCollectionErr error

	// Call tracking
	UpsertCallCount           int
	UpsertLastRefs            []entities.Reference
	UpsertLastVectors         [][]float32
	SearchCallCount           int
	EnsureCollectionCallCount int
	DeleteCollectionCallCount int
}

// EnsureCollection returns the configured error.
func (m *ReferenceStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	m.EnsureCollectionCallCount++
	return m.EnsureCollectionErr
}

// DeleteCollection returns the configured error.
func (m *ReferenceStore) DeleteCollection(ctx context.Context) error {
	m.DeleteCollectionCallCount++
	return m.DeleteCollectionErr
}

// Upsert records the references.
func (m *ReferenceStore) Upsert(ctx context.Context, refs []entities.Reference, vectors [][]float32) error {
	m.UpsertCallCount++
	m.UpsertLastRefs = refs
	m.UpsertLastVectors = vectors
	return m.Err
}

// Search returns up to limit configured references.
func (m *ReferenceStore) Search(ctx context.Context, vector []float32, limit int) ([]entities.Reference, error) {
	m.SearchCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	if limit > len(m.References) {
		return m.References, nil
	}
	return m.References[:limit], nil
}

// Count returns the number of configured references.
func (m *ReferenceStore) Count(ctx context.Context) (uint64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return uint64(len(m.References)), nil
}
