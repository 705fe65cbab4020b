package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
)

// DefaultEmbedBatchSize bounds how many references are embedded per request.
const DefaultEmbedBatchSize = 64

// ReferenceService indexes and retrieves reference snippets for assist prompts.
type ReferenceService struct {
	embedder ports.Embedder
	store    ports.ReferenceStore
}

// NewReferenceService creates a new reference service.
func NewReferenceService(embedder ports.Embedder, store ports.ReferenceStore) *ReferenceService {
	return &ReferenceService{embedder: embedder, store: store}
}

// Index embeds references and stores them. References without an id or any
// text are skipped. It returns how many were stored.
func (s *ReferenceService) Index(ctx context.Context, refs []entities.Reference) (int, error) {
	valid := make([]entities.Reference, 0, len(refs))
	for _, r := range refs {
		if r.ID == "" || referenceText(&r) == "" {
			continue
		}
		valid = append(valid, r)
	}

	for start := 0; start < len(valid); start += DefaultEmbedBatchSize {
		end := min(start+DefaultEmbedBatchSize, len(valid))
		batch := valid[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = referenceText(&batch[i])
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return start, fmt.Errorf("embedding references: %w", err)
		}
		if len(vectors) != len(batch) {
			return start, fmt.Errorf("embedding references: got %d vectors for %d texts", len(vectors), len(batch))
		}
		if err := s.store.Upsert(ctx, batch, vectors); err != nil {
			return start, fmt.Errorf("storing references: %w", err)
		}
	}

	return len(valid), nil
}

// Search returns the references nearest to text.
func (s *ReferenceService) Search(ctx context.Context, text string, limit int) ([]entities.Reference, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	refs, err := s.store.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("searching references: %w", err)
	}
	return refs, nil
}

// referenceText converts a reference to searchable text for embedding.
func referenceText(r *entities.Reference) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Title, r.Snippet, strings.Join(r.Classes, ", ")} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}
