package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/domain/services"
)

// ReferencesHandler indexes and searches reference documents.
type ReferencesHandler struct {
	service           *services.ReferenceService
	collectionManager ports.CollectionManager
	vectorSize        uint64
}

// NewReferencesHandler creates a new references handler. collectionManager may be nil.
func NewReferencesHandler(service *services.ReferenceService, collectionManager ports.CollectionManager, vectorSize uint64) *ReferencesHandler {
	return &ReferencesHandler{
		service:           service,
		collectionManager: collectionManager,
		vectorSize:        vectorSize,
	}
}

// IndexResult contains the result of indexing a reference file.
type IndexResult struct {
	FilePath string
	Read     int
	Indexed  int
}

// Index reads a JSON array or JSON lines file of reference documents and
// stores them with their embeddings.
func (h *ReferencesHandler) Index(ctx context.Context, path string) (*IndexResult, error) {
	refs, err := ReadReferences(path)
	if err != nil {
		return nil, err
	}

	if h.collectionManager != nil {
		if err := h.collectionManager.EnsureCollection(ctx, h.vectorSize); err != nil {
			return nil, fmt.Errorf("creating collection: %w", err)
		}
	}

	n, err := h.service.Index(ctx, refs)
	if err != nil {
		return nil, err
	}

	return &IndexResult{FilePath: path, Read: len(refs), Indexed: n}, nil
}

// Search returns the references nearest to text.
func (h *ReferencesHandler) Search(ctx context.Context, text string, limit int) ([]entities.Reference, error) {
	return h.service.Search(ctx, text, limit)
}

// referenceDoc is the on-disk shape of a reference document.
type referenceDoc struct {
	ID      string   `json:"id"`
	DocID   string   `json:"doc_id"`
	Title   string   `json:"title"`
	Source  string   `json:"source"`
	Path    string   `json:"path"`
	Snippet string   `json:"snippet"`
	Text    string   `json:"text"`
	Classes []string `json:"classes"`
}

func (d referenceDoc) reference() entities.Reference {
	ref := entities.Reference{
		ID:      d.ID,
		Title:   d.Title,
		Source:  d.Source,
		Path:    d.Path,
		Snippet: d.Snippet,
		Classes: d.Classes,
	}
	if ref.ID == "" {
		ref.ID = d.DocID
	}
	if ref.Snippet == "" {
		ref.Snippet = d.Text
	}
	return ref
}

// ReadReferences reads reference documents from a JSON array or JSON lines file.
func ReadReferences(path string) ([]entities.Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading references: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var docs []referenceDoc
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("parsing references: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := bytes.TrimSpace(scanner.Bytes())
			if len(text) == 0 {
				continue
			}
			var d referenceDoc
			if err := json.Unmarshal(text, &d); err != nil {
				return nil, fmt.Errorf("parsing references line %d: %w", line, err)
			}
			docs = append(docs, d)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading references: %w", err)
		}
	}

	refs := make([]entities.Reference, 0, len(docs))
	for _, d := range docs {
		refs = append(refs, d.reference())
	}
	return refs, nil
}
