package mocks

import (
	"context"
	"sync"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
)

// ClassAssistant is a mock implementation of ports.ClassAssistant.
// It is safe for concurrent use.
type ClassAssistant struct {
	// Proposals by entity id. Entities without an entry get Default.
	Proposals map[string]*entities.Proposal
	Default   *entities.Proposal
	Err       error

	mu       sync.Mutex
	requests []ports.AssistRequest
}

// Propose returns the configured proposal or error.
func (m *ClassAssistant) Propose(ctx context.Context, req ports.AssistRequest) (*entities.Proposal, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.Proposals[req.Entity.ID]; ok {
		return p, nil
	}
	return m.Default, nil
}

// Requests returns the requests received so far.
func (m *ClassAssistant) Requests() []ports.AssistRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.AssistRequest(nil), m.requests...)
}
