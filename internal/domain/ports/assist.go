package ports

import (
	"context"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// AssistRequest is everything a class assistant may see about one entity.
type AssistRequest struct {
	Entity         *entities.Entity
	AllowedClasses []string
	References     []entities.Reference
}

// ClassAssistant proposes a canonical class for an entity. Proposals are
// candidates only; the canonicalizer decides whether to use them.
type ClassAssistant interface {
	Propose(ctx context.Context, req AssistRequest) (*entities.Proposal, error)
}
