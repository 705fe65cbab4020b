package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/units"
)

// PropertyNormalizer converts every property of an entity to base units.
type PropertyNormalizer struct {
	n *units.Normalizer
}

// NewPropertyNormalizer creates a property normalizer.
func NewPropertyNormalizer(n *units.Normalizer) *PropertyNormalizer {
	return &PropertyNormalizer{n: n}
}

// Normalize normalizes the properties of e in place, in name order, using its
// canonical class for unit overrides. Values that cannot be parsed are left
// without a normalized value and reported; they never stop the entity.
func (pn *PropertyNormalizer) Normalize(e *entities.Entity) []entities.Flag {
	var flags []entities.Flag
	for _, name := range e.PropertyNames() {
		p := e.Properties[name]
		if p == nil {
			continue
		}
		if p.Name == "" {
			p.Name = name
		}

		res, err := pn.n.Apply(e.CanonicalClass, p)
		if err != nil {
			msg := err.Error()
			var perr *units.ParseError
			if errors.As(err, &perr) {
				msg = fmt.Sprintf("%s: cannot normalize %v: %s", name, perr.Raw, perr.Reason)
			}
			flags = append(flags, entities.Flag{
				EntityID: e.ID,
				Kind:     entities.FlagParseError,
				Severity: entities.SeverityWarning,
				Stage:    entities.StageNormalize,
				RuleID:   "unit." + name,
				Subject:  name,
				Message:  msg,
			})
			continue
		}
		if res.Assumed {
			flags = append(flags, entities.Flag{
				EntityID: e.ID,
				Kind:     entities.FlagUnitAssumed,
				Severity: entities.SeverityWarning,
				Stage:    entities.StageNormalize,
				RuleID:   "unit." + name,
				Subject:  name,
				Message:  fmt.Sprintf("%s has no unit; assumed %s", name, res.Unit),
			})
		}
	}
	return flags
}

// MergeProposal copies the properties of the assist proposal onto e. A proposed
// property replaces a source property of the same name, matched case-insensitively,
// and is marked inferred.
func MergeProposal(e *entities.Entity) {
	if e.Proposal == nil || len(e.Proposal.Properties) == 0 {
		return
	}
	if e.Properties == nil {
		e.Properties = make(map[string]*entities.Property, len(e.Proposal.Properties))
	}

	for name, proposed := range e.Proposal.Properties {
		if proposed == nil {
			continue
		}
		for existing := range e.Properties {
			if existing != name && strings.EqualFold(existing, name) {
				delete(e.Properties, existing)
			}
		}
		p := *proposed
		if p.Name == "" {
			p.Name = name
		}
		p.Provenance = entities.ProvenanceInferred
		e.Properties[name] = &p
	}
}
