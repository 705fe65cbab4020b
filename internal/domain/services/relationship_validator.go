package services

import (
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// RelationshipValidator checks neighbor minimums.
type RelationshipValidator struct {
	cat *catalog.Catalog
}

// NewRelationshipValidator creates a relationship validator.
func NewRelationshipValidator(cat *catalog.Catalog) *RelationshipValidator {
	return &RelationshipValidator{cat: cat}
}

// Validate counts the distinct related ids of every neighbor rule of the
// entity's class. Rules with a class filter only count neighbors whose class
// is known and listed.
func (v *RelationshipValidator) Validate(e *entities.Entity, index NeighborIndex) []entities.Flag {
	if e.CanonicalClass == "" {
		return nil
	}

	var flags []entities.Flag
	for _, rule := range v.cat.NeighborRules(e.CanonicalClass) {
		count := 0
		for _, id := range e.RelatedIDs(rule.Relation) {
			if len(rule.Classes) == 0 {
				count++
				continue
			}
			class, ok := index.ClassOf(e, id)
			if ok && hasFold(rule.Classes, class) {
				count++
			}
		}
		if count >= rule.Min {
			continue
		}

		what := rule.Relation
		if len(rule.Classes) > 0 {
			what += " " + strings.Join(rule.Classes, "/")
		}
		flags = append(flags, entities.Flag{
			EntityID: e.ID,
			Kind:     entities.FlagInconsistentNeighbor,
			Severity: entities.SeverityError,
			Stage:    entities.StageRelationship,
			RuleID:   "neighbor." + e.CanonicalClass + "." + rule.Relation,
			Subject:  rule.Relation,
			Message:  fmt.Sprintf("%s needs at least %d %s neighbor(s), found %d", e.CanonicalClass, rule.Min, what, count),
			Observed: entities.Float(float64(count)),
			Limit:    entities.Float(float64(rule.Min)),
		})
	}
	return flags
}

func hasFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
