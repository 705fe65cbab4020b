package services

import (
	"fmt"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// PropertyValidator checks required properties and numeric ranges.
type PropertyValidator struct {
	cat *catalog.Catalog
}

// NewPropertyValidator creates a property validator.
func NewPropertyValidator(cat *catalog.Catalog) *PropertyValidator {
	return &PropertyValidator{cat: cat}
}

// Validate returns missing-property flags in catalog order followed by range
// flags in property name order.
func (v *PropertyValidator) Validate(e *entities.Entity) []entities.Flag {
	var flags []entities.Flag
	class := e.CanonicalClass

	if class != "" {
		for _, name := range v.cat.RequiredProperties(class) {
			if p, ok := e.Property(name); ok && p.Resolved() {
				continue
			}
			flags = append(flags, entities.Flag{
				EntityID: e.ID,
				Kind:     entities.FlagMissingRequired,
				Severity: entities.SeverityError,
				Stage:    entities.StageProperty,
				RuleID:   "required." + class + "." + name,
				Subject:  name,
				Message:  fmt.Sprintf("%s requires property %s", class, name),
			})
		}
	}

	for _, name := range e.PropertyNames() {
		p := e.Properties[name]
		if !p.Normalized() {
			continue
		}
		r, scope, ok := v.cat.Range(class, name)
		if !ok {
			continue
		}
		value := *p.Value
		bound, violated := r.Check(value)
		if !violated {
			continue
		}

		ruleID := "range.global." + r.Property
		if scope == catalog.ScopeClass {
			ruleID = "range.class." + class + "." + r.Property
		}
		side := "above maximum"
		if value < bound {
			side = "below minimum"
		}
		flags = append(flags, entities.Flag{
			EntityID: e.ID,
			Kind:     entities.FlagOutOfRange,
			Severity: entities.SeverityError,
			Stage:    entities.StageProperty,
			RuleID:   ruleID,
			Subject:  name,
			Message:  fmt.Sprintf("%s %g %s is %s %g", name, value, p.Unit, side, bound),
			Observed: entities.Float(value),
			Limit:    entities.Float(bound),
		})
	}

	return flags
}
