// Package catalog loads the rule tables that drive canonicalization and
// validation. A Catalog is built once, validated eagerly and never mutated
// afterwards, so it is shared by every worker without locking.
package catalog

import (
	"slices"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/units"
)

// Catalog is the immutable set of rule tables.
type Catalog struct {
	allowed      []string
	allowedSet   map[string]bool
	classMap     map[string]string
	classMapFold map[string]string
	tiers        map[string]entities.Tier
	ifcFallback  bool

	overrides       []Override
	reportAmbiguous bool

	keywords      map[string]KeywordRule
	required      map[string][]string
	ranges        Scoped[Range]
	unitOverrides Scoped[string]
	normalizer    *units.Normalizer

	neighbors   map[string][]NeighborRule
	incoherence []*IncoherenceRule
	byClass     map[string][]*IncoherenceRule

	sources []string
	digest  string
}

// AllowedClasses returns the closed set of canonical classes in declaration order.
func (c *Catalog) AllowedClasses() []string {
	return slices.Clone(c.allowed)
}

// Allowed reports whether class is a canonical class.
func (c *Catalog) Allowed(class string) bool {
	return c.allowedSet[class]
}

// MapClass resolves a raw source class through the class map. An exact entry
// wins over a case-insensitive one; the Ifc prefix fallback applies last.
func (c *Catalog) MapClass(sourceClass string) (string, bool) {
	if target, ok := c.classMap[sourceClass]; ok {
		return target, true
	}
	if target, ok := c.classMapFold[strings.ToLower(sourceClass)]; ok {
		return target, true
	}
	if c.ifcFallback && len(sourceClass) > 3 && strings.EqualFold(sourceClass[:3], "ifc") {
		if bare := sourceClass[3:]; c.allowedSet[bare] {
			return bare, true
		}
	}
	return "", false
}

// TierOf returns the tier declared for a canonical class.
func (c *Catalog) TierOf(class string) (entities.Tier, bool) {
	t, ok := c.tiers[class]
	return t, ok
}

// Overrides returns the keyword overrides in declaration order.
func (c *Catalog) Overrides() []Override {
	return slices.Clone(c.overrides)
}

// ReportAmbiguousOverrides reports whether several matching overrides with
// different targets should be flagged.
func (c *Catalog) ReportAmbiguousOverrides() bool {
	return c.reportAmbiguous
}

// KeywordRule returns the keyword-consistency rule of a class.
func (c *Catalog) KeywordRule(class string) (KeywordRule, bool) {
	r, ok := c.keywords[class]
	return r, ok
}

// RequiredProperties returns the properties a class must carry, in declaration order.
func (c *Catalog) RequiredProperties(class string) []string {
	return slices.Clone(c.required[class])
}

// Range resolves the effective bounds of a property on a class.
func (c *Catalog) Range(class, property string) (Range, Scope, bool) {
	return c.ranges.Lookup(class, property)
}

// Ranges exposes the scoped range table.
func (c *Catalog) Ranges() Scoped[Range] {
	return c.ranges
}

// UnitOverrides exposes the scoped unit table: property defaults globally and
// per-class overrides.
func (c *Catalog) UnitOverrides() Scoped[string] {
	return c.unitOverrides
}

// Normalizer returns the unit normalizer configured from the units section.
func (c *Catalog) Normalizer() *units.Normalizer {
	return c.normalizer
}

// NeighborRules returns the relation minimums of a class in declaration order.
func (c *Catalog) NeighborRules(class string) []NeighborRule {
	return slices.Clone(c.neighbors[class])
}

// IncoherenceRules returns the rules in scope for an entity, in declaration order.
func (c *Catalog) IncoherenceRules(class string, tier entities.Tier) []*IncoherenceRule {
	if t, ok := c.tiers[class]; ok && t == tier {
		return c.byClass[class]
	}
	var out []*IncoherenceRule
	for _, r := range c.incoherence {
		if r.AppliesTo(class, tier) {
			out = append(out, r)
		}
	}
	return out
}

// AllIncoherenceRules returns every incoherence rule in declaration order.
func (c *Catalog) AllIncoherenceRules() []*IncoherenceRule {
	return slices.Clone(c.incoherence)
}

// Sources lists the files the catalog was loaded from.
func (c *Catalog) Sources() []string {
	return slices.Clone(c.sources)
}

// Digest is a content hash of the catalog sources, recorded with each run.
func (c *Catalog) Digest() string {
	return c.digest
}

// Summary counts the rules of each table.
type Summary struct {
	Classes            int `json:"classes"`
	ClassMappings      int `json:"class_mappings"`
	KeywordOverrides   int `json:"keyword_overrides"`
	KeywordConsistency int `json:"keyword_consistency"`
	RequiredProperties int `json:"required_properties"`
	GlobalRanges       int `json:"global_ranges"`
	ClassRanges        int `json:"class_ranges"`
	NeighborRules      int `json:"neighbor_rules"`
	IncoherenceRules   int `json:"incoherence_rules"`
	Exceptions         int `json:"exceptions"`
}

// Summary returns rule counts for reporting.
func (c *Catalog) Summary() Summary {
	s := Summary{
		Classes:            len(c.allowed),
		ClassMappings:      len(c.classMap),
		KeywordOverrides:   len(c.overrides),
		KeywordConsistency: len(c.keywords),
		GlobalRanges:       len(c.ranges.global),
		IncoherenceRules:   len(c.incoherence),
	}
	for _, props := range c.required {
		s.RequiredProperties += len(props)
	}
	for _, props := range c.ranges.classes {
		s.ClassRanges += len(props)
	}
	for _, rules := range c.neighbors {
		s.NeighborRules += len(rules)
	}
	for _, r := range c.incoherence {
		s.Exceptions += len(r.Exceptions)
	}
	return s
}
