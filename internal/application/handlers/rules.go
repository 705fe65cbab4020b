package handlers

import (
	"fmt"
	"sort"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// RulesCheckResult describes a rule catalog that compiled cleanly.
type RulesCheckResult struct {
	Sources []string        `json:"sources"`
	Digest  string          `json:"digest"`
	Summary catalog.Summary `json:"summary"`
}

// CheckRules loads and compiles the catalog at path.
func CheckRules(path string) (*catalog.Catalog, *RulesCheckResult, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cat, &RulesCheckResult{
		Sources: cat.Sources(),
		Digest:  cat.Digest(),
		Summary: cat.Summary(),
	}, nil
}

// RangeView is one effective range of a class, with the scope it came from.
type RangeView struct {
	Property string   `json:"property"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Scope    string   `json:"scope"`
}

// ClassRules is everything the catalog says about one canonical class.
type ClassRules struct {
	Class         string                     `json:"class"`
	Tier          entities.Tier              `json:"tier,omitempty"`
	Required      []string                   `json:"required_properties,omitempty"`
	Ranges        []RangeView                `json:"ranges,omitempty"`
	UnitOverrides map[string]string          `json:"unit_overrides,omitempty"`
	Keywords      *catalog.KeywordRule       `json:"keywords,omitempty"`
	Neighbors     []catalog.NeighborRule     `json:"neighbor_rules,omitempty"`
	Incoherence   []*catalog.IncoherenceRule `json:"-"`
}

// IncoherenceIDs returns the ids of the incoherence rules in scope.
func (c *ClassRules) IncoherenceIDs() []string {
	ids := make([]string, 0, len(c.Incoherence))
	for _, r := range c.Incoherence {
		ids = append(ids, r.ID)
	}
	return ids
}

// ShowClass collects the rules that apply to a canonical class.
func ShowClass(cat *catalog.Catalog, class string) (*ClassRules, error) {
	if !cat.Allowed(class) {
		return nil, fmt.Errorf("unknown class %q", class)
	}

	tier, _ := cat.TierOf(class)
	cr := &ClassRules{
		Class:     class,
		Tier:      tier,
		Required:  cat.RequiredProperties(class),
		Neighbors: cat.NeighborRules(class),
	}

	if kw, ok := cat.KeywordRule(class); ok {
		cr.Keywords = &kw
	}

	// Class ranges shadow global ranges of the same property.
	ranges := cat.Ranges()
	seen := make(map[string]bool)
	for name, r := range ranges.Class(class) {
		seen[name] = true
		cr.Ranges = append(cr.Ranges, RangeView{Property: r.Property, Min: r.Min, Max: r.Max, Scope: "class"})
	}
	for name, r := range ranges.Global() {
		if !seen[name] {
			cr.Ranges = append(cr.Ranges, RangeView{Property: r.Property, Min: r.Min, Max: r.Max, Scope: "global"})
		}
	}
	sort.Slice(cr.Ranges, func(i, j int) bool {
		return cr.Ranges[i].Property < cr.Ranges[j].Property
	})

	if overrides := cat.UnitOverrides().Class(class); len(overrides) > 0 {
		cr.UnitOverrides = overrides
	}

	cr.Incoherence = cat.IncoherenceRules(class, tier)
	return cr, nil
}
