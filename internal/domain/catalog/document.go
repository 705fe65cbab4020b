package catalog

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ersonp/trustbim/internal/domain/predicate"
)

// document is the YAML shape of one rule file. Lists whose order matters are
// sequences; maps are used only for unordered lookups.
type document struct {
	Classes                  classesDoc               `yaml:"classes"`
	KeywordOverrides         []overrideDoc            `yaml:"keyword_overrides"`
	ReportAmbiguousOverrides *bool                    `yaml:"report_ambiguous_overrides"`
	KeywordConsistency       map[string]keywordDoc    `yaml:"keyword_consistency"`
	RequiredProperties       map[string][]string      `yaml:"required_properties"`
	Ranges                   rangesDoc                `yaml:"ranges"`
	Units                    unitsDoc                 `yaml:"units"`
	NeighborRules            map[string][]neighborDoc `yaml:"neighbor_rules"`
	IncoherenceRules         []incoherenceDoc         `yaml:"incoherence_rules"`
}

type classesDoc struct {
	Allowed           []string          `yaml:"allowed"`
	Map               map[string]string `yaml:"map"`
	Tiers             map[string]string `yaml:"tiers"`
	IfcPrefixFallback *bool             `yaml:"ifc_prefix_fallback"`
}

type overrideDoc struct {
	ID            string                `yaml:"id"`
	SourceClasses []string              `yaml:"source_classes"`
	Keywords      []string              `yaml:"keywords"`
	MatchOn       string                `yaml:"match_on"`
	When          *predicate.Expression `yaml:"when"`
	Target        string                `yaml:"target"`
}

type keywordDoc struct {
	MustContainAny  []string `yaml:"must_contain_any"`
	MustContainNone []string `yaml:"must_contain_none"`
}

type rangeDoc struct {
	Min *float64 `yaml:"min"`
	Max *float64 `yaml:"max"`
}

type rangesDoc struct {
	Global  map[string]rangeDoc            `yaml:"global"`
	Classes map[string]map[string]rangeDoc `yaml:"classes"`
}

type unitsDoc struct {
	Aliases   map[string]string            `yaml:"aliases"`
	Defaults  map[string]string            `yaml:"defaults"`
	Patterns  []patternDoc                 `yaml:"patterns"`
	Overrides map[string]map[string]string `yaml:"overrides"`
}

type patternDoc struct {
	Match string `yaml:"match"`
	Unit  string `yaml:"unit"`
}

type neighborDoc struct {
	Relation string   `yaml:"relation"`
	Min      int      `yaml:"min_count"`
	Classes  []string `yaml:"classes"`
}

type incoherenceDoc struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description"`
	Hint        string               `yaml:"hint"`
	Severity    string               `yaml:"severity"`
	Classes     []string             `yaml:"classes"`
	Tiers       []string             `yaml:"tiers"`
	Condition   predicate.Expression `yaml:"condition"`
	Exceptions  []exceptionDoc       `yaml:"exceptions"`
}

type exceptionDoc struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description"`
	When        predicate.Expression `yaml:"when"`
}

// merge folds src, read from file, into d. Sequences are appended in file
// order; a key defined by two files is an error.
func (d *document) merge(src document, file string) []error {
	var errs []error
	dup := func(section, key string) {
		errs = append(errs, fmt.Errorf("%s: %s %q is already defined by another file", file, section, key))
	}

	d.Classes.Allowed = append(d.Classes.Allowed, src.Classes.Allowed...)
	d.Classes.Map = mergeMap(d.Classes.Map, src.Classes.Map, "classes.map", dup)
	d.Classes.Tiers = mergeMap(d.Classes.Tiers, src.Classes.Tiers, "classes.tiers", dup)
	if src.Classes.IfcPrefixFallback != nil {
		if d.Classes.IfcPrefixFallback != nil {
			dup("classes", "ifc_prefix_fallback")
		}
		d.Classes.IfcPrefixFallback = src.Classes.IfcPrefixFallback
	}

	d.KeywordOverrides = append(d.KeywordOverrides, src.KeywordOverrides...)
	if src.ReportAmbiguousOverrides != nil {
		if d.ReportAmbiguousOverrides != nil {
			dup("setting", "report_ambiguous_overrides")
		}
		d.ReportAmbiguousOverrides = src.ReportAmbiguousOverrides
	}

	d.KeywordConsistency = mergeMap(d.KeywordConsistency, src.KeywordConsistency, "keyword_consistency", dup)
	d.RequiredProperties = mergeMap(d.RequiredProperties, src.RequiredProperties, "required_properties", dup)
	d.Ranges.Global = mergeMap(d.Ranges.Global, src.Ranges.Global, "ranges.global", dup)
	d.Ranges.Classes = mergeNested(d.Ranges.Classes, src.Ranges.Classes, "ranges.classes", dup)

	d.Units.Aliases = mergeMap(d.Units.Aliases, src.Units.Aliases, "units.aliases", dup)
	d.Units.Defaults = mergeMap(d.Units.Defaults, src.Units.Defaults, "units.defaults", dup)
	d.Units.Patterns = append(d.Units.Patterns, src.Units.Patterns...)
	d.Units.Overrides = mergeNested(d.Units.Overrides, src.Units.Overrides, "units.overrides", dup)

	d.NeighborRules = mergeMap(d.NeighborRules, src.NeighborRules, "neighbor_rules", dup)
	d.IncoherenceRules = append(d.IncoherenceRules, src.IncoherenceRules...)

	return errs
}

func mergeMap[V any](dst, src map[string]V, section string, dup func(section, key string)) map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for _, k := range slices.Sorted(maps.Keys(src)) {
		if _, exists := dst[k]; exists {
			dup(section, k)
			continue
		}
		dst[k] = src[k]
	}
	return dst
}

func mergeNested[V any](dst, src map[string]map[string]V, section string, dup func(section, key string)) map[string]map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]map[string]V, len(src))
	}
	for _, class := range slices.Sorted(maps.Keys(src)) {
		dst[class] = mergeMap(dst[class], src[class], section+"."+class, dup)
	}
	return dst
}
