package catalog

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/predicate"
	"github.com/ersonp/trustbim/internal/domain/units"
)

// compiler turns a merged document into a Catalog, collecting every problem
// instead of stopping at the first.
type compiler struct {
	c    *Catalog
	errs []error
}

func (b *compiler) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

func compile(doc document) (*Catalog, []error) {
	b := &compiler{c: &Catalog{
		allowedSet:   make(map[string]bool),
		classMap:     make(map[string]string),
		classMapFold: make(map[string]string),
		tiers:        make(map[string]entities.Tier),
		keywords:     make(map[string]KeywordRule),
		required:     make(map[string][]string),
		neighbors:    make(map[string][]NeighborRule),
		byClass:      make(map[string][]*IncoherenceRule),
	}}

	b.classes(doc.Classes)
	b.overrides(doc.KeywordOverrides)
	if doc.ReportAmbiguousOverrides != nil {
		b.c.reportAmbiguous = *doc.ReportAmbiguousOverrides
	}
	b.keywordConsistency(doc.KeywordConsistency)
	b.requiredProperties(doc.RequiredProperties)
	b.ranges(doc.Ranges)
	b.units(doc.Units)
	b.neighborRules(doc.NeighborRules)
	b.incoherenceRules(doc.IncoherenceRules)

	return b.c, b.errs
}

func (b *compiler) checkClass(section, class string) bool {
	if !b.c.allowedSet[class] {
		b.errorf("%s: %q is not an allowed class", section, class)
		return false
	}
	return true
}

func (b *compiler) classes(doc classesDoc) {
	if len(doc.Allowed) == 0 {
		b.errorf("classes.allowed: at least one canonical class is required")
	}
	for i, class := range doc.Allowed {
		class = strings.TrimSpace(class)
		switch {
		case class == "":
			b.errorf("classes.allowed[%d]: empty class name", i)
		case b.c.allowedSet[class]:
			b.errorf("classes.allowed[%d]: duplicate class %q", i, class)
		default:
			b.c.allowedSet[class] = true
			b.c.allowed = append(b.c.allowed, class)
		}
	}

	for _, src := range slices.Sorted(maps.Keys(doc.Map)) {
		target := doc.Map[src]
		if strings.TrimSpace(src) == "" {
			b.errorf("classes.map: empty source class")
			continue
		}
		if !b.checkClass(fmt.Sprintf("classes.map[%q]", src), target) {
			continue
		}
		b.c.classMap[src] = target
		fold := strings.ToLower(src)
		if _, exists := b.c.classMapFold[fold]; !exists {
			b.c.classMapFold[fold] = target
		}
	}

	for _, class := range slices.Sorted(maps.Keys(doc.Tiers)) {
		if !b.checkClass("classes.tiers", class) {
			continue
		}
		tier, err := entities.ParseTier(doc.Tiers[class])
		if err != nil {
			b.errorf("classes.tiers[%q]: %w", class, err)
			continue
		}
		b.c.tiers[class] = tier
	}

	if doc.IfcPrefixFallback != nil {
		b.c.ifcFallback = *doc.IfcPrefixFallback
	}
}

func (b *compiler) overrides(docs []overrideDoc) {
	seen := make(map[string]bool)
	for i, d := range docs {
		section := fmt.Sprintf("keyword_overrides[%d]", i)
		if d.ID == "" {
			b.errorf("%s: missing id", section)
		} else {
			section = fmt.Sprintf("keyword_overrides[%d] (%s)", i, d.ID)
			if seen[d.ID] {
				b.errorf("%s: duplicate id", section)
			}
			seen[d.ID] = true
		}

		o := Override{ID: d.ID, SourceClasses: d.SourceClasses, Target: strings.TrimSpace(d.Target)}

		if o.Target == "" {
			b.errorf("%s: no target class", section)
		} else {
			b.checkClass(section+" target", o.Target)
		}

		switch m := strings.ToLower(strings.TrimSpace(d.MatchOn)); m {
		case "", MatchOnName:
			o.MatchOn = MatchOnName
		case MatchOnText:
			o.MatchOn = MatchOnText
		default:
			b.errorf("%s: match_on must be %q or %q, got %q", section, MatchOnName, MatchOnText, d.MatchOn)
		}

		o.Keywords = b.keywordList(section+" keywords", d.Keywords)

		if d.When != nil && !d.When.IsEmpty() {
			p, err := predicate.Compile(*d.When)
			if err != nil {
				b.errorf("%s when: %w", section, err)
			}
			o.When = p
		}

		if len(d.Keywords) == 0 && (d.When == nil || d.When.IsEmpty()) {
			b.errorf("%s: override has no keywords and no condition", section)
		}

		b.c.overrides = append(b.c.overrides, o)
	}
}

// keywordList lowercases keywords and rejects empty ones.
func (b *compiler) keywordList(section string, keywords []string) []string {
	var out []string
	for i, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			b.errorf("%s[%d]: empty keyword", section, i)
			continue
		}
		out = append(out, kw)
	}
	return out
}

func (b *compiler) keywordConsistency(docs map[string]keywordDoc) {
	for _, class := range slices.Sorted(maps.Keys(docs)) {
		section := fmt.Sprintf("keyword_consistency[%q]", class)
		if !b.checkClass("keyword_consistency", class) {
			continue
		}
		d := docs[class]
		if len(d.MustContainAny) == 0 && len(d.MustContainNone) == 0 {
			b.errorf("%s: empty keyword lists", section)
			continue
		}
		b.c.keywords[class] = KeywordRule{
			MustContainAny:  b.keywordList(section+".must_contain_any", d.MustContainAny),
			MustContainNone: b.keywordList(section+".must_contain_none", d.MustContainNone),
		}
	}
}

func (b *compiler) requiredProperties(docs map[string][]string) {
	for _, class := range slices.Sorted(maps.Keys(docs)) {
		if !b.checkClass("required_properties", class) {
			continue
		}
		seen := make(map[string]bool)
		var props []string
		for i, name := range docs[class] {
			name = strings.TrimSpace(name)
			k := strings.ToLower(name)
			switch {
			case name == "":
				b.errorf("required_properties[%q][%d]: empty property name", class, i)
			case seen[k]:
				b.errorf("required_properties[%q]: duplicate property %q", class, name)
			default:
				seen[k] = true
				props = append(props, name)
			}
		}
		b.c.required[class] = props
	}
}

func (b *compiler) rangeEntry(section, property string, d rangeDoc) (Range, bool) {
	if d.Min == nil && d.Max == nil {
		b.errorf("%s: range for %q has no bounds", section, property)
		return Range{}, false
	}
	if d.Min != nil && d.Max != nil && *d.Min > *d.Max {
		b.errorf("%s: range for %q has min %v greater than max %v", section, property, *d.Min, *d.Max)
		return Range{}, false
	}
	return Range{Property: property, Min: d.Min, Max: d.Max}, true
}

func (b *compiler) ranges(doc rangesDoc) {
	global := make(map[string]Range)
	for _, prop := range slices.Sorted(maps.Keys(doc.Global)) {
		if r, ok := b.rangeEntry("ranges.global", prop, doc.Global[prop]); ok {
			global[prop] = r
		}
	}

	classes := make(map[string]map[string]Range)
	for _, class := range slices.Sorted(maps.Keys(doc.Classes)) {
		if !b.checkClass("ranges.classes", class) {
			continue
		}
		props := make(map[string]Range)
		for _, prop := range slices.Sorted(maps.Keys(doc.Classes[class])) {
			if r, ok := b.rangeEntry(fmt.Sprintf("ranges.classes[%q]", class), prop, doc.Classes[class][prop]); ok {
				props[prop] = r
			}
		}
		classes[class] = props
	}

	b.c.ranges = NewScoped(global, classes)
}

func (b *compiler) units(doc unitsDoc) {
	quantities := make(map[string]units.Quantity)
	for _, prop := range slices.Sorted(maps.Keys(doc.Aliases)) {
		q, ok := units.ParseQuantity(doc.Aliases[prop])
		if !ok {
			b.errorf("units.aliases[%q]: unknown quantity %q", prop, doc.Aliases[prop])
			continue
		}
		quantities[strings.ToLower(strings.TrimSpace(prop))] = q
	}

	// A quantity-only normalizer answers quantity questions while the final one is built.
	qn := units.NewNormalizer(units.Rules{Quantities: quantities})
	checkUnit := func(section, prop, token string) bool {
		u, ok := units.Lookup(token)
		if !ok {
			b.errorf("%s: unknown unit %q", section, token)
			return false
		}
		if q := qn.QuantityOf(prop); q != units.Unknown && q != units.Unitless && u.Quantity != q {
			b.errorf("%s: unit %q is %s but %q is %s", section, token, u.Quantity, prop, q)
			return false
		}
		return true
	}

	defaults := make(map[string]string)
	for _, prop := range slices.Sorted(maps.Keys(doc.Defaults)) {
		if checkUnit(fmt.Sprintf("units.defaults[%q]", prop), prop, doc.Defaults[prop]) {
			defaults[prop] = doc.Defaults[prop]
		}
	}

	overrides := make(map[string]map[string]string)
	for _, class := range slices.Sorted(maps.Keys(doc.Overrides)) {
		if !b.checkClass("units.overrides", class) {
			continue
		}
		props := make(map[string]string)
		for _, prop := range slices.Sorted(maps.Keys(doc.Overrides[class])) {
			token := doc.Overrides[class][prop]
			if checkUnit(fmt.Sprintf("units.overrides[%q][%q]", class, prop), prop, token) {
				props[prop] = token
			}
		}
		overrides[class] = props
	}

	var patterns []units.NamePattern
	for i, p := range doc.Patterns {
		re, err := regexp.Compile(p.Match)
		if err != nil {
			b.errorf("units.patterns[%d]: %w", i, err)
			continue
		}
		if _, ok := units.Lookup(p.Unit); !ok {
			b.errorf("units.patterns[%d]: unknown unit %q", i, p.Unit)
			continue
		}
		patterns = append(patterns, units.NamePattern{Pattern: re, Unit: p.Unit})
	}

	scoped := NewScoped(defaults, overrides)
	b.c.unitOverrides = scoped
	b.c.normalizer = units.NewNormalizer(units.Rules{
		Quantities: quantities,
		Patterns:   patterns,
		Override: func(class, property string) (string, bool) {
			u, _, ok := scoped.Lookup(class, property)
			return u, ok
		},
	})
}

func (b *compiler) neighborRules(docs map[string][]neighborDoc) {
	for _, class := range slices.Sorted(maps.Keys(docs)) {
		if !b.checkClass("neighbor_rules", class) {
			continue
		}
		var rules []NeighborRule
		for i, d := range docs[class] {
			section := fmt.Sprintf("neighbor_rules[%q][%d]", class, i)
			rel := strings.TrimSpace(d.Relation)
			if rel == "" {
				b.errorf("%s: missing relation", section)
				continue
			}
			if d.Min < 0 {
				b.errorf("%s: min_count must not be negative", section)
				continue
			}
			for _, nc := range d.Classes {
				b.checkClass(section+" classes", nc)
			}
			rules = append(rules, NeighborRule{Relation: rel, Min: d.Min, Classes: d.Classes})
		}
		b.c.neighbors[class] = rules
	}
}

func (b *compiler) incoherenceRules(docs []incoherenceDoc) {
	seen := make(map[string]bool)
	for i, d := range docs {
		section := fmt.Sprintf("incoherence_rules[%d]", i)
		if d.ID == "" {
			b.errorf("%s: missing id", section)
		} else {
			section = fmt.Sprintf("incoherence_rules[%d] (%s)", i, d.ID)
			if seen[d.ID] {
				b.errorf("%s: duplicate id", section)
			}
			seen[d.ID] = true
		}

		r := &IncoherenceRule{
			ID:          d.ID,
			Description: d.Description,
			Hint:        d.Hint,
			Severity:    entities.SeverityWarning,
			Classes:     d.Classes,
		}

		if d.Severity != "" {
			sev, err := entities.ParseSeverity(d.Severity)
			if err != nil {
				b.errorf("%s: %w", section, err)
			}
			r.Severity = sev
		}

		for _, class := range d.Classes {
			b.checkClass(section+" classes", class)
		}
		for _, t := range d.Tiers {
			tier, err := entities.ParseTier(t)
			if err != nil {
				b.errorf("%s tiers: %w", section, err)
				continue
			}
			r.Tiers = append(r.Tiers, tier)
		}

		if d.Condition.IsEmpty() {
			b.errorf("%s: no condition", section)
		} else if p, err := predicate.Compile(d.Condition); err != nil {
			b.errorf("%s condition: %w", section, err)
		} else {
			r.Condition = p
		}

		exSeen := make(map[string]bool)
		for j, ex := range d.Exceptions {
			exSection := fmt.Sprintf("%s exceptions[%d]", section, j)
			if ex.ID == "" {
				b.errorf("%s: missing id", exSection)
			} else if exSeen[ex.ID] {
				b.errorf("%s: duplicate exception id %q", exSection, ex.ID)
			}
			exSeen[ex.ID] = true

			if ex.When.IsEmpty() {
				b.errorf("%s: exception has no predicate", exSection)
				continue
			}
			p, err := predicate.Compile(ex.When)
			if err != nil {
				b.errorf("%s: %w", exSection, err)
				continue
			}
			r.Exceptions = append(r.Exceptions, Exception{ID: ex.ID, Description: ex.Description, When: p})
		}

		b.c.incoherence = append(b.c.incoherence, r)
	}

	for class, tier := range b.c.tiers {
		for _, r := range b.c.incoherence {
			if r.AppliesTo(class, tier) {
				b.c.byClass[class] = append(b.c.byClass[class], r)
			}
		}
	}
}
