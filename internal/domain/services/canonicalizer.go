package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// AssistPrecedence decides where an assist proposal sits in class resolution.
type AssistPrecedence string

// AssistPrecedence values.
const (
	AssistFallback  AssistPrecedence = "fallback"  // after the class map
	AssistPreferred AssistPrecedence = "preferred" // before the class map, after overrides
	AssistIgnore    AssistPrecedence = "ignore"
)

// ParseAssistPrecedence converts a string to an AssistPrecedence. Empty means fallback.
func ParseAssistPrecedence(s string) (AssistPrecedence, error) {
	switch p := AssistPrecedence(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return AssistFallback, nil
	case AssistFallback, AssistPreferred, AssistIgnore:
		return p, nil
	default:
		return "", fmt.Errorf("unknown assist precedence %q", s)
	}
}

// Resolution is the result of canonicalizing one entity.
type Resolution struct {
	Class      string
	Tier       entities.Tier
	Outcome    entities.Outcome
	Source     entities.ClassSource
	Confidence *float64
	OverrideID string
	Flags      []entities.Flag
}

// Canonicalizer assigns canonical classes from the catalog.
type Canonicalizer struct {
	cat        *catalog.Catalog
	precedence AssistPrecedence
}

// NewCanonicalizer creates a canonicalizer.
func NewCanonicalizer(cat *catalog.Catalog, precedence AssistPrecedence) *Canonicalizer {
	if precedence == "" {
		precedence = AssistFallback
	}
	return &Canonicalizer{cat: cat, precedence: precedence}
}

// Resolve computes the canonical class of e without modifying it.
//
// Keyword overrides are tried first in declaration order, then the class map,
// then the assist proposal when it names an allowed class. The returned error
// joins override conditions that failed to evaluate; those overrides count as
// not matching and each one is also reported as a flag.
func (c *Canonicalizer) Resolve(e *entities.Entity) (Resolution, error) {
	res := Resolution{Tier: e.Tier}
	subj := newSubject(e, nil)
	name := strings.ToLower(e.Name)

	var errs []error
	var matched []*catalog.Override

	overrides := c.cat.Overrides()
	for i := range overrides {
		o := &overrides[i]
		ok, err := o.Matches(e.SourceClass, name, subj.searchText(), subj)
		if err != nil {
			errs = append(errs, fmt.Errorf("override %s: %w", o.ID, err))
			res.Flags = append(res.Flags, evaluationFlag(e.ID, entities.StageCanonicalize, "override."+o.ID, err))
			continue
		}
		if !ok {
			continue
		}
		matched = append(matched, o)
		if !c.cat.ReportAmbiguousOverrides() {
			break
		}
	}

	proposal := c.candidate(e)

	switch {
	case len(matched) > 0:
		first := matched[0]
		res.Class, res.Source, res.OverrideID = first.Target, entities.ClassSourceRule, first.ID
		res.Confidence = e.Confidence
		res.Outcome = entities.OutcomeMapped
		if f, ok := ambiguityFlag(e.ID, matched); ok {
			res.Flags = append(res.Flags, f)
			res.Outcome = entities.OutcomeAmbiguous
		}
	case proposal != nil && c.precedence == AssistPreferred:
		c.useProposal(&res, proposal)
	default:
		if class, ok := c.cat.MapClass(e.SourceClass); ok {
			res.Class, res.Source, res.Outcome = class, entities.ClassSourceRule, entities.OutcomeMapped
			res.Confidence = e.Confidence
		} else if proposal != nil {
			c.useProposal(&res, proposal)
		}
	}

	if res.Class == "" {
		res.Outcome = entities.OutcomeUnmapped
		res.Flags = append(res.Flags, entities.Flag{
			EntityID: e.ID,
			Kind:     entities.FlagUnmappedClass,
			Severity: entities.SeverityError,
			Stage:    entities.StageCanonicalize,
			Subject:  e.SourceClass,
			Message:  fmt.Sprintf("source class %q has no canonical mapping", e.SourceClass),
		})
		return res, errors.Join(errs...)
	}

	if tier, ok := c.cat.TierOf(res.Class); ok {
		res.Tier = tier
	}
	res.Flags = append(res.Flags, c.keywordFlags(e.ID, res.Class, subj.searchText())...)

	return res, errors.Join(errs...)
}

// Canonicalize resolves e and writes the result onto it.
func (c *Canonicalizer) Canonicalize(e *entities.Entity) (Resolution, error) {
	res, err := c.Resolve(e)
	e.CanonicalClass = res.Class
	e.Tier = res.Tier
	e.ClassSource = res.Source
	e.Confidence = res.Confidence
	return res, err
}

// candidate returns the proposal when it may be used at all.
func (c *Canonicalizer) candidate(e *entities.Entity) *entities.Proposal {
	if c.precedence == AssistIgnore || e.Proposal == nil {
		return nil
	}
	if !c.cat.Allowed(e.Proposal.Class) {
		return nil
	}
	return e.Proposal
}

func (c *Canonicalizer) useProposal(res *Resolution, p *entities.Proposal) {
	res.Class = p.Class
	res.Source = entities.ClassSourceAssist
	res.Outcome = entities.OutcomeMapped
	res.Confidence = p.Confidence
}

func (c *Canonicalizer) keywordFlags(entityID, class, text string) []entities.Flag {
	rule, ok := c.cat.KeywordRule(class)
	if !ok {
		return nil
	}

	var flags []entities.Flag
	if len(rule.MustContainAny) > 0 {
		if _, found := catalog.FirstKeyword(text, rule.MustContainAny); !found {
			flags = append(flags, entities.Flag{
				EntityID: entityID,
				Kind:     entities.FlagInconsistentKeyword,
				Severity: entities.SeverityWarning,
				Stage:    entities.StageCanonicalize,
				RuleID:   "keyword." + class + ".any",
				Subject:  strings.Join(rule.MustContainAny, ","),
				Message:  fmt.Sprintf("%s text contains none of: %s", class, strings.Join(rule.MustContainAny, ", ")),
			})
		}
	}
	for _, kw := range rule.MustContainNone {
		if !catalog.HasKeyword(text, kw) {
			continue
		}
		flags = append(flags, entities.Flag{
			EntityID: entityID,
			Kind:     entities.FlagInconsistentKeyword,
			Severity: entities.SeverityWarning,
			Stage:    entities.StageCanonicalize,
			RuleID:   "keyword." + class + ".none",
			Subject:  kw,
			Message:  fmt.Sprintf("%s text contains forbidden keyword %q", class, kw),
		})
	}
	return flags
}

// ambiguityFlag reports overrides that matched with different targets.
func ambiguityFlag(entityID string, matched []*catalog.Override) (entities.Flag, bool) {
	first := matched[0]
	var others []string
	for _, o := range matched[1:] {
		if o.Target != first.Target {
			others = append(others, fmt.Sprintf("%s (%s)", o.ID, o.Target))
		}
	}
	if len(others) == 0 {
		return entities.Flag{}, false
	}
	return entities.Flag{
		EntityID: entityID,
		Kind:     entities.FlagAmbiguousMapping,
		Severity: entities.SeverityInfo,
		Stage:    entities.StageCanonicalize,
		RuleID:   "override." + first.ID,
		Subject:  first.Target,
		Message:  fmt.Sprintf("override %s chose %s; also matched %s", first.ID, first.Target, strings.Join(others, ", ")),
	}, true
}

func evaluationFlag(entityID string, stage entities.Stage, ruleID string, err error) entities.Flag {
	return entities.Flag{
		EntityID: entityID,
		Kind:     entities.FlagEvaluationError,
		Severity: entities.SeverityError,
		Stage:    stage,
		RuleID:   ruleID,
		Message:  err.Error(),
	}
}
