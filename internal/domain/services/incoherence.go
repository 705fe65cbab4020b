package services

import (
	"errors"
	"fmt"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/entities"
)

// IncoherenceEngine evaluates incoherence rules and their exceptions.
type IncoherenceEngine struct {
	cat *catalog.Catalog
}

// NewIncoherenceEngine creates an incoherence engine.
func NewIncoherenceEngine(cat *catalog.Catalog) *IncoherenceEngine {
	return &IncoherenceEngine{cat: cat}
}

// Evaluate runs every rule in scope for e, in declaration order, and returns
// the flags of unsuppressed violations together with one audit entry per rule.
// Rules that fail to evaluate are flagged and audited as errors; the returned
// error joins them. An exception that fails to evaluate is skipped.
func (ie *IncoherenceEngine) Evaluate(e *entities.Entity, index NeighborIndex) ([]entities.Flag, []entities.RuleEvaluation, error) {
	rules := ie.cat.IncoherenceRules(e.CanonicalClass, e.Tier)
	if len(rules) == 0 {
		return nil, nil, nil
	}

	subj := newSubject(e, index)
	var (
		flags []entities.Flag
		evals = make([]entities.RuleEvaluation, 0, len(rules))
		errs  []error
	)

	for _, rule := range rules {
		ev := entities.RuleEvaluation{EntityID: e.ID, RuleID: rule.ID}

		violated, err := rule.Condition.Evaluate(subj)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
			flags = append(flags, evaluationFlag(e.ID, entities.StageIncoherence, rule.ID, err))
			ev.Outcome, ev.Detail = entities.EvaluationError, err.Error()
			evals = append(evals, ev)
			continue
		}
		if !violated {
			ev.Outcome = entities.EvaluationPassed
			evals = append(evals, ev)
			continue
		}

		for _, ex := range rule.Exceptions {
			ok, err := ex.When.Evaluate(subj)
			if err != nil {
				errs = append(errs, fmt.Errorf("rule %s exception %s: %w", rule.ID, ex.ID, err))
				flags = append(flags, evaluationFlag(e.ID, entities.StageIncoherence, rule.ID+"/"+ex.ID, err))
				continue
			}
			if ok {
				ev.Outcome, ev.ExceptionID, ev.Detail = entities.EvaluationSuppressed, ex.ID, ex.Description
				break
			}
		}
		if ev.Outcome == entities.EvaluationSuppressed {
			evals = append(evals, ev)
			continue
		}

		ev.Outcome = entities.EvaluationViolated
		evals = append(evals, ev)
		flags = append(flags, entities.Flag{
			EntityID: e.ID,
			Kind:     entities.IncoherenceKind(rule.ID),
			Severity: rule.Severity,
			Stage:    entities.StageIncoherence,
			RuleID:   rule.ID,
			Message:  rule.Description,
			Hint:     rule.Hint,
		})
	}

	return flags, evals, errors.Join(errs...)
}
