package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// DefaultConfidenceThreshold is the confidence below which an entity is reviewed.
const DefaultConfidenceThreshold = 0.75

// ReviewPolicy decides which entities go to human review.
type ReviewPolicy struct {
	Severities          []entities.Severity
	ConfidenceThreshold float64 // 0 disables confidence routing
}

// DefaultReviewPolicy reviews entities with error flags or low confidence.
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicy{
		Severities:          []entities.Severity{entities.SeverityError},
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Aggregator merges stage outputs into a ValidationRecord.
type Aggregator struct {
	policy ReviewPolicy
}

// NewAggregator creates an aggregator.
func NewAggregator(policy ReviewPolicy) *Aggregator {
	return &Aggregator{policy: policy}
}

var stageOrder = func() map[entities.Stage]int {
	m := make(map[entities.Stage]int, len(entities.Stages))
	for i, s := range entities.Stages {
		m[s] = i
	}
	return m
}()

// Aggregate builds the record of a resolved and validated entity. Flags are
// grouped by stage; within a stage they keep the order they were raised in.
func (a *Aggregator) Aggregate(e *entities.Entity, res Resolution, flags []entities.Flag, evals []entities.RuleEvaluation) entities.ValidationRecord {
	merged := make([]entities.Flag, len(flags))
	copy(merged, flags)
	sort.SliceStable(merged, func(i, j int) bool {
		return stageOrder[merged[i].Stage] < stageOrder[merged[j].Stage]
	})

	rec := entities.ValidationRecord{
		EntityID:       e.ID,
		CanonicalClass: res.Class,
		Tier:           res.Tier,
		Outcome:        res.Outcome,
		ClassSource:    res.Source,
		Confidence:     res.Confidence,
		Flags:          merged,
		Evaluations:    evals,
	}
	if rec.Flags == nil {
		rec.Flags = []entities.Flag{}
	}

	rec.ReviewReasons = a.reasons(e, &rec)
	rec.RequiresReview = len(rec.ReviewReasons) > 0
	return rec
}

func (a *Aggregator) reasons(e *entities.Entity, rec *entities.ValidationRecord) []string {
	var reasons []string

	for _, sev := range a.policy.Severities {
		var kinds []string
		seen := make(map[entities.FlagKind]bool)
		for _, f := range rec.Flags {
			if f.Severity != sev || seen[f.Kind] {
				continue
			}
			seen[f.Kind] = true
			kinds = append(kinds, string(f.Kind))
		}
		if len(kinds) > 0 {
			reasons = append(reasons, fmt.Sprintf("%s flags: %s", sev, strings.Join(kinds, ", ")))
		}
	}

	threshold := a.policy.ConfidenceThreshold
	if threshold <= 0 {
		return reasons
	}
	if rec.Confidence != nil && *rec.Confidence < threshold {
		reasons = append(reasons, fmt.Sprintf("class confidence %.2f below %.2f", *rec.Confidence, threshold))
	}
	for _, name := range e.PropertyNames() {
		p := e.Properties[name]
		if p == nil || p.Confidence == nil || *p.Confidence >= threshold {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("property %s confidence %.2f below %.2f", name, *p.Confidence, threshold))
	}
	return reasons
}
