package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

func beam(id string, signals map[string]any) *entities.Entity {
	return &entities.Entity{
		ID:             id,
		CanonicalClass: "Beam (Steel)",
		Tier:           entities.TierStructural,
		Signals:        signals,
	}
}

func TestIncoherenceEngine_Beam(t *testing.T) {
	ie := NewIncoherenceEngine(defaultCatalog(t))

	tests := []struct {
		name      string
		signals   map[string]any
		outcome   entities.EvaluationOutcome
		exception string
		flagged   bool
	}{
		{name: "supported", signals: map[string]any{"unsupported_ends": 0.0}, outcome: entities.EvaluationPassed},
		{name: "cantilever is suppressed", signals: map[string]any{"unsupported_ends": 1.0, "is_cantilever": true}, outcome: entities.EvaluationSuppressed, exception: "cantilever"},
		{name: "floating beam", signals: map[string]any{"unsupported_ends": 2.0}, outcome: entities.EvaluationViolated, flagged: true},
		{name: "cantilever with two free ends", signals: map[string]any{"unsupported_ends": 2.0, "is_cantilever": true}, outcome: entities.EvaluationViolated, flagged: true},
		{name: "no signal never violates", outcome: entities.EvaluationPassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags, evals, err := ie.Evaluate(beam("b1", tt.signals), nil)
			require.NoError(t, err)

			require.Len(t, evals, 1)
			assert.Equal(t, "beam-floating", evals[0].RuleID)
			assert.Equal(t, tt.outcome, evals[0].Outcome)
			assert.Equal(t, tt.exception, evals[0].ExceptionID)

			if !tt.flagged {
				assert.Empty(t, flags)
				return
			}
			require.Len(t, flags, 1)
			f := flags[0]
			assert.Equal(t, entities.IncoherenceKind("beam-floating"), f.Kind)
			assert.True(t, f.Kind.IsIncoherence())
			assert.Equal(t, entities.SeverityError, f.Severity)
			assert.Equal(t, "Beam has unsupported ends.", f.Message)
			assert.Equal(t, "Check the beam end supports or model it as a cantilever.", f.Hint)
		})
	}
}

func TestIncoherenceEngine_NeighborClasses(t *testing.T) {
	ie := NewIncoherenceEngine(defaultCatalog(t))
	index := NeighborIndex{
		{ID: "slab1"}: {Class: "Slabs"},
		{ID: "tb1"}:   {Class: "Transfer Beam"},
		{ID: "door1"}: {Class: "Doors"},
	}

	column := func(restsOn ...string) *entities.Entity {
		return &entities.Entity{
			ID:             "c1",
			CanonicalClass: "Columns (Concrete)",
			Tier:           entities.TierStructural,
			Relations:      map[string][]string{"restsOn": restsOn},
		}
	}

	tests := []struct {
		name      string
		entity    *entities.Entity
		outcome   entities.EvaluationOutcome
		exception string
	}{
		{name: "on a slab", entity: column("slab1"), outcome: entities.EvaluationPassed},
		{name: "on a transfer beam", entity: column("tb1"), outcome: entities.EvaluationSuppressed, exception: "transfer-beam"},
		{name: "on a door", entity: column("door1"), outcome: entities.EvaluationViolated},
		{name: "on nothing", entity: column(), outcome: entities.EvaluationViolated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, evals, err := ie.Evaluate(tt.entity, index)
			require.NoError(t, err)
			ev, ok := (&entities.ValidationRecord{Evaluations: evals}).Evaluation("column-floating")
			require.True(t, ok)
			assert.Equal(t, tt.outcome, ev.Outcome)
			assert.Equal(t, tt.exception, ev.ExceptionID)
		})
	}
}

func TestIncoherenceEngine_TierScope(t *testing.T) {
	ie := NewIncoherenceEngine(defaultCatalog(t))

	pump := &entities.Entity{ID: "p1", CanonicalClass: "Pump", Tier: entities.TierMEP, Signals: map[string]any{"is_connected": false}}
	flags, evals, err := ie.Evaluate(pump, nil)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, entities.SeverityWarning, flags[0].Severity)
	assert.Equal(t, entities.EvaluationViolated, evals[0].Outcome)

	ext := &entities.Entity{ID: "x1", CanonicalClass: "Extinguishers", Tier: entities.TierMEP, Signals: map[string]any{"is_connected": false}}
	flags, evals, err = ie.Evaluate(ext, nil)
	require.NoError(t, err)
	assert.Empty(t, flags)
	assert.Equal(t, "standalone-device", evals[0].ExceptionID)

	slab := &entities.Entity{ID: "s1", CanonicalClass: "Slabs", Tier: entities.TierStructural, Signals: map[string]any{"is_connected": false}}
	flags, evals, err = ie.Evaluate(slab, nil)
	require.NoError(t, err)
	assert.Empty(t, flags)
	assert.Empty(t, evals, "rules out of scope leave no audit entry")
}

const fragileRules = `
classes:
  allowed: [Pump]
incoherence_rules:
  - id: bad-condition
    description: compares text with a number
    condition: {conditions: [{field: signal.pressure, operator: gt, value: 3}]}
  - id: good
    description: always evaluated
    condition: {conditions: [{field: signal.pressure, operator: exists, value: true}]}
    exceptions:
      - {id: bad-exception, when: {conditions: [{field: signal.pressure, operator: lt, value: 1}]}}
      - {id: fallback, when: {conditions: [{field: name, operator: eq, value: P1}]}}
`

func TestIncoherenceEngine_EvaluationErrors(t *testing.T) {
	ie := NewIncoherenceEngine(parseCatalog(t, fragileRules))
	e := &entities.Entity{ID: "p1", Name: "P1", CanonicalClass: "Pump", Signals: map[string]any{"pressure": "high"}}

	flags, evals, err := ie.Evaluate(e, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad-condition")
	assert.Contains(t, err.Error(), "bad-exception")

	require.Len(t, evals, 2)
	assert.Equal(t, entities.EvaluationError, evals[0].Outcome)
	assert.NotEmpty(t, evals[0].Detail)
	assert.Equal(t, entities.EvaluationSuppressed, evals[1].Outcome)
	assert.Equal(t, "fallback", evals[1].ExceptionID)

	assert.Equal(t, []entities.FlagKind{entities.FlagEvaluationError, entities.FlagEvaluationError}, kinds(flags))
	assert.Equal(t, "good/bad-exception", flags[1].RuleID)
}

func TestAggregator_Aggregate(t *testing.T) {
	agg := NewAggregator(DefaultReviewPolicy())
	e := &entities.Entity{ID: "e1"}
	res := Resolution{Class: "Pump", Outcome: entities.OutcomeMapped, Source: entities.ClassSourceRule}

	flags := []entities.Flag{
		{Kind: entities.IncoherenceKind("mep-disconnected"), Severity: entities.SeverityWarning, Stage: entities.StageIncoherence},
		{Kind: entities.FlagOutOfRange, Severity: entities.SeverityError, Stage: entities.StageProperty, Subject: "a"},
		{Kind: entities.FlagUnitAssumed, Severity: entities.SeverityWarning, Stage: entities.StageNormalize},
		{Kind: entities.FlagOutOfRange, Severity: entities.SeverityError, Stage: entities.StageProperty, Subject: "b"},
		{Kind: entities.FlagInconsistentKeyword, Severity: entities.SeverityWarning, Stage: entities.StageCanonicalize},
	}

	rec := agg.Aggregate(e, res, flags, nil)

	var stages []entities.Stage
	for _, f := range rec.Flags {
		stages = append(stages, f.Stage)
	}
	assert.Equal(t, []entities.Stage{
		entities.StageCanonicalize, entities.StageNormalize, entities.StageProperty,
		entities.StageProperty, entities.StageIncoherence,
	}, stages)
	assert.Equal(t, "a", rec.Flags[2].Subject)
	assert.Equal(t, "b", rec.Flags[3].Subject)

	assert.True(t, rec.RequiresReview)
	assert.Equal(t, []string{"error flags: OUT_OF_RANGE"}, rec.ReviewReasons)
	assert.Equal(t, entities.FlagInconsistentKeyword, flags[4].Kind, "input is not reordered")
}

func TestAggregator_Review(t *testing.T) {
	warn := []entities.Flag{{Kind: entities.FlagInconsistentKeyword, Severity: entities.SeverityWarning, Stage: entities.StageCanonicalize}}

	tests := []struct {
		name    string
		policy  ReviewPolicy
		entity  *entities.Entity
		res     Resolution
		flags   []entities.Flag
		review  bool
		reasons int
	}{
		{name: "clean", policy: DefaultReviewPolicy(), entity: &entities.Entity{ID: "e"}},
		{name: "warnings only", policy: DefaultReviewPolicy(), entity: &entities.Entity{ID: "e"}, flags: warn},
		{
			name:    "warnings reviewed when configured",
			policy:  ReviewPolicy{Severities: []entities.Severity{entities.SeverityError, entities.SeverityWarning}},
			entity:  &entities.Entity{ID: "e"},
			flags:   warn,
			review:  true,
			reasons: 1,
		},
		{
			name:    "low class confidence",
			policy:  DefaultReviewPolicy(),
			entity:  &entities.Entity{ID: "e"},
			res:     Resolution{Confidence: entities.Float(0.5)},
			review:  true,
			reasons: 1,
		},
		{
			name:   "confidence at the threshold",
			policy: DefaultReviewPolicy(),
			entity: &entities.Entity{ID: "e"},
			res:    Resolution{Confidence: entities.Float(0.75)},
		},
		{
			name:   "low property confidence",
			policy: DefaultReviewPolicy(),
			entity: &entities.Entity{ID: "e", Properties: props(
				&entities.Property{Name: "flow_rate", Confidence: entities.Float(0.3)},
				&entities.Property{Name: "Height", Confidence: entities.Float(0.2)},
			)},
			review:  true,
			reasons: 2,
		},
		{
			name:   "threshold disabled",
			policy: ReviewPolicy{Severities: []entities.Severity{entities.SeverityError}},
			entity: &entities.Entity{ID: "e"},
			res:    Resolution{Confidence: entities.Float(0.1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewAggregator(tt.policy).Aggregate(tt.entity, tt.res, tt.flags, nil)
			assert.Equal(t, tt.review, rec.RequiresReview)
			assert.Len(t, rec.ReviewReasons, tt.reasons)
			assert.NotNil(t, rec.Flags)
		})
	}
}
