package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

func TestCanonicalizer_Resolve(t *testing.T) {
	cat := defaultCatalog(t)
	c := NewCanonicalizer(cat, AssistFallback)

	tests := []struct {
		name       string
		entity     *entities.Entity
		class      string
		tier       entities.Tier
		outcome    entities.Outcome
		source     entities.ClassSource
		overrideID string
		flags      []entities.FlagKind
	}{
		{
			name:       "keyword override",
			entity:     &entities.Entity{ID: "c1", SourceClass: "IfcColumn", Name: "HEA200 column"},
			class:      "Column (Steel)",
			tier:       entities.TierStructural,
			outcome:    entities.OutcomeMapped,
			source:     entities.ClassSourceRule,
			overrideID: "column-steel",
		},
		{
			name:       "first declared override wins",
			entity:     &entities.Entity{ID: "b1", SourceClass: "IfcBeam", Name: "Transfer steel beam"},
			class:      "Transfer Beam",
			tier:       entities.TierStructural,
			outcome:    entities.OutcomeMapped,
			source:     entities.ClassSourceRule,
			overrideID: "beam-transfer",
		},
		{
			name: "override condition on attribute",
			entity: &entities.Entity{
				ID: "s1", SourceClass: "IfcSlab", Name: "Slab 01",
				Attributes: map[string]string{"PredefinedType": "BASESLAB"},
			},
			class:      "Foundation_Slab",
			tier:       entities.TierStructural,
			outcome:    entities.OutcomeMapped,
			source:     entities.ClassSourceRule,
			overrideID: "slab-foundation",
		},
		{
			name:    "class map",
			entity:  &entities.Entity{ID: "p1", SourceClass: "IfcPump", Name: "Pump P-101"},
			class:   "Pump",
			tier:    entities.TierMEP,
			outcome: entities.OutcomeMapped,
			source:  entities.ClassSourceRule,
		},
		{
			name:    "ifc prefix fallback",
			entity:  &entities.Entity{ID: "k1", SourceClass: "IfcSink", Name: "Kitchen sink"},
			class:   "Sink",
			tier:    entities.TierMEP,
			outcome: entities.OutcomeMapped,
			source:  entities.ClassSourceRule,
		},
		{
			name:    "unmapped",
			entity:  &entities.Entity{ID: "x1", SourceClass: "IfcBuildingElementProxy", Name: "Thing"},
			outcome: entities.OutcomeUnmapped,
			flags:   []entities.FlagKind{entities.FlagUnmappedClass},
		},
		{
			name: "assist proposal as fallback",
			entity: &entities.Entity{
				ID: "x2", SourceClass: "IfcBuildingElementProxy", Name: "FH-3",
				Proposal: &entities.Proposal{Class: "Hydrant", Confidence: entities.Float(0.9)},
			},
			class:   "Hydrant",
			tier:    entities.TierMEP,
			outcome: entities.OutcomeMapped,
			source:  entities.ClassSourceAssist,
		},
		{
			name: "proposal outside the allowed classes is ignored",
			entity: &entities.Entity{
				ID: "x3", SourceClass: "IfcBuildingElementProxy", Name: "Thing",
				Proposal: &entities.Proposal{Class: "Spaceship"},
			},
			outcome: entities.OutcomeUnmapped,
			flags:   []entities.FlagKind{entities.FlagUnmappedClass},
		},
		{
			name: "class map beats fallback proposal",
			entity: &entities.Entity{
				ID: "p2", SourceClass: "IfcPump", Name: "Pump P-102",
				Proposal: &entities.Proposal{Class: "Valve"},
			},
			class:   "Pump",
			tier:    entities.TierMEP,
			outcome: entities.OutcomeMapped,
			source:  entities.ClassSourceRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Resolve(tt.entity)
			require.NoError(t, err)

			assert.Equal(t, tt.class, res.Class)
			assert.Equal(t, tt.tier, res.Tier)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.source, res.Source)
			assert.Equal(t, tt.overrideID, res.OverrideID)
			if tt.flags == nil {
				assert.Empty(t, res.Flags)
			} else {
				assert.Equal(t, tt.flags, kinds(res.Flags))
			}
			if res.Class != "" {
				assert.True(t, cat.Allowed(res.Class))
			}
		})
	}
}

func TestCanonicalizer_KeywordsMatchWholeWords(t *testing.T) {
	c := NewCanonicalizer(defaultCatalog(t), AssistFallback)

	tests := []struct {
		sourceClass string
		name        string
		class       string
	}{
		{sourceClass: "IfcColumn", name: "Concrete column at stair head", class: "Columns (Concrete)"},
		{sourceClass: "IfcColumn", name: "C30 heavy column", class: "Columns (Concrete)"},
		{sourceClass: "IfcBeam", name: "Pipe rack beam RC", class: "Beam (Concrete)"},
		{sourceClass: "IfcColumn", name: "Column SHS 100x100", class: "Column (Steel)"},
		{sourceClass: "IfcBeam", name: "IPE300 beam", class: "Beam (Steel)"},
		{sourceClass: "IfcColumn", name: "Steel columns", class: "Column (Steel)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Resolve(&entities.Entity{ID: "e1", SourceClass: tt.sourceClass, Name: tt.name})
			require.NoError(t, err)
			assert.Equal(t, tt.class, res.Class)
		})
	}
}

func TestCanonicalizer_ClassAlwaysAllowedOrUnmapped(t *testing.T) {
	cat := defaultCatalog(t)
	sources := []string{
		"IfcColumn", "IfcBeam", "IfcSlab", "IfcWall", "IfcPump", "IfcFlowTerminal",
		"IfcAlarm", "IfcLamp", "IfcSpace", "ifcpipesegment", "", "Pump", "IfcStairs",
	}
	proposals := []*entities.Proposal{nil, {Class: "Pipe"}, {Class: "Not a class"}}

	for _, precedence := range []AssistPrecedence{AssistFallback, AssistPreferred, AssistIgnore} {
		c := NewCanonicalizer(cat, precedence)
		for _, source := range sources {
			for _, p := range proposals {
				e := &entities.Entity{ID: "e", SourceClass: source, Name: "steel transfer hose reel", Proposal: p}
				res, err := c.Resolve(e)
				require.NoError(t, err)
				if res.Class == "" {
					assert.Equal(t, entities.OutcomeUnmapped, res.Outcome)
					assert.True(t, hasKind(res.Flags, entities.FlagUnmappedClass))
				} else {
					assert.True(t, cat.Allowed(res.Class), "%s -> %s", source, res.Class)
				}
			}
		}
	}
}

func hasKind(flags []entities.Flag, kind entities.FlagKind) bool {
	return len(flagsOf(flags, kind)) > 0
}

func TestCanonicalizer_AssistPrecedence(t *testing.T) {
	cat := defaultCatalog(t)
	pump := func() *entities.Entity {
		return &entities.Entity{
			ID: "p1", SourceClass: "IfcPump", Name: "Pump / valve assembly",
			Proposal: &entities.Proposal{Class: "Valve", Confidence: entities.Float(0.6)},
		}
	}

	res, err := NewCanonicalizer(cat, AssistPreferred).Resolve(pump())
	require.NoError(t, err)
	assert.Equal(t, "Valve", res.Class)
	assert.Equal(t, entities.ClassSourceAssist, res.Source)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 0.6, *res.Confidence)

	res, err = NewCanonicalizer(cat, AssistFallback).Resolve(pump())
	require.NoError(t, err)
	assert.Equal(t, "Pump", res.Class)

	proxy := &entities.Entity{ID: "x", SourceClass: "IfcBuildingElementProxy", Proposal: &entities.Proposal{Class: "Valve"}}
	res, err = NewCanonicalizer(cat, AssistIgnore).Resolve(proxy)
	require.NoError(t, err)
	assert.Equal(t, entities.OutcomeUnmapped, res.Outcome)
}

func TestCanonicalizer_OverridesBeatPreferredProposal(t *testing.T) {
	c := NewCanonicalizer(defaultCatalog(t), AssistPreferred)
	e := &entities.Entity{
		ID: "c1", SourceClass: "IfcColumn", Name: "SHS column",
		Proposal: &entities.Proposal{Class: "Columns (Concrete)"},
	}

	res, err := c.Resolve(e)
	require.NoError(t, err)
	assert.Equal(t, "Column (Steel)", res.Class)
	assert.Equal(t, entities.ClassSourceRule, res.Source)
}

func TestCanonicalizer_KeywordConsistency(t *testing.T) {
	c := NewCanonicalizer(defaultCatalog(t), AssistFallback)

	t.Run("must contain any", func(t *testing.T) {
		res, err := c.Resolve(&entities.Entity{ID: "p1", SourceClass: "IfcPump", Name: "P-101"})
		require.NoError(t, err)
		require.Len(t, res.Flags, 1)
		f := res.Flags[0]
		assert.Equal(t, entities.FlagInconsistentKeyword, f.Kind)
		assert.Equal(t, entities.SeverityWarning, f.Severity)
		assert.Equal(t, "keyword.Pump.any", f.RuleID)
		assert.Equal(t, entities.StageCanonicalize, f.Stage)
	})

	t.Run("must contain none reads property text", func(t *testing.T) {
		e := &entities.Entity{
			ID: "c1", SourceClass: "IfcColumn", Name: "Column C1",
			Properties: props(prop("Material", "Steel S355")),
		}
		res, err := c.Resolve(e)
		require.NoError(t, err)
		assert.Equal(t, "Columns (Concrete)", res.Class)
		require.Len(t, res.Flags, 1)
		assert.Equal(t, "keyword.Columns (Concrete).none", res.Flags[0].RuleID)
		assert.Equal(t, "steel", res.Flags[0].Subject)
	})

	t.Run("each forbidden keyword flags once", func(t *testing.T) {
		e := &entities.Entity{ID: "w1", SourceClass: "IfcWall", Name: "Wall", LongName: "exterior facade panel"}
		res, err := c.Resolve(e)
		require.NoError(t, err)
		assert.Equal(t, "Internal walls", res.Class)
		assert.Len(t, flagsOf(res.Flags, entities.FlagInconsistentKeyword), 2)
	})

	t.Run("applies to assisted classes", func(t *testing.T) {
		e := &entities.Entity{
			ID: "l1", SourceClass: "IfcBuildingElementProxy", Name: "Luminaire L4",
			Proposal: &entities.Proposal{Class: "Emergency lighting"},
		}
		res, err := c.Resolve(e)
		require.NoError(t, err)
		assert.Equal(t, "Emergency lighting", res.Class)
		assert.True(t, hasKind(res.Flags, entities.FlagInconsistentKeyword))
	})
}

const overrideCatalog = `
classes:
  allowed: [Pump, Pipe, Valve]
  map: {IfcPump: Pump}
keyword_overrides:
  - {id: by-signal, when: {conditions: [{field: signal.stages, operator: gt, value: 1}]}, target: Pipe}
  - {id: valve-name, keywords: [valve], target: Valve}
  - {id: pump-name, keywords: [pump], target: Pump}
`

func TestCanonicalizer_OverrideEvaluationError(t *testing.T) {
	c := NewCanonicalizer(parseCatalog(t, overrideCatalog), AssistFallback)
	e := &entities.Entity{
		ID: "p1", SourceClass: "IfcPump", Name: "Booster",
		Signals: map[string]any{"stages": "many"},
	}

	res, err := c.Resolve(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "by-signal")

	assert.Equal(t, "Pump", res.Class)
	require.Len(t, res.Flags, 1)
	assert.Equal(t, entities.FlagEvaluationError, res.Flags[0].Kind)
	assert.Equal(t, "override.by-signal", res.Flags[0].RuleID)
}

func TestCanonicalizer_AmbiguousOverrides(t *testing.T) {
	e := func() *entities.Entity {
		return &entities.Entity{ID: "v1", SourceClass: "IfcPump", Name: "pump valve"}
	}

	quiet := NewCanonicalizer(parseCatalog(t, overrideCatalog), AssistFallback)
	res, err := quiet.Resolve(e())
	require.NoError(t, err)
	assert.Equal(t, "Valve", res.Class)
	assert.Equal(t, entities.OutcomeMapped, res.Outcome)
	assert.Empty(t, res.Flags)

	loud := NewCanonicalizer(parseCatalog(t, overrideCatalog+"report_ambiguous_overrides: true\n"), AssistFallback)
	res, err = loud.Resolve(e())
	require.NoError(t, err)
	assert.Equal(t, "Valve", res.Class)
	assert.Equal(t, "valve-name", res.OverrideID)
	assert.Equal(t, entities.OutcomeAmbiguous, res.Outcome)
	require.Len(t, res.Flags, 1)
	assert.Equal(t, entities.FlagAmbiguousMapping, res.Flags[0].Kind)
	assert.Equal(t, entities.SeverityInfo, res.Flags[0].Severity)
	assert.Contains(t, res.Flags[0].Message, "pump-name")
}

func TestCanonicalizer_Canonicalize(t *testing.T) {
	c := NewCanonicalizer(defaultCatalog(t), AssistFallback)
	e := &entities.Entity{ID: "p1", SourceClass: "IfcPump", Name: "pump", Tier: entities.TierOther}

	_, err := c.Canonicalize(e)
	require.NoError(t, err)
	assert.Equal(t, "Pump", e.CanonicalClass)
	assert.Equal(t, entities.TierMEP, e.Tier)
	assert.Equal(t, entities.ClassSourceRule, e.ClassSource)
}

func TestParseAssistPrecedence(t *testing.T) {
	p, err := ParseAssistPrecedence("")
	require.NoError(t, err)
	assert.Equal(t, AssistFallback, p)

	p, err = ParseAssistPrecedence("Preferred")
	require.NoError(t, err)
	assert.Equal(t, AssistPreferred, p)

	_, err = ParseAssistPrecedence("always")
	assert.Error(t, err)
}
