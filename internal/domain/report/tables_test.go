package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

func sampleRun() ([]*entities.Entity, []entities.ValidationRecord) {
	pump := &entities.Entity{
		ID:             "p1",
		Source:         "model-a",
		SourceClass:    "IfcPump",
		Name:           "Pump P-101",
		CanonicalClass: "Pump",
		Properties: map[string]*entities.Property{
			"flow_rate": {Name: "flow_rate", Raw: 36.0, Value: entities.Float(10), Unit: "L/s", Quantity: "vol_flow", Note: "m3h_to_Lps"},
			"Material":  {Name: "Material", Raw: "Cast iron", Text: "Cast iron", Note: entities.NoteText},
		},
		Relations: map[string][]string{"connectedTo": {"pipe1", "pipe1", "x9"}},
		Neighbors: []entities.Neighbor{{Relation: "connectedTo", Direction: "out", Class: "Pipe", Name: "hint", ID: "x9"}},
		Proposal:  &entities.Proposal{Class: "Pump", ClassCodes: map[string]string{"uniclass": "Pr_65_53"}},
	}
	pipe := &entities.Entity{ID: "pipe1", SourceClass: "IfcPipeSegment", Name: "Pipe 1", CanonicalClass: "Pipe"}

	recs := []entities.ValidationRecord{
		{
			EntityID:       "p1",
			CanonicalClass: "Pump",
			Outcome:        entities.OutcomeMapped,
			ClassSource:    entities.ClassSourceRule,
			Flags: []entities.Flag{
				{EntityID: "p1", Kind: entities.FlagOutOfRange, Severity: entities.SeverityError, Stage: entities.StageProperty, RuleID: "range.class.Pump.flow_rate", Observed: entities.Float(0.05), Limit: entities.Float(0.1)},
			},
			RequiresReview: true,
			ReviewReasons:  []string{"error flag OUT_OF_RANGE"},
			Evaluations: []entities.RuleEvaluation{
				{EntityID: "p1", RuleID: "mep-disconnected", Outcome: entities.EvaluationSuppressed, ExceptionID: "standalone-device"},
			},
		},
		{EntityID: "pipe1", CanonicalClass: "Pipe", Outcome: entities.OutcomeMapped, ClassSource: entities.ClassSourceRule},
	}
	return []*entities.Entity{pump, pipe}, recs
}

func TestAssetID(t *testing.T) {
	a := AssetID("model-a", "p1")
	assert.Equal(t, a, AssetID("model-a", "p1"))
	assert.NotEqual(t, a, AssetID("model-b", "p1"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestBuild(t *testing.T) {
	ents, recs := sampleRun()
	run := NewRun([]string{"in.jsonl"}, "tolerant", "abc")

	tables, err := Build(run, ents, recs, BuildOptions{})
	require.NoError(t, err)

	require.Len(t, tables.Assets, 2)
	assert.Equal(t, AssetID("model-a", "p1"), tables.Assets[0].AssetID)
	assert.Equal(t, DefaultSource, tables.Assets[1].Source)
	assert.Equal(t, `{"uniclass":"Pr_65_53"}`, tables.Assets[0].ClassCodes)
	assert.Equal(t, 1, tables.Assets[0].FlagCount)

	require.Len(t, tables.Props, 2)
	assert.Equal(t, "Material", tables.Props[0].Name)
	assert.Equal(t, "flow_rate", tables.Props[1].Name)
	assert.Equal(t, "36", tables.Props[1].ValueRaw)
	assert.Equal(t, "source", tables.Props[1].Source)

	require.Len(t, tables.Relations, 2)
	assert.Equal(t, "pipe1", tables.Relations[0].RelatedID)
	assert.Equal(t, "Pipe", tables.Relations[0].RelatedClass)
	assert.Equal(t, "Pipe 1", tables.Relations[0].RelatedName)
	assert.Equal(t, "out", tables.Relations[1].Direction)
	assert.Equal(t, "hint", tables.Relations[1].RelatedName)

	require.Len(t, tables.Flags, 1)
	assert.Equal(t, "OUT_OF_RANGE", tables.Flags[0].Kind)

	require.Len(t, tables.Review, 1)
	assert.Equal(t, 1, tables.Review[0].Errors)
	assert.Equal(t, "error flag OUT_OF_RANGE", tables.Review[0].Reasons)

	assert.Nil(t, tables.Audit)
	assert.Len(t, tables.Tabular(), 5)
}

func TestBuild_Audit(t *testing.T) {
	ents, recs := sampleRun()

	tables, err := Build(NewRun(nil, "strict", ""), ents, recs, BuildOptions{Audit: true})
	require.NoError(t, err)
	require.Len(t, tables.Audit, 1)
	assert.Equal(t, "suppressed", tables.Audit[0].Outcome)
	assert.Equal(t, "standalone-device", tables.Audit[0].ExceptionID)

	tabular := tables.Tabular()
	require.Len(t, tabular, 6)
	for _, tbl := range tabular {
		for _, row := range tbl.Rows {
			assert.Len(t, row, len(tbl.Columns), tbl.Name)
		}
	}
}

func TestBuild_MisalignedInput(t *testing.T) {
	ents, recs := sampleRun()
	_, err := Build(Run{}, ents, recs[:1], BuildOptions{})
	assert.Error(t, err)
}

func TestTabular_NullableFloats(t *testing.T) {
	ents, recs := sampleRun()
	tables, err := Build(Run{}, ents, recs, BuildOptions{})
	require.NoError(t, err)

	props := tables.Tabular()[1]
	assert.Equal(t, TableProps, props.Name)
	assert.Nil(t, props.Rows[0][5])
	assert.Equal(t, 10.0, props.Rows[1][5])
}

func TestSummarize(t *testing.T) {
	_, recs := sampleRun()
	recs = append(recs, entities.ValidationRecord{
		EntityID: "u1",
		Outcome:  entities.OutcomeUnmapped,
		Flags: []entities.Flag{
			{Kind: entities.FlagUnmappedClass, Severity: entities.SeverityError, Stage: entities.StageCanonicalize},
		},
		RequiresReview: true,
	})

	r := Summarize(Run{ID: "r1", Mode: "tolerant"}, recs, 1500*time.Millisecond)
	assert.Equal(t, 3, r.Entities)
	assert.Equal(t, 2, r.Mapped)
	assert.Equal(t, 1, r.Unmapped)
	assert.Equal(t, 2, r.ReviewQueue)
	assert.Equal(t, 1, r.Suppressed)
	assert.Equal(t, 1, r.FlagsByKind["OUT_OF_RANGE"])
	assert.Equal(t, 2, r.FlagsBySeverity["error"])
	assert.Equal(t, 1, r.FlagsByStage["canonicalize"])
	assert.Equal(t, int64(1500), r.DurationMS)

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf))
	assert.Contains(t, buf.String(), "3 (2 mapped, 1 unmapped, 0 ambiguous)")

	buf.Reset()
	require.NoError(t, r.WriteJSON(&buf))
	assert.Contains(t, buf.String(), `"run_id": "r1"`)
}
