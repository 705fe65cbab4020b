package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_RelatedIDs(t *testing.T) {
	tests := []struct {
		name     string
		ids      []string
		expected []string
	}{
		{
			name:     "no relations",
			ids:      nil,
			expected: nil,
		},
		{
			name:     "duplicates removed keeping first order",
			ids:      []string{"b", "a", "b", "c", "a"},
			expected: []string{"b", "a", "c"},
		},
		{
			name:     "empty ids ignored",
			ids:      []string{"", "a", ""},
			expected: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Entity{Relations: map[string][]string{"restsOn": tt.ids}}
			assert.Equal(t, tt.expected, e.RelatedIDs("restsOn"))
		})
	}
}

func TestEntity_Property(t *testing.T) {
	e := &Entity{Properties: map[string]*Property{
		"NetVolume": {Name: "NetVolume", Raw: 1.5},
	}}

	p, ok := e.Property("NetVolume")
	require.True(t, ok)
	assert.Equal(t, "NetVolume", p.Name)

	p, ok = e.Property("netvolume")
	require.True(t, ok)
	assert.Equal(t, "NetVolume", p.Name)

	_, ok = e.Property("NetArea")
	assert.False(t, ok)
}

func TestEntity_SearchText(t *testing.T) {
	e := &Entity{
		Name:       "Basic Wall:Exterior",
		Attributes: map[string]string{"ObjectType": "Curtain", "Description": "Facade"},
		Properties: map[string]*Property{
			"Material": {Name: "Material", Raw: "Concrete"},
			"Width":    {Name: "Width", Raw: 200.0},
		},
	}

	text := e.SearchText()
	assert.Contains(t, text, "basic wall:exterior")
	assert.Contains(t, text, "facade")
	assert.Contains(t, text, "curtain")
	assert.Contains(t, text, "material concrete")
	assert.Contains(t, text, "width")
	assert.NotContains(t, text, "200")
}

func TestEntity_NeighborClass(t *testing.T) {
	e := &Entity{Neighbors: []Neighbor{
		{Relation: "restsOn", ID: "n1", Class: "Transfer Beam"},
		{Relation: "restsOn", ID: "n2"},
	}}

	class, ok := e.NeighborClass("n1")
	assert.True(t, ok)
	assert.Equal(t, "Transfer Beam", class)

	_, ok = e.NeighborClass("n2")
	assert.False(t, ok)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected Severity
		wantErr  bool
	}{
		{input: "error", expected: SeverityError},
		{input: " Warning ", expected: SeverityWarning},
		{input: "INFO", expected: SeverityInfo},
		{input: "fatal", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Greater(t, SeverityError.Rank(), SeverityWarning.Rank())
	assert.Greater(t, SeverityWarning.Rank(), SeverityInfo.Rank())
	assert.Equal(t, 0, Severity("other").Rank())
}

func TestIncoherenceKind(t *testing.T) {
	kind := IncoherenceKind("beam-floating")
	assert.Equal(t, FlagKind("INCOHERENCE:beam-floating"), kind)
	assert.True(t, kind.IsIncoherence())
	assert.False(t, FlagOutOfRange.IsIncoherence())
}

func TestParseFlagKind(t *testing.T) {
	tests := []struct {
		input    string
		expected FlagKind
		wantErr  bool
	}{
		{input: "PARSE_ERROR", expected: FlagParseError},
		{input: " unmapped_class ", expected: FlagUnmappedClass},
		{input: "INCOHERENCE:beam-floating", expected: IncoherenceKind("beam-floating")},
		{input: "INCOHERENCE:", wantErr: true},
		{input: "BROKEN", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFlagKind(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEntity_Key(t *testing.T) {
	a := &Entity{ID: "11", Source: "modelA"}
	b := &Entity{ID: "11", Source: "modelB"}
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, Key{Source: "modelA", ID: "11"}, a.Key())
}

func TestProperty_Resolved(t *testing.T) {
	tests := []struct {
		name     string
		prop     *Property
		expected bool
	}{
		{name: "nil property", prop: nil, expected: false},
		{name: "normalized value", prop: &Property{Value: Float(0)}, expected: true},
		{name: "text value", prop: &Property{Text: "Concrete"}, expected: true},
		{name: "parse failure", prop: &Property{Raw: "abc mm", Note: NoteParseError}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.prop.Resolved())
		})
	}
}

func TestValidationRecord_CountFlags(t *testing.T) {
	r := &ValidationRecord{Flags: []Flag{
		{Kind: FlagOutOfRange},
		{Kind: FlagMissingRequired},
		{Kind: FlagOutOfRange},
	}}

	assert.Equal(t, 2, r.CountFlags(FlagOutOfRange))
	assert.True(t, r.HasFlag(FlagMissingRequired))
	assert.False(t, r.HasFlag(FlagUnmappedClass))
}
