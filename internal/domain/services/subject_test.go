package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

func TestEntitySubject_Lookup(t *testing.T) {
	e := &entities.Entity{
		ID:             "c1",
		Name:           "Column C1",
		SourceClass:    "IfcColumn",
		CanonicalClass: "Columns (Concrete)",
		Tier:           entities.TierStructural,
		Confidence:     entities.Float(0.9),
		Attributes:     map[string]string{"PredefinedType": "COLUMN"},
		Properties: props(
			normalized("Height", 3.2, "m"),
			&entities.Property{Name: "Material", Text: "C30/37"},
			&entities.Property{Name: "FireRating", Raw: "??", Note: entities.NoteParseError},
		),
		Signals:   map[string]any{"Is_Cantilever": false},
		Relations: map[string][]string{"restsOn": {"s1", "s1", "f9"}},
		Neighbors: []entities.Neighbor{{Relation: "restsOn", ID: "f9", Class: "Foundation_Slab"}},
	}
	index := NeighborIndex{{ID: "s1"}: {Class: "Slabs"}}
	s := newSubject(e, index)

	tests := []struct {
		field  string
		value  any
		exists bool
	}{
		{field: "name", value: "Column C1", exists: true},
		{field: "long_name", value: "", exists: false},
		{field: "canonical_class", value: "Columns (Concrete)", exists: true},
		{field: "tier", value: "structural", exists: true},
		{field: "confidence", value: 0.9, exists: true},
		{field: "attr.predefinedtype", value: "COLUMN", exists: true},
		{field: "attr.ObjectType", exists: false},
		{field: "prop.height", value: 3.2, exists: true},
		{field: "prop.Material", value: "C30/37", exists: true},
		{field: "prop.FireRating", exists: false},
		{field: "signal.is_cantilever", value: false, exists: true},
		{field: "rel.restsOn.count", value: 2.0, exists: true},
		{field: "rel.restsOn.ids", value: []any{"s1", "f9"}, exists: true},
		{field: "rel.restsOn.classes", value: []any{"Slabs", "Foundation_Slab"}, exists: true},
		{field: "rel.hosts.count", value: 0.0, exists: true},
		{field: "rel.hosts.classes", value: []any{}, exists: true},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			v, ok, err := s.Lookup(tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, ok)
			if tt.value != nil {
				assert.Equal(t, tt.value, v)
			}
		})
	}

	_, _, err := s.Lookup("colour")
	assert.Error(t, err)

	v, ok, err := s.Lookup("text")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, v, "c30/37")
}
