package predicate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapSubject serves fields from a map.
type mapSubject map[string]any

func (m mapSubject) Lookup(field string) (any, bool, error) {
	v, ok := m[field]
	return v, ok, nil
}

type failingSubject struct{}

func (failingSubject) Lookup(string) (any, bool, error) {
	return nil, false, errors.New("boom")
}

func TestEvaluate_Operators(t *testing.T) {
	subject := mapSubject{
		"name":                    "Basic Wall:Exterior 200mm",
		"tier":                    "structural",
		"signal.is_cantilever":    true,
		"signal.unsupported_ends": 1.0,
		"prop.Width":              0.2,
		"prop.Material":           "Concrete",
		"rel.restsOn.count":       2,
		"rel.restsOn.classes":     []string{"Slabs", "Transfer Beam"},
		"attr.PredefinedType":     "SHEAR",
	}

	tests := []struct {
		name     string
		cond     Condition
		expected bool
	}{
		{name: "eq number", cond: Condition{Field: "signal.unsupported_ends", Operator: "eq", Value: 1}, expected: true},
		{name: "eq bool", cond: Condition{Field: "signal.is_cantilever", Operator: "eq", Value: true}, expected: true},
		{name: "eq string case-insensitive", cond: Condition{Field: "prop.Material", Operator: "eq", Value: "concrete"}, expected: true},
		{name: "ne string", cond: Condition{Field: "tier", Operator: "ne", Value: "mep"}, expected: true},
		{name: "lt", cond: Condition{Field: "prop.Width", Operator: "lt", Value: 0.3}, expected: true},
		{name: "lte equal", cond: Condition{Field: "prop.Width", Operator: "lte", Value: 0.2}, expected: true},
		{name: "gt false", cond: Condition{Field: "prop.Width", Operator: "gt", Value: 0.2}, expected: false},
		{name: "gte int field", cond: Condition{Field: "rel.restsOn.count", Operator: "gte", Value: 2}, expected: true},
		{name: "between inclusive", cond: Condition{Field: "prop.Width", Operator: "between", Value: []any{0.2, 0.5}}, expected: true},
		{name: "contains case-insensitive", cond: Condition{Field: "name", Operator: "contains", Value: "EXTERIOR"}, expected: true},
		{name: "starts_with", cond: Condition{Field: "name", Operator: "starts_with", Value: "basic"}, expected: true},
		{name: "ends_with", cond: Condition{Field: "name", Operator: "ends_with", Value: "200mm"}, expected: true},
		{name: "contains_any", cond: Condition{Field: "name", Operator: "contains_any", Value: []any{"curtain", "exterior"}}, expected: true},
		{name: "contains_any miss", cond: Condition{Field: "name", Operator: "contains_any", Value: []any{"door"}}, expected: false},
		{name: "regex", cond: Condition{Field: "name", Operator: "regex", Value: `\d+mm$`}, expected: true},
		{name: "in", cond: Condition{Field: "attr.PredefinedType", Operator: "in", Value: []any{"shear", "partitioning"}}, expected: true},
		{name: "not_in", cond: Condition{Field: "attr.PredefinedType", Operator: "not_in", Value: []any{"shear"}}, expected: false},
		{name: "any_in", cond: Condition{Field: "rel.restsOn.classes", Operator: "any_in", Value: []any{"Transfer Beam"}}, expected: true},
		{name: "none_in", cond: Condition{Field: "rel.restsOn.classes", Operator: "none_in", Value: []any{"Roof"}}, expected: true},
		{name: "array_contains", cond: Condition{Field: "rel.restsOn.classes", Operator: "array_contains", Value: "slabs"}, expected: true},
		{name: "length_eq", cond: Condition{Field: "rel.restsOn.classes", Operator: "length_eq", Value: 2}, expected: true},
		{name: "length_gt", cond: Condition{Field: "rel.restsOn.classes", Operator: "length_gt", Value: 2}, expected: false},
		{name: "length_lt string", cond: Condition{Field: "tier", Operator: "length_lt", Value: 20}, expected: true},
		{name: "exists present", cond: Condition{Field: "prop.Width", Operator: "exists"}, expected: true},
		{name: "exists false on missing", cond: Condition{Field: "prop.Height", Operator: "exists", Value: false}, expected: true},
		{name: "missing optional field is false", cond: Condition{Field: "prop.Height", Operator: "gt", Value: 0}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(Expression{Conditions: []Condition{tt.cond}})
			require.NoError(t, err)

			got, err := p.Evaluate(subject)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_Logic(t *testing.T) {
	subject := mapSubject{"signal.a": true, "signal.b": false}
	a := Condition{Field: "signal.a", Operator: "eq", Value: true}
	b := Condition{Field: "signal.b", Operator: "eq", Value: true}

	tests := []struct {
		name     string
		expr     Expression
		expected bool
	}{
		{name: "empty is true", expr: Expression{}, expected: true},
		{name: "default logic is and", expr: Expression{Conditions: []Condition{a, b}}, expected: false},
		{name: "or", expr: Expression{Logic: "or", Conditions: []Condition{a, b}}, expected: true},
		{name: "not", expr: Expression{Not: true, Conditions: []Condition{b}}, expected: true},
		{
			name: "nested group",
			expr: Expression{
				Conditions: []Condition{a},
				Groups:     []Expression{{Logic: "or", Conditions: []Condition{b, a}}},
			},
			expected: true,
		},
		{
			name: "nested negated group",
			expr: Expression{
				Conditions: []Condition{a},
				Groups:     []Expression{{Not: true, Conditions: []Condition{a}}},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := p.Evaluate(subject)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	t.Run("required field missing", func(t *testing.T) {
		p := MustCompile(Expression{Conditions: []Condition{{Field: "prop.Height", Operator: "gt", Value: 0, Required: true}}})
		_, err := p.Evaluate(mapSubject{})

		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, "prop.Height", evalErr.Field)
		assert.Contains(t, err.Error(), "required field not found")
	})

	t.Run("non-numeric comparison", func(t *testing.T) {
		p := MustCompile(Expression{Conditions: []Condition{{Field: "prop.Material", Operator: "gt", Value: 1}}})
		_, err := p.Evaluate(mapSubject{"prop.Material": "Concrete"})

		var evalErr *EvaluationError
		require.ErrorAs(t, err, &evalErr)
		assert.Equal(t, "gt", evalErr.Operator)
	})

	t.Run("lookup failure is wrapped", func(t *testing.T) {
		p := MustCompile(Expression{Conditions: []Condition{{Field: "name", Operator: "eq", Value: "x"}}})
		_, err := p.Evaluate(failingSubject{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("short circuit skips failing condition", func(t *testing.T) {
		p := MustCompile(Expression{Conditions: []Condition{
			{Field: "signal.a", Operator: "eq", Value: false},
			{Field: "prop.Material", Operator: "gt", Value: 1},
		}})
		got, err := p.Evaluate(mapSubject{"signal.a": true, "prop.Material": "Concrete"})
		require.NoError(t, err)
		assert.False(t, got)
	})
}

func TestCompile_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		expr   Expression
		errMsg string
	}{
		{
			name:   "unknown operator",
			expr:   Expression{Conditions: []Condition{{Field: "name", Operator: "like", Value: "x"}}},
			errMsg: "unsupported operator",
		},
		{
			name:   "unknown logic",
			expr:   Expression{Logic: "xor"},
			errMsg: "unsupported logic operator",
		},
		{
			name:   "unknown field",
			expr:   Expression{Conditions: []Condition{{Field: "colour", Operator: "eq", Value: "x"}}},
			errMsg: "unknown field",
		},
		{
			name:   "bad relation aspect",
			expr:   Expression{Conditions: []Condition{{Field: "rel.restsOn.size", Operator: "gt", Value: 1}}},
			errMsg: "unknown aspect",
		},
		{
			name:   "non-numeric comparison value",
			expr:   Expression{Conditions: []Condition{{Field: "prop.Width", Operator: "lt", Value: "wide"}}},
			errMsg: "value must be numeric",
		},
		{
			name:   "between inverted",
			expr:   Expression{Conditions: []Condition{{Field: "prop.Width", Operator: "between", Value: []any{5, 1}}}},
			errMsg: "greater than max",
		},
		{
			name:   "bad regex",
			expr:   Expression{Conditions: []Condition{{Field: "name", Operator: "regex", Value: "("}}},
			errMsg: "invalid value",
		},
		{
			name:   "empty list",
			expr:   Expression{Conditions: []Condition{{Field: "name", Operator: "in", Value: []any{}}}},
			errMsg: "non-empty list",
		},
		{
			name:   "error in nested group",
			expr:   Expression{Groups: []Expression{{Conditions: []Condition{{Field: "name", Operator: "nope"}}}}},
			errMsg: "group 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestPredicate_Fields(t *testing.T) {
	p := MustCompile(Expression{
		Conditions: []Condition{{Field: "name", Operator: "contains", Value: "beam"}},
		Groups:     []Expression{{Conditions: []Condition{{Field: "signal.is_cantilever", Operator: "eq", Value: true}}}},
	})
	assert.Equal(t, []string{"name", "signal.is_cantilever"}, p.Fields())
}

func TestExpression_IsEmpty(t *testing.T) {
	assert.True(t, Expression{}.IsEmpty())
	assert.True(t, Expression{Groups: []Expression{{}}}.IsEmpty())
	assert.False(t, Expression{Conditions: []Condition{{Field: "name", Operator: "exists"}}}.IsEmpty())
}

func TestParseField(t *testing.T) {
	tests := []struct {
		field    string
		expected FieldRef
		wantErr  bool
	}{
		{field: "name", expected: FieldRef{Key: "name"}},
		{field: "prop.NetVolume", expected: FieldRef{Namespace: "prop", Key: "NetVolume"}},
		{field: "attr.PredefinedType", expected: FieldRef{Namespace: "attr", Key: "PredefinedType"}},
		{field: "signal.is_cantilever", expected: FieldRef{Namespace: "signal", Key: "is_cantilever"}},
		{field: "rel.restsOn.count", expected: FieldRef{Namespace: "rel", Key: "restsOn", Aspect: "count"}},
		{field: "rel.restsOn", wantErr: true},
		{field: "prop.", wantErr: true},
		{field: "geometry.volume", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			ref, err := ParseField(tt.field)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
		})
	}
}
