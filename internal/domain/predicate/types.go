// Package predicate is a small condition language for rule tables: field/operator/value
// conditions combined with and/or logic and nested groups. Expressions are compiled
// once when the rule catalog loads and evaluated against entities many times.
package predicate

import "fmt"

// Expression is the declarative form of a predicate as it appears in rule files.
type Expression struct {
	Logic      string       `yaml:"logic,omitempty" json:"logic,omitempty"` // "and" (default) or "or"
	Not        bool         `yaml:"not,omitempty" json:"not,omitempty"`
	Conditions []Condition  `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Groups     []Expression `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Condition is a single field/operator/value test.
type Condition struct {
	Field    string `yaml:"field" json:"field"`
	Operator string `yaml:"operator" json:"operator"`
	Value    any    `yaml:"value,omitempty" json:"value,omitempty"`
	Required bool   `yaml:"required,omitempty" json:"required,omitempty"` // missing field is an error instead of false
}

// IsEmpty reports whether the expression has nothing to evaluate.
func (e Expression) IsEmpty() bool {
	if len(e.Conditions) > 0 {
		return false
	}
	for _, g := range e.Groups {
		if !g.IsEmpty() {
			return false
		}
	}
	return true
}

// Subject supplies field values to a predicate.
type Subject interface {
	Lookup(field string) (value any, exists bool, err error)
}

// Comparison operators.
const (
	OpEqual            = "eq"
	OpNotEqual         = "ne"
	OpLessThan         = "lt"
	OpLessThanEqual    = "lte"
	OpGreaterThan      = "gt"
	OpGreaterThanEqual = "gte"
	OpBetween          = "between"
)

// String operators. Matching is case-insensitive.
const (
	OpContains    = "contains"
	OpContainsAny = "contains_any"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpRegexMatch  = "regex"
)

// Membership and array operators.
const (
	OpIn            = "in"
	OpNotIn         = "not_in"
	OpAnyIn         = "any_in"
	OpNoneIn        = "none_in"
	OpArrayContains = "array_contains"
	OpLengthEq      = "length_eq"
	OpLengthGt      = "length_gt"
	OpLengthLt      = "length_lt"
	OpExists        = "exists"
)

// Logic operators.
const (
	LogicAnd = "and"
	LogicOr  = "or"
)

// EvaluationError describes a condition that could not be evaluated.
type EvaluationError struct {
	Field    string
	Operator string
	Message  string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("evaluating field '%s' with operator '%s': %s: %v",
			e.Field, e.Operator, e.Message, e.Err)
	}
	return fmt.Sprintf("evaluating field '%s' with operator '%s': %s",
		e.Field, e.Operator, e.Message)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
