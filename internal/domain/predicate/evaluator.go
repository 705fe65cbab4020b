package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Evaluate evaluates the predicate against a subject. An empty predicate is true.
// Conditions are evaluated before groups, in declaration order, stopping as soon
// as the and/or result is decided.
func (p *Predicate) Evaluate(s Subject) (bool, error) {
	result, err := p.evaluate(s)
	if err != nil {
		return false, err
	}
	if p.not {
		return !result, nil
	}
	return result, nil
}

func (p *Predicate) evaluate(s Subject) (bool, error) {
	if len(p.conds) == 0 && len(p.groups) == 0 {
		return true, nil
	}

	or := p.logic == LogicOr

	for _, c := range p.conds {
		ok, err := c.evaluate(s)
		if err != nil {
			return false, err
		}
		if or && ok {
			return true, nil
		}
		if !or && !ok {
			return false, nil
		}
	}

	for _, g := range p.groups {
		ok, err := g.Evaluate(s)
		if err != nil {
			return false, err
		}
		if or && ok {
			return true, nil
		}
		if !or && !ok {
			return false, nil
		}
	}

	return !or, nil
}

func (c *condition) evaluate(s Subject) (bool, error) {
	value, exists, err := s.Lookup(c.field)
	if err != nil {
		return false, &EvaluationError{
			Field:    c.field,
			Operator: c.op,
			Message:  "failed to get field value",
			Err:      err,
		}
	}

	if c.op == OpExists {
		return exists == c.want, nil
	}

	if !exists || value == nil {
		if c.required {
			return false, &EvaluationError{
				Field:    c.field,
				Operator: c.op,
				Message:  "required field not found",
			}
		}
		// Missing optional field never matches.
		return false, nil
	}

	result, err := c.apply(value)
	if err != nil {
		return false, &EvaluationError{
			Field:    c.field,
			Operator: c.op,
			Message:  "operator execution failed",
			Err:      err,
		}
	}
	return result, nil
}

func (c *condition) apply(value any) (bool, error) {
	switch c.op {
	case OpEqual:
		return matches(value, c.operand), nil
	case OpNotEqual:
		return !matches(value, c.operand), nil

	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		f, err := numeric(value)
		if err != nil {
			return false, err
		}
		switch c.op {
		case OpLessThan:
			return f < c.operand.num, nil
		case OpLessThanEqual:
			return f <= c.operand.num, nil
		case OpGreaterThan:
			return f > c.operand.num, nil
		default:
			return f >= c.operand.num, nil
		}

	case OpBetween:
		f, err := numeric(value)
		if err != nil {
			return false, err
		}
		return f >= c.lo && f <= c.hi, nil

	case OpContains, OpStartsWith, OpEndsWith, OpContainsAny, OpRegexMatch:
		str, ok := value.(string)
		if !ok {
			return false, fmt.Errorf("field value %v is not a string", value)
		}
		lower := strings.ToLower(str)
		switch c.op {
		case OpContains:
			return strings.Contains(lower, c.operand.str), nil
		case OpStartsWith:
			return strings.HasPrefix(lower, c.operand.str), nil
		case OpEndsWith:
			return strings.HasSuffix(lower, c.operand.str), nil
		case OpRegexMatch:
			return c.re.MatchString(str), nil
		default:
			for _, kw := range c.list {
				if strings.Contains(lower, kw.str) {
					return true, nil
				}
			}
			return false, nil
		}

	case OpIn, OpNotIn:
		found := false
		for _, o := range c.list {
			if matches(value, o) {
				found = true
				break
			}
		}
		if c.op == OpNotIn {
			return !found, nil
		}
		return found, nil

	case OpAnyIn, OpNoneIn:
		items, ok := toList(value)
		if !ok {
			return false, fmt.Errorf("field value %v is not a list", value)
		}
		found := false
	outer:
		for _, item := range items {
			for _, o := range c.list {
				if matches(item, o) {
					found = true
					break outer
				}
			}
		}
		if c.op == OpNoneIn {
			return !found, nil
		}
		return found, nil

	case OpArrayContains:
		items, ok := toList(value)
		if !ok {
			return false, fmt.Errorf("field value %v is not a list", value)
		}
		for _, item := range items {
			if matches(item, c.operand) {
				return true, nil
			}
		}
		return false, nil

	case OpLengthEq, OpLengthGt, OpLengthLt:
		n, err := length(value)
		if err != nil {
			return false, err
		}
		switch c.op {
		case OpLengthEq:
			return n == c.length, nil
		case OpLengthGt:
			return n > c.length, nil
		default:
			return n < c.length, nil
		}
	}

	return false, fmt.Errorf("unsupported operator %q", c.op)
}

// matches compares a field value with an operand: booleans by value, numbers
// numerically (numeric strings included), everything else as case-insensitive text.
func matches(value any, o operand) bool {
	if o.isBool {
		if b, ok := value.(bool); ok {
			return b == o.b
		}
		return strings.EqualFold(fmt.Sprintf("%v", value), o.str)
	}
	if o.isNum {
		if f, err := numeric(value); err == nil {
			return f == o.num
		}
		return false
	}
	return strings.ToLower(fmt.Sprintf("%v", value)) == o.str
}

func numeric(value any) (float64, error) {
	if f, ok := toFloat64(value); ok {
		return f, nil
	}
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("field value %v is not numeric", value)
}

func length(value any) (int, error) {
	if items, ok := toList(value); ok {
		return len(items), nil
	}
	if s, ok := value.(string); ok {
		return utf8.RuneCountInString(s), nil
	}
	return 0, fmt.Errorf("field value %v has no length", value)
}
