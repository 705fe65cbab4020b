package predicate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Predicate is a compiled Expression. It is immutable and safe for concurrent use.
type Predicate struct {
	logic  string
	not    bool
	conds  []*condition
	groups []*Predicate
}

type condition struct {
	field    string
	ref      FieldRef
	op       string
	required bool

	operand operand
	list    []operand
	lo, hi  float64
	length  int
	want    bool
	re      *regexp.Regexp
}

// operand is a comparison value normalized at compile time.
type operand struct {
	str    string // lowercased
	num    float64
	isNum  bool
	b      bool
	isBool bool
}

// Compile validates an expression and prepares it for evaluation.
// Operator names, field names, value shapes and regular expressions are all
// checked here so evaluation never sees a malformed rule.
func Compile(expr Expression) (*Predicate, error) {
	logic := strings.ToLower(strings.TrimSpace(expr.Logic))
	switch logic {
	case "", LogicAnd:
		logic = LogicAnd
	case LogicOr:
	default:
		return nil, fmt.Errorf("unsupported logic operator %q", expr.Logic)
	}

	p := &Predicate{logic: logic, not: expr.Not}

	for i, c := range expr.Conditions {
		cc, err := compileCondition(c)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", i+1, err)
		}
		p.conds = append(p.conds, cc)
	}

	for i, g := range expr.Groups {
		gp, err := Compile(g)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", i+1, err)
		}
		p.groups = append(p.groups, gp)
	}

	return p, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and fixed tables.
func MustCompile(expr Expression) *Predicate {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Fields returns every field name the predicate reads, in declaration order.
func (p *Predicate) Fields() []string {
	var out []string
	for _, c := range p.conds {
		out = append(out, c.field)
	}
	for _, g := range p.groups {
		out = append(out, g.Fields()...)
	}
	return out
}

func compileCondition(c Condition) (*condition, error) {
	ref, err := ParseField(strings.TrimSpace(c.Field))
	if err != nil {
		return nil, err
	}

	cc := &condition{
		field:    strings.TrimSpace(c.Field),
		ref:      ref,
		op:       strings.ToLower(strings.TrimSpace(c.Operator)),
		required: c.Required,
	}

	switch cc.op {
	case OpEqual, OpNotEqual, OpArrayContains:
		cc.operand, err = newOperand(c.Value)
		if err != nil {
			return nil, opError(cc, err)
		}

	case OpLessThan, OpLessThanEqual, OpGreaterThan, OpGreaterThanEqual:
		f, ok := toFloat64(c.Value)
		if !ok {
			return nil, opError(cc, errors.New("value must be numeric"))
		}
		cc.operand = operand{num: f, isNum: true}

	case OpBetween:
		items, ok := toList(c.Value)
		if !ok || len(items) != 2 {
			return nil, opError(cc, errors.New("value must be a [min, max] pair"))
		}
		lo, okLo := toFloat64(items[0])
		hi, okHi := toFloat64(items[1])
		if !okLo || !okHi {
			return nil, opError(cc, errors.New("between bounds must be numeric"))
		}
		if lo > hi {
			return nil, opError(cc, fmt.Errorf("between min %v is greater than max %v", lo, hi))
		}
		cc.lo, cc.hi = lo, hi

	case OpContains, OpStartsWith, OpEndsWith:
		s, ok := c.Value.(string)
		if !ok || s == "" {
			return nil, opError(cc, errors.New("value must be a non-empty string"))
		}
		cc.operand = operand{str: strings.ToLower(s)}

	case OpRegexMatch:
		s, ok := c.Value.(string)
		if !ok || s == "" {
			return nil, opError(cc, errors.New("value must be a regular expression"))
		}
		cc.re, err = regexp.Compile(s)
		if err != nil {
			return nil, opError(cc, err)
		}

	case OpContainsAny, OpIn, OpNotIn, OpAnyIn, OpNoneIn:
		items, ok := toList(c.Value)
		if !ok || len(items) == 0 {
			return nil, opError(cc, errors.New("value must be a non-empty list"))
		}
		for _, item := range items {
			o, err := newOperand(item)
			if err != nil {
				return nil, opError(cc, err)
			}
			if cc.op == OpContainsAny && o.str == "" {
				return nil, opError(cc, errors.New("keywords must be non-empty"))
			}
			cc.list = append(cc.list, o)
		}

	case OpLengthEq, OpLengthGt, OpLengthLt:
		f, ok := toFloat64(c.Value)
		if !ok || f < 0 || f != float64(int(f)) {
			return nil, opError(cc, errors.New("value must be a non-negative integer"))
		}
		cc.length = int(f)

	case OpExists:
		switch v := c.Value.(type) {
		case nil:
			cc.want = true
		case bool:
			cc.want = v
		default:
			return nil, opError(cc, errors.New("value must be true or false"))
		}

	default:
		return nil, &EvaluationError{Field: cc.field, Operator: c.Operator, Message: "unsupported operator"}
	}

	return cc, nil
}

func opError(c *condition, err error) error {
	return &EvaluationError{Field: c.field, Operator: c.op, Message: "invalid value", Err: err}
}

func newOperand(v any) (operand, error) {
	switch x := v.(type) {
	case nil:
		return operand{}, errors.New("value is required")
	case bool:
		return operand{b: x, isBool: true, str: strconv.FormatBool(x)}, nil
	case string:
		return operand{str: strings.ToLower(x)}, nil
	}
	if f, ok := toFloat64(v); ok {
		return operand{num: f, isNum: true, str: strconv.FormatFloat(f, 'g', -1, 64)}, nil
	}
	return operand{}, fmt.Errorf("unsupported value type %T", v)
}

func toList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}
