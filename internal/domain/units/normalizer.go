package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

// Normalization notes beyond the <from>_to_<base> conversion codes.
const (
	NoteOK     = "ok"
	NoteNoop   = "noop"
	noteAssume = "assume_"
)

// NamePattern assigns a default unit to properties whose name matches.
type NamePattern struct {
	Pattern *regexp.Regexp
	Unit    string
}

// OverrideFunc returns the unit override for a (canonical class, property) pair.
// class is empty when the entity has no canonical class.
type OverrideFunc func(class, property string) (string, bool)

// Rules configures a Normalizer. Map keys are lowercased property names.
type Rules struct {
	Quantities map[string]Quantity
	Defaults   map[string]string
	Patterns   []NamePattern
	Override   OverrideFunc
}

// Normalizer converts property values to base units. It holds no mutable
// state and is safe for concurrent use.
type Normalizer struct {
	rules Rules
}

// NewNormalizer creates a normalizer. Catalog aliases take precedence over the
// built-in DefaultQuantities table.
func NewNormalizer(rules Rules) *Normalizer {
	return &Normalizer{rules: rules}
}

// ParseError reports a value whose numeric literal or unit could not be resolved.
type ParseError struct {
	Property string
	Raw      any
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("property %q value %v: %s", e.Property, e.Raw, e.Reason)
}

// Result is the outcome of normalizing one value.
type Result struct {
	Value    *float64
	Unit     string
	Quantity Quantity
	Text     string
	Note     string
	Assumed  bool // no unit was given or defaulted; the value was taken as the base unit
}

// QuantityOf resolves the quantity of a property name.
func (n *Normalizer) QuantityOf(property string) Quantity {
	key := strings.ToLower(strings.TrimSpace(property))
	if q, ok := n.rules.Quantities[key]; ok {
		return q
	}
	if q, ok := DefaultQuantities[key]; ok {
		return q
	}
	return InferQuantity(property)
}

// Convert normalizes a raw value of a property on an entity of the given class.
// declaredUnit is the unit the record declared next to the value, if any.
//
// Unit precedence: unit parsed from the raw string, the declared unit, the
// (class, property) override, the property default, the first matching name
// pattern. Defaults and name patterns only apply when their unit measures the
// property's quantity; otherwise the value is taken as the base unit. A unit
// token determines the quantity when the name does not.
func (n *Normalizer) Convert(class, property string, raw any, declaredUnit string) (Result, error) {
	q := n.QuantityOf(property)

	var (
		value  float64
		parsed string
	)

	switch v := raw.(type) {
	case nil:
		return Result{Quantity: q, Note: entities.NoteNoValue}, nil
	case bool:
		return Result{Quantity: q, Text: strconv.FormatBool(v), Note: entities.NoteText}, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return Result{Quantity: q, Note: entities.NoteNoValue}, nil
		}
		// Free text is only mined for numbers when the property is a known quantity.
		lit, ok := Extract(s, q == Unknown || q == Unitless)
		if !ok {
			if q.Dimensional() || q == Percent {
				return Result{Quantity: q}, &ParseError{Property: property, Raw: raw, Reason: "no numeric literal"}
			}
			return Result{Quantity: q, Text: s, Note: entities.NoteText}, nil
		}
		if q == Unknown && lit.Unit != "" {
			if _, known := Lookup(lit.Unit); !known {
				return Result{Quantity: q, Text: s, Note: entities.NoteText}, nil
			}
		}
		value, parsed = lit.Value, lit.Unit
	default:
		f, ok := toFloat(raw)
		if !ok {
			return Result{Quantity: q}, &ParseError{Property: property, Raw: raw, Reason: fmt.Sprintf("unsupported value type %T", raw)}
		}
		value = f
	}

	token := n.resolveUnit(class, property, q, parsed, declaredUnit)

	if token == "" {
		if q.Dimensional() {
			return Result{
				Value:    entities.Float(value),
				Unit:     BaseUnit(q),
				Quantity: q,
				Note:     noteAssume + unitCode(q),
				Assumed:  true,
			}, nil
		}
		return Result{Value: entities.Float(value), Unit: BaseUnit(q), Quantity: q, Note: NoteNoop}, nil
	}

	unit, ok := Lookup(token)
	if !ok {
		return Result{Quantity: q}, &ParseError{Property: property, Raw: raw, Reason: fmt.Sprintf("unknown unit %q", token)}
	}
	if q == Unknown {
		q = unit.Quantity
	}
	if unit.Quantity != q {
		return Result{Quantity: q}, &ParseError{
			Property: property,
			Raw:      raw,
			Reason:   fmt.Sprintf("unit %q is %s, property is %s", unit.Symbol, unit.Quantity, q),
		}
	}

	note := NoteOK
	if !unit.IsBase() {
		note = unit.Code + "_to_" + unitCode(q)
	}
	return Result{
		Value:    entities.Float(unit.ToBase(value)),
		Unit:     BaseUnit(q),
		Quantity: q,
		Note:     note,
	}, nil
}

// Apply normalizes p in place. It always recomputes from the raw value, so
// applying it again leaves the property unchanged. Properties that carry only
// a normalized value are converted from that value and its unit.
func (n *Normalizer) Apply(class string, p *entities.Property) (Result, error) {
	raw, unit := p.Raw, p.RawUnit
	if raw == nil && p.Value != nil {
		raw, unit = *p.Value, p.Unit
	}

	res, err := n.Convert(class, p.Name, raw, unit)
	p.Value = res.Value
	p.Unit = res.Unit
	p.Quantity = string(res.Quantity)
	p.Text = res.Text
	p.Note = res.Note
	if err != nil {
		p.Note = entities.NoteParseError
	}
	return res, err
}

func (n *Normalizer) resolveUnit(class, property string, q Quantity, parsed, declared string) string {
	if parsed != "" {
		return parsed
	}
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if n.rules.Override != nil {
		if u, ok := n.rules.Override(class, property); ok {
			return u
		}
	}
	key := strings.ToLower(strings.TrimSpace(property))
	if u, ok := n.rules.Defaults[key]; ok && measures(u, q) {
		return u
	}
	for _, p := range n.rules.Patterns {
		if p.Pattern.MatchString(property) && measures(p.Unit, q) {
			return p.Unit
		}
	}
	return ""
}

// measures reports whether token is a unit of q. Any known unit fits an
// unknown quantity.
func measures(token string, q Quantity) bool {
	u, ok := Lookup(token)
	if !ok {
		return false
	}
	return q == Unknown || u.Quantity == q
}

func unitCode(q Quantity) string {
	if u, ok := Lookup(BaseUnit(q)); ok {
		return u.Code
	}
	return string(q)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case uint32:
		return float64(x), true
	default:
		return 0, false
	}
}
