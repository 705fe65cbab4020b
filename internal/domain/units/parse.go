package units

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// reNumber matches a numeric literal, with optional thousands separators and exponent.
	reNumber = regexp.MustCompile(`[-+]?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(?:[eE][-+]?\d+)?|[-+]?\.\d+`)
	// reFullLiteral matches a value that is only a number and an optional unit token.
	reFullLiteral = regexp.MustCompile(`^\s*(` + reNumber.String() + `)\s*(\S*)\s*$`)
	// reDiameter matches diameter notation such as "Ø200mm" or "DN 50".
	reDiameter = regexp.MustCompile(`^\s*(?:ø|Ø|φ|⌀|(?i:dia\.?|dn))\s*(\d+(?:\.\d+)?)\s*(mm|cm|in|"|')?`)
)

// Literal is a numeric value and the unit token that followed it, if any.
type Literal struct {
	Value float64
	Unit  string
	Exact bool // the whole string was the number and its unit
}

// Extract finds a numeric literal in s. A leading diameter marker is accepted.
// When strict is false the literal may be embedded in surrounding text and the
// unit is the word directly after it.
func Extract(s string, strict bool) (Literal, bool) {
	if m := reDiameter.FindStringSubmatch(s); m != nil {
		v, err := parseNumber(m[1])
		if err == nil {
			unit := m[2]
			if unit == "" && strings.Contains(strings.ToLower(s), "dn") {
				unit = "mm"
			}
			return Literal{Value: v, Unit: unit, Exact: true}, true
		}
	}

	if m := reFullLiteral.FindStringSubmatch(s); m != nil {
		v, err := parseNumber(m[1])
		if err == nil {
			return Literal{Value: v, Unit: m[2], Exact: true}, true
		}
	}

	if strict {
		return Literal{}, false
	}

	loc := reNumber.FindStringIndex(s)
	if loc == nil {
		return Literal{}, false
	}
	v, err := parseNumber(s[loc[0]:loc[1]])
	if err != nil {
		return Literal{}, false
	}
	unit := ""
	if rest := strings.Fields(s[loc[1]:]); len(rest) > 0 {
		unit = rest[0]
	}
	return Literal{Value: v, Unit: unit}, true
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}
