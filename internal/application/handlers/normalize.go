package handlers

import (
	"strconv"
	"strings"

	"github.com/ersonp/trustbim/internal/domain/catalog"
	"github.com/ersonp/trustbim/internal/domain/units"
)

// NormalizeResult is a single converted value with its range check.
type NormalizeResult struct {
	Property string       `json:"property"`
	Class    string       `json:"class,omitempty"`
	Result   units.Result `json:"result"`
	Range    *RangeView   `json:"range,omitempty"`
	Violated bool         `json:"violated"`
}

// Normalize converts one raw value the way the pipeline would for a property
// of the given class. A raw value that reads as a plain number is passed as one.
func Normalize(cat *catalog.Catalog, class, property, raw, unit string) (*NormalizeResult, error) {
	var value any = raw
	if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
		value = f
	}

	res, err := cat.Normalizer().Convert(class, property, value, unit)
	if err != nil {
		return nil, err
	}

	out := &NormalizeResult{Property: property, Class: class, Result: res}
	if r, scope, ok := cat.Range(class, property); ok {
		out.Range = &RangeView{Property: r.Property, Min: r.Min, Max: r.Max, Scope: string(scope)}
		if res.Value != nil {
			_, out.Violated = r.Check(*res.Value)
		}
	}
	return out, nil
}
