package units

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/trustbim/internal/domain/entities"
)

func testNormalizer() *Normalizer {
	return NewNormalizer(Rules{
		Quantities: map[string]Quantity{"flow_rate": VolFlow, "rated_flow": VolFlow},
		Defaults:   map[string]string{"nominal_size": "mm"},
		Patterns: []NamePattern{
			{Pattern: regexp.MustCompile(`(?i)^qto_`), Unit: "mm"},
		},
		Override: func(class, property string) (string, bool) {
			if class == "Pump" && property == "flow_rate" {
				return "m3/h", true
			}
			return "", false
		},
	})
}

func TestNormalizer_Convert(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name     string
		class    string
		property string
		raw      any
		unit     string
		value    float64
		baseUnit string
		note     string
		assumed  bool
	}{
		{name: "mm suffix", property: "Width", raw: "200 mm", value: 0.2, baseUnit: "m", note: "mm_to_m"},
		{name: "mm suffix no space", property: "Width", raw: "200mm", value: 0.2, baseUnit: "m", note: "mm_to_m"},
		{name: "thousands separator", property: "Length", raw: "1,250 mm", value: 1.25, baseUnit: "m", note: "mm_to_m"},
		{name: "diameter notation", property: "Diameter", raw: "Ø150mm", value: 0.15, baseUnit: "m", note: "mm_to_m"},
		{name: "declared unit", property: "Height", raw: 250.0, unit: "cm", value: 2.5, baseUnit: "m", note: "cm_to_m"},
		{name: "parsed unit beats declared", property: "Height", raw: "3 m", unit: "mm", value: 3, baseUnit: "m", note: "ok"},
		{name: "feet", property: "Height", raw: "10 ft", value: 3.048, baseUnit: "m", note: "ft_to_m"},
		{name: "area", property: "NetArea", raw: "2 m²", value: 2, baseUnit: "m²", note: "ok"},
		{name: "area caret", property: "NetArea", raw: "10 ft^2", value: 0.9290304, baseUnit: "m²", note: "ft2_to_m2"},
		{name: "volume litres", property: "NetVolume", raw: "500 L", value: 0.5, baseUnit: "m³", note: "L_to_m3"},
		{name: "flow m3/h", property: "flow_rate", raw: "36 m3/h", value: 10, baseUnit: "L/s", note: "m3h_to_Lps"},
		{name: "class override", class: "Pump", property: "flow_rate", raw: 36.0, value: 10, baseUnit: "L/s", note: "m3h_to_Lps"},
		{name: "override scoped to class", class: "Piping", property: "flow_rate", raw: 36.0, value: 36, baseUnit: "L/s", note: "assume_Lps", assumed: true},
		{name: "property default", property: "nominal_size", raw: 50.0, value: 0.05, baseUnit: "m", note: "mm_to_m"},
		{name: "takeoff pattern", property: "Qto_Length", raw: 1500.0, value: 1.5, baseUnit: "m", note: "mm_to_m"},
		{name: "takeoff area skips length pattern", property: "Qto_NetArea", raw: 12.5, value: 12.5, baseUnit: "m²", note: "assume_m2", assumed: true},
		{name: "takeoff volume skips length pattern", property: "Qto_NetVolume", raw: 3.0, value: 3, baseUnit: "m³", note: "assume_m3", assumed: true},
		{name: "takeoff area with unit", property: "Qto_NetArea", raw: "12.5 m2", value: 12.5, baseUnit: "m²", note: "ok"},
		{name: "flow inside a word", property: "Overflow_Height", raw: "50 mm", value: 0.05, baseUnit: "m", note: "mm_to_m"},
		{name: "fahrenheit", property: "Temperature", raw: "212 °F", value: 100, baseUnit: "°C", note: "F_to_C"},
		{name: "kelvin", property: "setpoint", raw: "300 K", value: 26.85, baseUnit: "°C", note: "K_to_C"},
		{name: "pressure kpa", property: "static_pressure", raw: "2.5 kPa", value: 2500, baseUnit: "Pa", note: "kPa_to_Pa"},
		{name: "power watts", property: "Power", raw: "1500 W", value: 1.5, baseUnit: "kW", note: "W_to_kW"},
		{name: "mass pounds", property: "Weight", raw: "10 lb", value: 4.53592, baseUnit: "kg", note: "lb_to_kg"},
		{name: "radians", property: "Slope", raw: "1 rad", value: 57.295779513, baseUnit: "deg", note: "rad_to_deg"},
		{name: "percent kept as given", property: "Efficiency", raw: 0.85, value: 0.85, baseUnit: "%", note: "noop"},
		{name: "quantity from unit", property: "Clearance", raw: "30 cm", value: 0.3, baseUnit: "m", note: "cm_to_m"},
		{name: "unknown numeric passthrough", property: "Count", raw: 4.0, value: 4, baseUnit: "", note: "noop"},
		{name: "dimensional without unit", property: "Width", raw: 0.3, value: 0.3, baseUnit: "m", note: "assume_m", assumed: true},
		{name: "u-value", property: "ThermalTransmittance", raw: "0.25 W/(m²·K)", value: 0.25, baseUnit: "W/(m²·K)", note: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Convert(tt.class, tt.property, tt.raw, tt.unit)
			require.NoError(t, err)
			require.NotNil(t, res.Value)
			assert.InDelta(t, tt.value, *res.Value, 1e-9)
			assert.Equal(t, tt.baseUnit, res.Unit)
			assert.Equal(t, tt.note, res.Note)
			assert.Equal(t, tt.assumed, res.Assumed)
		})
	}
}

func TestNormalizer_Convert_Text(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name     string
		property string
		raw      any
		text     string
	}{
		{name: "material name", property: "Material", raw: "Concrete C30/37", text: "Concrete C30/37"},
		{name: "unknown unit on unknown property", property: "Reference", raw: "12 pcs", text: "12 pcs"},
		{name: "boolean", property: "IsExternal", raw: true, text: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Convert("", tt.property, tt.raw, "")
			require.NoError(t, err)
			assert.Nil(t, res.Value)
			assert.Equal(t, tt.text, res.Text)
			assert.Equal(t, entities.NoteText, res.Note)
		})
	}
}

func TestNormalizer_Convert_ParseErrors(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name     string
		property string
		raw      any
		unit     string
		reason   string
	}{
		{name: "no numeric literal", property: "Width", raw: "wide", reason: "no numeric literal"},
		{name: "unknown unit", property: "Width", raw: "20 cubits", reason: "unknown unit"},
		{name: "incompatible unit", property: "Width", raw: "20 kg", reason: "property is length"},
		{name: "unknown declared unit", property: "Height", raw: 2.0, unit: "furlong", reason: "unknown unit"},
		{name: "unsupported type", property: "Height", raw: []any{1}, reason: "unsupported value type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Convert("", tt.property, tt.raw, tt.unit)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.property, perr.Property)
			assert.Contains(t, perr.Reason, tt.reason)
			assert.Nil(t, res.Value)
		})
	}
}

func TestNormalizer_Convert_NoValue(t *testing.T) {
	n := testNormalizer()

	for _, raw := range []any{nil, "", "   "} {
		res, err := n.Convert("", "Width", raw, "")
		require.NoError(t, err)
		assert.Nil(t, res.Value)
		assert.Equal(t, entities.NoteNoValue, res.Note)
	}
}

func TestNormalizer_Apply_Idempotent(t *testing.T) {
	n := testNormalizer()

	props := []*entities.Property{
		{Name: "Width", Raw: "200 mm"},
		{Name: "flow_rate", Raw: 36.0},
		{Name: "Temperature", Raw: "68 F"},
		{Name: "Material", Raw: "Steel"},
		{Name: "Height", Value: entities.Float(2.7), Unit: "m"},
		{Name: "Width", Raw: "wide"},
	}

	for _, p := range props {
		t.Run(p.Name, func(t *testing.T) {
			_, err1 := n.Apply("Pump", p)
			first := *p
			if p.Value != nil {
				v := *p.Value
				first.Value = &v
			}

			_, err2 := n.Apply("Pump", p)
			assert.Equal(t, err1 == nil, err2 == nil)
			assert.Equal(t, first, *p)
		})
	}
}

func TestNormalizer_BaseValueIsFixedPoint(t *testing.T) {
	n := testNormalizer()

	for _, q := range []Quantity{Length, Area, Volume, VolFlow, Temperature, Pressure, Power, Mass, Angle} {
		res, err := n.Convert("Pump", "x", 12.5, BaseUnit(q))
		require.NoError(t, err, q)
		assert.Equal(t, 12.5, *res.Value, q)
		assert.Equal(t, BaseUnit(q), res.Unit)
		assert.Equal(t, q, res.Quantity)
	}
}

func TestNormalizer_Apply_ParseError(t *testing.T) {
	n := testNormalizer()
	p := &entities.Property{Name: "Width", Raw: "about a metre"}

	_, err := n.Apply("", p)
	require.Error(t, err)
	assert.Nil(t, p.Value)
	assert.Equal(t, entities.NoteParseError, p.Note)
	assert.Equal(t, "length", p.Quantity)
	assert.False(t, p.Resolved())
}
