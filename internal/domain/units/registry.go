package units

import "strings"

// Unit converts values of one quantity to its base unit: base = v*Scale + Offset.
type Unit struct {
	Symbol   string
	Code     string // ascii name used in normalization notes, e.g. mm_to_m
	Quantity Quantity
	Scale    float64
	Offset   float64
}

// ToBase converts v to the base unit of the unit's quantity.
func (u Unit) ToBase(v float64) float64 {
	return v*u.Scale + u.Offset
}

// IsBase reports whether the unit is the base unit of its quantity.
func (u Unit) IsBase() bool {
	return u.Symbol == BaseUnit(u.Quantity)
}

type unitDef struct {
	unit    Unit
	aliases []string
}

var definitions = []unitDef{
	{Unit{"m", "m", Length, 1, 0}, []string{"m", "meter", "metre", "meters", "metres"}},
	{Unit{"mm", "mm", Length, 0.001, 0}, []string{"mm", "millimeter", "millimetre", "millimeters", "millimetres"}},
	{Unit{"cm", "cm", Length, 0.01, 0}, []string{"cm", "centimeter", "centimetre"}},
	{Unit{"in", "in", Length, 0.0254, 0}, []string{"in", "inch", "inches", `"`}},
	{Unit{"ft", "ft", Length, 0.3048, 0}, []string{"ft", "feet", "foot", "'"}},

	{Unit{"m²", "m2", Area, 1, 0}, []string{"m2", "sqm"}},
	{Unit{"mm²", "mm2", Area, 1e-6, 0}, []string{"mm2"}},
	{Unit{"cm²", "cm2", Area, 1e-4, 0}, []string{"cm2"}},
	{Unit{"ft²", "ft2", Area, 0.09290304, 0}, []string{"ft2", "sqft", "sf"}},

	{Unit{"m³", "m3", Volume, 1, 0}, []string{"m3", "cbm"}},
	{Unit{"L", "L", Volume, 0.001, 0}, []string{"l", "liter", "litre", "liters", "litres"}},
	{Unit{"mL", "mL", Volume, 1e-6, 0}, []string{"ml"}},
	{Unit{"ft³", "ft3", Volume, 0.0283168466, 0}, []string{"ft3", "cf", "cuft"}},
	{Unit{"gal", "gal", Volume, 0.00378541178, 0}, []string{"gal", "gallon", "gallons"}},

	{Unit{"L/s", "Lps", VolFlow, 1, 0}, []string{"l/s", "lps", "l/sec"}},
	{Unit{"L/min", "Lpm", VolFlow, 1.0 / 60.0, 0}, []string{"l/min", "lpm"}},
	{Unit{"m³/h", "m3h", VolFlow, 1000.0 / 3600.0, 0}, []string{"m3/h", "m3/hr", "cmh"}},
	{Unit{"m³/s", "m3s", VolFlow, 1000, 0}, []string{"m3/s"}},
	{Unit{"CFM", "cfm", VolFlow, 0.47194745, 0}, []string{"cfm"}},
	{Unit{"GPM", "gpm", VolFlow, 0.0630902, 0}, []string{"gpm"}},

	{Unit{"kg", "kg", Mass, 1, 0}, []string{"kg", "kilogram", "kilograms"}},
	{Unit{"g", "g", Mass, 0.001, 0}, []string{"g", "gram", "grams"}},
	{Unit{"t", "t", Mass, 1000, 0}, []string{"t", "ton", "tons", "tonne", "tonnes"}},
	{Unit{"lb", "lb", Mass, 0.453592, 0}, []string{"lb", "lbs", "pound", "pounds"}},

	{Unit{"°C", "C", Temperature, 1, 0}, []string{"c", "degc", "celsius"}},
	{Unit{"°F", "F", Temperature, 5.0 / 9.0, -32.0 * 5.0 / 9.0}, []string{"f", "degf", "fahrenheit"}},
	{Unit{"K", "K", Temperature, 1, -273.15}, []string{"k", "kelvin"}},

	{Unit{"Pa", "Pa", Pressure, 1, 0}, []string{"pa"}},
	{Unit{"kPa", "kPa", Pressure, 1e3, 0}, []string{"kpa"}},
	{Unit{"MPa", "MPa", Pressure, 1e6, 0}, []string{"mpa"}},
	{Unit{"bar", "bar", Pressure, 1e5, 0}, []string{"bar"}},
	{Unit{"psi", "psi", Pressure, 6894.75729, 0}, []string{"psi"}},

	{Unit{"kW", "kW", Power, 1, 0}, []string{"kw"}},
	{Unit{"W", "W", Power, 0.001, 0}, []string{"w"}},
	{Unit{"hp", "hp", Power, 0.745699872, 0}, []string{"hp"}},
	{Unit{"BTU/h", "BTUh", Power, 0.00029307107, 0}, []string{"btu/h", "btuh", "btu/hr"}},

	{Unit{"m/s", "mps", Velocity, 1, 0}, []string{"m/s", "mps"}},
	{Unit{"ft/min", "fpm", Velocity, 0.00508, 0}, []string{"ft/min", "fpm"}},

	{Unit{"V", "V", Voltage, 1, 0}, []string{"v", "volt", "volts"}},
	{Unit{"kV", "kV", Voltage, 1000, 0}, []string{"kv"}},
	{Unit{"A", "A", Current, 1, 0}, []string{"a", "amp", "amps", "ampere"}},
	{Unit{"mA", "mA", Current, 0.001, 0}, []string{"ma"}},
	{Unit{"Hz", "Hz", Frequency, 1, 0}, []string{"hz"}},
	{Unit{"kHz", "kHz", Frequency, 1000, 0}, []string{"khz"}},
	{Unit{"RPM", "rpm", Frequency, 1.0 / 60.0, 0}, []string{"rpm"}},

	{Unit{"deg", "deg", Angle, 1, 0}, []string{"deg", "degree", "degrees", "°"}},
	{Unit{"rad", "rad", Angle, 57.295779513, 0}, []string{"rad", "radian", "radians"}},

	{Unit{"%", "pct", Percent, 1, 0}, []string{"%", "pct", "percent"}},

	{Unit{"W/(m²·K)", "W_per_m2K", ThermalTransmittance, 1, 0}, []string{"w/m2k"}},
	{Unit{"BTU/(h·ft²·°F)", "btu_per_hft2F", ThermalTransmittance, 5.678263337, 0}, []string{"btu/hft2f"}},
	{Unit{"m²·K/W", "m2K_per_W", ThermalResistance, 1, 0}, []string{"m2k/w"}},
	{Unit{"ft²·h·°F/BTU", "ft2hF_per_btu", ThermalResistance, 0.1761101838, 0}, []string{"ft2hf/btu", "ft2fh/btu"}},
}

var aliases = buildAliases()

func buildAliases() map[string]Unit {
	m := make(map[string]Unit)
	for _, d := range definitions {
		m[canonToken(d.unit.Symbol)] = d.unit
		for _, a := range d.aliases {
			m[canonToken(a)] = d.unit
		}
	}
	return m
}

// Lookup resolves a unit token such as "mm", "m³/h" or "°F".
func Lookup(token string) (Unit, bool) {
	key := canonToken(token)
	if key == "" {
		return Unit{}, false
	}
	u, ok := aliases[key]
	return u, ok
}

var tokenReplacer = strings.NewReplacer(
	"²", "2", "³", "3", "^", "", "·", "", "*", "", "(", "", ")", "", " ", "", "°", "",
)

// canonToken lowercases a unit token and strips superscripts and separators so
// that "m^2", "m²" and "M2" resolve alike.
func canonToken(token string) string {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "°" {
		return "deg"
	}
	if t == "'" || t == `"` {
		return t
	}
	return tokenReplacer.Replace(t)
}
