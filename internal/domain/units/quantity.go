// Package units converts raw property values to one base unit per physical quantity.
package units

import (
	"strings"
	"unicode"
)

// Quantity is a physical quantity kind.
type Quantity string

// Quantity kinds.
const (
	Length               Quantity = "length"
	Area                 Quantity = "area"
	Volume               Quantity = "volume"
	VolFlow              Quantity = "vol_flow"
	Mass                 Quantity = "mass"
	Temperature          Quantity = "temperature"
	Pressure             Quantity = "pressure"
	Power                Quantity = "power"
	Velocity             Quantity = "velocity"
	Voltage              Quantity = "voltage"
	Current              Quantity = "current"
	Frequency            Quantity = "frequency"
	Angle                Quantity = "angle"
	Percent              Quantity = "percent"
	ThermalTransmittance Quantity = "thermal_transmittance"
	ThermalResistance    Quantity = "thermal_resistance"
	Unitless             Quantity = "unitless"
	Unknown              Quantity = "unknown"
)

var baseUnits = map[Quantity]string{
	Length:               "m",
	Area:                 "m²",
	Volume:               "m³",
	VolFlow:              "L/s",
	Mass:                 "kg",
	Temperature:          "°C",
	Pressure:             "Pa",
	Power:                "kW",
	Velocity:             "m/s",
	Voltage:              "V",
	Current:              "A",
	Frequency:            "Hz",
	Angle:                "deg",
	Percent:              "%",
	ThermalTransmittance: "W/(m²·K)",
	ThermalResistance:    "m²·K/W",
}

// BaseUnit returns the base unit symbol of q, or "" for unitless and unknown quantities.
func BaseUnit(q Quantity) string {
	return baseUnits[q]
}

// ParseQuantity validates a quantity name.
func ParseQuantity(s string) (Quantity, bool) {
	q := Quantity(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := baseUnits[q]; ok {
		return q, true
	}
	if q == Unitless || q == Unknown {
		return q, true
	}
	return "", false
}

// Dimensional reports whether values of q carry a unit that scales them.
func (q Quantity) Dimensional() bool {
	switch q {
	case Unknown, Unitless, Percent, "":
		return false
	default:
		return true
	}
}

// DefaultQuantities maps lowercased property names to quantities.
var DefaultQuantities = map[string]Quantity{
	"length": Length, "width": Length, "height": Length, "depth": Length, "thickness": Length,
	"diameter": Length, "dia": Length, "radius": Length, "perimeter": Length, "span": Length,
	"offset": Length, "baseoffset": Length, "topoffset": Length, "sillheight": Length,
	"headheight": Length, "invertelevation": Length, "overallheight": Length, "overallwidth": Length,
	"unconnectedheight": Length, "riserheight": Length, "treadlength": Length, "framedepth": Length,
	"framethickness": Length, "nominaldiameter": Length, "outsidediameter": Length, "insidediameter": Length,

	"area": Area, "netarea": Area, "grossarea": Area, "netsidearea": Area, "grosssidearea": Area,
	"crosssectionarea": Area, "netsurfacearea": Area, "grosssurfacearea": Area, "outersurfacearea": Area,
	"totalarea": Area, "projectedarea": Area, "grossfootprintarea": Area, "grossceilingarea": Area,

	"volume": Volume, "netvolume": Volume, "grossvolume": Volume,

	"flow": VolFlow, "flow_rate": VolFlow, "flowrate": VolFlow, "q": VolFlow, "airflow": VolFlow, "cfm": VolFlow,
	"velocity": Velocity,

	"power": Power, "rated_power": Power, "kw": Power, "power_kw": Power, "btu/h": Power,
	"heat_gain": Power, "heat_loss": Power,
	"voltage": Voltage, "current": Current, "frequency": Frequency, "power_factor": Unitless,

	"temperature": Temperature, "temp": Temperature, "setpoint": Temperature,
	"pressure": Pressure, "press": Pressure, "static_pressure": Pressure,

	"weight": Mass, "mass": Mass, "total_weight": Mass,

	"percent": Percent, "percentage": Percent, "efficiency": Percent,
	"angle": Angle, "pitchangle": Angle, "slope": Angle, "roll": Angle,

	"thermaltransmittance": ThermalTransmittance, "u-value": ThermalTransmittance, "u_value": ThermalTransmittance,
	"heat transfer coefficient (u)": ThermalTransmittance,
	"thermalresistance": ThermalResistance, "thermal resistance": ThermalResistance,
	"thermal resistance (r)": ThermalResistance, "r-value": ThermalResistance, "r_value": ThermalResistance,
}

// unitSuffixes mark a length when they are the last token of a name, e.g. Offset_mm.
var unitSuffixes = map[string]bool{"mm": true, "cm": true, "m": true, "ft": true}

// quantityTokens maps whole name tokens to quantities.
var quantityTokens = map[string]Quantity{
	"length": Length, "width": Length, "height": Length, "depth": Length, "thickness": Length,
	"diameter": Length, "radius": Length, "perimeter": Length, "span": Length, "elevation": Length,
	"area": Area,
	"volume": Volume,
	"pressure": Pressure,
	"temperature": Temperature, "temp": Temperature,
	"flow": VolFlow, "flowrate": VolFlow, "airflow": VolFlow, "cfm": VolFlow,
	"velocity": Velocity,
	"power": Power, "btu": Power,
	"voltage": Voltage,
	"current": Current,
	"frequency": Frequency,
	"percent": Percent, "percentage": Percent, "pct": Percent,
}

// InferQuantity guesses a quantity from the tokens of a property name when it
// is not in any alias table. Tokens are split at separators and camel-case
// boundaries; the last token that names a quantity wins, so FlowTemperature
// is a temperature and Overflow_Height a length.
func InferQuantity(name string) Quantity {
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return Unknown
	}
	if len(tokens) > 1 && unitSuffixes[tokens[len(tokens)-1]] {
		return Length
	}
	for i := len(tokens) - 1; i >= 0; i-- {
		if q, ok := quantityTokens[tokens[i]]; ok {
			return q
		}
	}
	return Unknown
}

// nameTokens splits a property name into lowercased words.
func nameTokens(name string) []string {
	var (
		tokens []string
		word   []rune
	)
	flush := func() {
		if len(word) > 0 {
			tokens = append(tokens, strings.ToLower(string(word)))
			word = word[:0]
		}
	}

	runes := []rune(strings.TrimSpace(name))
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(word) > 0 {
			prev := word[len(word)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		word = append(word, r)
	}
	flush()
	return tokens
}
