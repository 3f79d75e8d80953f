package model

import "strings"

// Unit is the physical basis of an emission factor.
type Unit string

const (
	UnitPerKg    Unit = "per_kg"
	UnitPerKm    Unit = "per_km"
	UnitPerKWh   Unit = "per_kWh"
	UnitPerLiter Unit = "per_liter"
	UnitUnknown  Unit = "unknown"

	// UnitPerGram is only produced by harmonizing a per_kg factor for a
	// gram-scale request.
	UnitPerGram Unit = "per_gram"
)

// ParseUnit maps free-text unit descriptions ("kgCO2_per_kg", "kg", "per km",
// "kWh", "litre") onto a Unit. Unrecognized text yields UnitUnknown; per_gram
// is never produced here.
func ParseUnit(raw string) Unit {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return UnitUnknown
	}
	s = denominator(s)

	switch s {
	case "kg", "kilogram", "kilograms", "kilo":
		return UnitPerKg
	case "km", "kilometer", "kilometers", "kilometre", "kilometres":
		return UnitPerKm
	case "kwh", "kilowatt hour", "kilowatt-hour":
		return UnitPerKWh
	case "l", "liter", "liters", "litre", "litres":
		return UnitPerLiter
	}

	switch {
	case strings.Contains(s, "kwh"):
		return UnitPerKWh
	case strings.Contains(s, "km"):
		return UnitPerKm
	case strings.Contains(s, "liter"), strings.Contains(s, "litre"):
		return UnitPerLiter
	case strings.Contains(s, "kg"):
		return UnitPerKg
	default:
		return UnitUnknown
	}
}

// denominator returns the text after the last "/" or, failing that, after
// the last "per". Text with neither is returned whole.
func denominator(s string) string {
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	} else if idx := strings.LastIndex(s, "per"); idx >= 0 {
		s = s[idx+len("per"):]
	}
	return strings.Trim(s, " _-/.")
}

// IsGramScale reports whether a caller-requested quantity unit is expressed in grams.
func IsGramScale(requested string) bool {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "g", "gram", "grams":
		return true
	default:
		return false
	}
}
