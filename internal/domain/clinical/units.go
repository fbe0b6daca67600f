package clinical

import (
	"math"
	"strconv"
	"strings"
)

// WeightUnit is the unit a weight was entered in.
type WeightUnit string

const (
	Kilograms WeightUnit = "kg"
	Pounds    WeightUnit = "lb"
)

// PoundsToKilograms is the conversion factor applied to pound inputs.
const PoundsToKilograms = 0.453592

// ParseWeightUnit accepts the spellings the forms send. An empty string
// means kilograms.
func ParseWeightUnit(s string) (WeightUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "kg", "kgs", "kilogram", "kilograms":
		return Kilograms, nil
	case "lb", "lbs", "pound", "pounds":
		return Pounds, nil
	default:
		return "", Invalid("weightUnit", "must be kg or lb")
	}
}

// Toggle switches between kilograms and pounds.
func (u WeightUnit) Toggle() WeightUnit {
	if u == Pounds {
		return Kilograms
	}
	return Pounds
}

// ToKilograms converts value in unit u to kilograms.
func ToKilograms(value float64, u WeightUnit) float64 {
	if u == Pounds {
		return value * PoundsToKilograms
	}
	return value
}

// ParseWeight parses a raw weight string and normalizes it to kilograms.
// An empty string yields nil (unknown).
func ParseWeight(raw string, unit string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := ParseWeightUnit(unit)
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, Invalid("weight", "must be a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, Invalid("weight", "must be a number")
	}
	if v <= 0 {
		return nil, Invalid("weight", "must be greater than zero")
	}
	kg := ToKilograms(v, u)
	return &kg, nil
}

// ParseAge parses a raw age in whole years. An empty string yields nil.
func ParseAge(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, Invalid("age", "must be a whole number of years")
	}
	if v < 0 {
		return nil, Invalid("age", "must not be negative")
	}
	return &v, nil
}
