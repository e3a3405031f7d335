// Package units provides shared constants, validation and conversion for
// length units. All stored magnitudes are canonical centimetres; other units
// exist for display only.
package units

import (
	"fmt"
	"math"
)

// Unit constants
const (
	CM = "cm"
	IN = "in"
)

// CentimetresPerInch is exact by definition.
const CentimetresPerInch = 2.54

// ValidUnits contains all valid unit values
var ValidUnits = []string{CM, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "cm, in"
}

// ToCm converts inches to centimetres.
func ToCm(inches float64) float64 {
	return inches * CentimetresPerInch
}

// ToInches converts centimetres to inches.
func ToInches(cm float64) float64 {
	return cm / CentimetresPerInch
}

// ConvertLength converts a canonical centimetre value to the target units.
// Unknown units fall back to centimetres.
func ConvertLength(lengthCm float64, targetUnits string) float64 {
	switch targetUnits {
	case IN:
		return ToInches(lengthCm)
	default:
		return lengthCm
	}
}

// ConvertArea converts a canonical square-centimetre value to the target units squared.
func ConvertArea(areaCm2 float64, targetUnits string) float64 {
	switch targetUnits {
	case IN:
		return areaCm2 / (CentimetresPerInch * CentimetresPerInch)
	default:
		return areaCm2
	}
}

// Canonicalize converts a value expressed in sourceUnits into centimetres.
func Canonicalize(value float64, sourceUnits string) (float64, error) {
	switch sourceUnits {
	case CM:
		return value, nil
	case IN:
		return ToCm(value), nil
	default:
		return 0, fmt.Errorf("invalid units %q (valid: %s)", sourceUnits, GetValidUnitsString())
	}
}

// FormatLength renders a canonical centimetre value in the target units with
// two decimal places, e.g. "5.08 cm" or "2.00 in".
func FormatLength(lengthCm float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = CM
	}
	v := ConvertLength(lengthCm, targetUnits)
	if math.Abs(v) < 0.005 {
		v = 0
	}
	return fmt.Sprintf("%.2f %s", v, targetUnits)
}
