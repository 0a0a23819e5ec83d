// Package units provides shared constants and validation for angle units
package units

import "math"

// Unit constants
const (
	Degrees  = "deg"
	Radians  = "rad"
	Gradians = "grad"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degrees, Radians, Gradians}

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
	return "deg, rad, grad"
}

// ConvertAngle converts an angle from degrees to the target units.
// The database stores all angles in degrees.
func ConvertAngle(angleDegrees float64, targetUnits string) float64 {
	switch targetUnits {
	case Radians:
		return angleDegrees * math.Pi / 180.0
	case Gradians:
		return angleDegrees * 400.0 / 360.0
	case Degrees:
		return angleDegrees
	default:
		return angleDegrees // default to degrees if unknown unit
	}
}
