// Package units provides shared constants, validation and conversions for
// the display units of calibrated samples. Samples are always computed in
// °C and metres; conversion happens only when they are shown.
package units

import (
	"fmt"
	"strings"
)

// Temperature unit constants
const (
	Celsius    = "c"
	Fahrenheit = "f"
)

// Depth unit constants
const (
	Metres  = "m"
	Feet    = "ft"
	Fathoms = "fathom"
)

// ValidTemperatureUnits contains all valid temperature unit values
var ValidTemperatureUnits = []string{Celsius, Fahrenheit}

// ValidDepthUnits contains all valid depth unit values
var ValidDepthUnits = []string{Metres, Feet, Fathoms}

// IsValidTemperature checks if the given unit is a known temperature unit
func IsValidTemperature(unit string) bool {
	return contains(ValidTemperatureUnits, unit)
}

// IsValidDepth checks if the given unit is a known depth unit
func IsValidDepth(unit string) bool {
	return contains(ValidDepthUnits, unit)
}

// ValidateDisplay returns an error naming the accepted values when either
// unit is unknown.
func ValidateDisplay(temperature, depth string) error {
	if !IsValidTemperature(temperature) {
		return fmt.Errorf("invalid temperature unit %q: expected one of %s", temperature, strings.Join(ValidTemperatureUnits, ", "))
	}
	if !IsValidDepth(depth) {
		return fmt.Errorf("invalid depth unit %q: expected one of %s", depth, strings.Join(ValidDepthUnits, ", "))
	}
	return nil
}

// ConvertTemperature converts a temperature from °C to the target unit
func ConvertTemperature(celsius float64, target string) float64 {
	switch target {
	case Fahrenheit:
		return celsius*1.8 + 32
	default:
		return celsius
	}
}

// ConvertDepth converts a depth from metres to the target unit
func ConvertDepth(metres float64, target string) float64 {
	switch target {
	case Feet:
		return metres / 0.3048
	case Fathoms:
		return metres / 1.8288
	default:
		return metres
	}
}

// Symbol returns the short label printed after a value in the target unit.
func Symbol(unit string) string {
	switch unit {
	case Celsius:
		return "°C"
	case Fahrenheit:
		return "°F"
	case Fathoms:
		return "fathoms"
	default:
		return unit
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
