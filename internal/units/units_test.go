package units

import (
	"math"
	"testing"
)

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		celsius  float64
		unit     string
		expected float64
	}{
		{"freezing to f", 0, Fahrenheit, 32},
		{"boiling to f", 100, Fahrenheit, 212},
		{"seawater to f", 12.5, Fahrenheit, 54.5},
		{"c is identity", 12.5, Celsius, 12.5},
		{"unknown units default to c", 12.5, "kelvin", 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertTemperature(tt.celsius, tt.unit)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertTemperature(%f, %s) = %f, want %f", tt.celsius, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestConvertDepth(t *testing.T) {
	tests := []struct {
		name     string
		metres   float64
		unit     string
		expected float64
	}{
		{"one foot", 0.3048, Feet, 1},
		{"ten metres to feet", 10, Feet, 32.8084},
		{"one fathom", 1.8288, Fathoms, 1},
		{"metres identity", 42, Metres, 42},
		{"unknown defaults to metres", 42, "league", 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertDepth(tt.metres, tt.unit)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("ConvertDepth(%f, %s) = %f, want %f", tt.metres, tt.unit, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	for _, u := range ValidTemperatureUnits {
		if !IsValidTemperature(u) {
			t.Errorf("IsValidTemperature(%q) = false", u)
		}
	}
	for _, u := range ValidDepthUnits {
		if !IsValidDepth(u) {
			t.Errorf("IsValidDepth(%q) = false", u)
		}
	}
	if IsValidTemperature("m") {
		t.Error("m is not a temperature unit")
	}
	if IsValidDepth("") {
		t.Error("empty string is not a depth unit")
	}
}

func TestValidateDisplay(t *testing.T) {
	if err := ValidateDisplay(Celsius, Metres); err != nil {
		t.Fatalf("ValidateDisplay: %v", err)
	}
	if err := ValidateDisplay("k", Metres); err == nil {
		t.Error("expected error for temperature unit k")
	}
	if err := ValidateDisplay(Fahrenheit, "yd"); err == nil {
		t.Error("expected error for depth unit yd")
	}
}

func TestSymbol(t *testing.T) {
	cases := map[string]string{Celsius: "°C", Fahrenheit: "°F", Metres: "m", Feet: "ft", Fathoms: "fathoms"}
	for unit, want := range cases {
		if got := Symbol(unit); got != want {
			t.Errorf("Symbol(%q) = %q, want %q", unit, got, want)
		}
	}
}
