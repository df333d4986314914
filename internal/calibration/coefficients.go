// Package calibration converts raw CTD counts into calibrated temperature,
// depth and salinity using the polynomial model of an instrument's factory
// calibration certificate.
package calibration

import (
	"fmt"
	"math"
)

// Cond7Form selects how the seventh conductivity term is evaluated.
//
// Deployed readers compute CondC7*Cc*7 rather than CondC7*Cc^7. Which one a
// certificate expects must be stated explicitly; the zero value is rejected.
type Cond7Form string

const (
	// Cond7Literal evaluates CondC7*Cc*7, the form the deployed reader uses.
	Cond7Literal Cond7Form = "literal"
	// Cond7Power evaluates CondC7*Cc^7, the dimensionally consistent series.
	Cond7Power Cond7Form = "power"
)

// ParseCond7Form parses the flag / JSON spelling of a Cond7Form.
func ParseCond7Form(s string) (Cond7Form, error) {
	switch Cond7Form(s) {
	case Cond7Literal, Cond7Power:
		return Cond7Form(s), nil
	}
	return "", fmt.Errorf("unknown cond7 form %q: expected %q or %q", s, Cond7Literal, Cond7Power)
}

// PSS78 holds the Practical Salinity Scale 1978 constants.
type PSS78 struct {
	A [6]float64 `json:"a"` // a0..a5
	B [6]float64 `json:"b"` // b0..b5
	K float64    `json:"k"`

	// Pressure correction numerator (A1..A3) and denominator (B1..B4).
	PA [3]float64 `json:"pressure_a"`
	PB [4]float64 `json:"pressure_b"`

	// rT temperature polynomial c0..c4.
	C [5]float64 `json:"c"`

	// StandardRatio normalises conductivity to R (42.914 mS/cm for S=35, 15 °C, 0 dbar).
	StandardRatio float64 `json:"standard_ratio"`
}

// Coefficients is the constant set of one instrument's calibration
// certificate. Values are loaded once and only ever read afterwards.
type Coefficients struct {
	Instrument  string `json:"instrument,omitempty"`
	Certificate string `json:"certificate,omitempty"`

	// Temperature Tc0..Tc5.
	Temperature [6]float64 `json:"temperature"`

	// Pressure Pc0..Pc5 and its temperature correction PtC1..PtC5 about Tpr.
	Pressure               [6]float64 `json:"pressure"`
	PressureTempCorrection [5]float64 `json:"pressure_temp_correction"`
	Tpr                    float64    `json:"tpr"`

	// Conductivity CondC0..CondC7 and the low (CtcC1..5) and high
	// (Ctc1C1..5) range temperature corrections about Tcr.
	Conductivity           [8]float64 `json:"conductivity"`
	CondTempCorrectionLow  [5]float64 `json:"cond_temp_correction_low"`
	CondTempCorrectionHigh [5]float64 `json:"cond_temp_correction_high"`
	Tcr                    float64    `json:"tcr"`
	Cond7Form              Cond7Form  `json:"cond7_form"`

	// LowRange and HighRange are the raw conductivity counts (L, H) bounding
	// the interpolation between the two correction models.
	LowRange  float64 `json:"low_range"`
	HighRange float64 `json:"high_range"`

	// Depth = Pv * Gravity / SeawaterDensity.
	Gravity         float64 `json:"gravity"`
	SeawaterDensity float64 `json:"seawater_density"`

	Salinity PSS78 `json:"salinity"`
}

// ConversionError reports a coefficient set the engine refuses to use.
type ConversionError struct {
	Field  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("invalid calibration coefficients: %s: %s", e.Field, e.Reason)
}

// StarOddi returns the factory certificate of the reference probe.
func StarOddi() Coefficients {
	return Coefficients{
		Instrument:  "Star-Oddi CTD",
		Certificate: "factory",
		Temperature: [6]float64{
			137.210166872518,
			-0.183332418015418,
			0.00015708789289189,
			-8.22634930412193e-8,
			2.23922024886135e-11,
			-2.55368930401915e-15,
		},
		Pressure: [6]float64{
			-28.098691186332,
			0.0841268734871915,
			1.49909737216056e-6,
			-7.52418875342399e-10,
			1.41966472969949e-13,
			-9.24169810009204e-18,
		},
		PressureTempCorrection: [5]float64{
			-1.17814498824353,
			0.115440105414346,
			-0.00717023213872395,
			0.000176332306255193,
			-1.5366028019708e-6,
		},
		Tpr: 21.2977901891416,
		Conductivity: [8]float64{
			271.189887316909,
			-0.614045003449875,
			0.000732414521026033,
			-5.11435241542634e-7,
			2.16451102332944e-10,
			-5.46467725982402e-14,
			7.56799969612034e-18,
			-4.42192064674217e-22,
		},
		CondTempCorrectionLow: [5]float64{
			-1.44453249281451,
			-0.0848917808771628,
			0.00479042710477045,
			-0.000118002968547826,
			1.11071512305244e-6,
		},
		CondTempCorrectionHigh: [5]float64{
			-3.14472666811779,
			0.0536356144176906,
			-0.00506830666117654,
			0.000153810635302959,
			-1.50470651035196e-6,
		},
		Tcr:             26.83,
		Cond7Form:       Cond7Literal,
		LowRange:        1188,
		HighRange:       3020,
		Gravity:         10.19716,
		SeawaterDensity: 1.026,
		Salinity: PSS78{
			A:             [6]float64{0.008, -0.1692, 25.3851, 14.0941, -7.0261, 2.7081},
			B:             [6]float64{0.0005, -0.0056, -0.0066, -0.0375, 0.0636, -0.0144},
			K:             0.0162,
			PA:            [3]float64{2.070e-5, -6.370e-10, 3.989e-15},
			PB:            [4]float64{3.426e-2, 4.464e-4, 4.215e-1, -3.107e-3},
			C:             [5]float64{6.766097e-1, 2.00564e-2, 1.104259e-4, -6.9698e-7, 1.0031e-9},
			StandardRatio: 42.914,
		},
	}
}

// Validate checks that every constant is finite and that the divisors used
// by Convert are non-zero.
func (c *Coefficients) Validate() error {
	if c == nil {
		return &ConversionError{Field: "coefficients", Reason: "missing"}
	}

	switch c.Cond7Form {
	case Cond7Literal, Cond7Power:
	case "":
		return &ConversionError{Field: "cond7_form", Reason: "must be set to literal or power"}
	default:
		return &ConversionError{Field: "cond7_form", Reason: fmt.Sprintf("unknown form %q", c.Cond7Form)}
	}

	groups := []struct {
		field  string
		values []float64
	}{
		{"temperature", c.Temperature[:]},
		{"pressure", c.Pressure[:]},
		{"pressure_temp_correction", c.PressureTempCorrection[:]},
		{"tpr", []float64{c.Tpr}},
		{"conductivity", c.Conductivity[:]},
		{"cond_temp_correction_low", c.CondTempCorrectionLow[:]},
		{"cond_temp_correction_high", c.CondTempCorrectionHigh[:]},
		{"tcr", []float64{c.Tcr}},
		{"low_range", []float64{c.LowRange}},
		{"high_range", []float64{c.HighRange}},
		{"gravity", []float64{c.Gravity}},
		{"seawater_density", []float64{c.SeawaterDensity}},
		{"salinity.a", c.Salinity.A[:]},
		{"salinity.b", c.Salinity.B[:]},
		{"salinity.k", []float64{c.Salinity.K}},
		{"salinity.pressure_a", c.Salinity.PA[:]},
		{"salinity.pressure_b", c.Salinity.PB[:]},
		{"salinity.c", c.Salinity.C[:]},
		{"salinity.standard_ratio", []float64{c.Salinity.StandardRatio}},
	}
	for _, g := range groups {
		for i, v := range g.values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ConversionError{Field: fmt.Sprintf("%s[%d]", g.field, i), Reason: "not a finite number"}
			}
		}
	}

	if c.HighRange == c.LowRange {
		return &ConversionError{Field: "high_range", Reason: "must differ from low_range"}
	}
	if c.SeawaterDensity == 0 {
		return &ConversionError{Field: "seawater_density", Reason: "must be non-zero"}
	}
	if c.Gravity == 0 {
		return &ConversionError{Field: "gravity", Reason: "must be non-zero"}
	}
	if c.Salinity.StandardRatio == 0 {
		return &ConversionError{Field: "salinity.standard_ratio", Reason: "must be non-zero"}
	}
	return nil
}
