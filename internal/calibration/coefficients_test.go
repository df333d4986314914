package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStarOddi_Valid(t *testing.T) {
	c := StarOddi()
	require.NoError(t, c.Validate())
	assert.Equal(t, Cond7Literal, c.Cond7Form)
	assert.Equal(t, 1188.0, c.LowRange)
	assert.Equal(t, 3020.0, c.HighRange)
	assert.Equal(t, 42.914, c.Salinity.StandardRatio)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Coefficients)
		field  string
	}{
		{"unset cond7", func(c *Coefficients) { c.Cond7Form = "" }, "cond7_form"},
		{"unknown cond7", func(c *Coefficients) { c.Cond7Form = "cubic" }, "cond7_form"},
		{"NaN temperature", func(c *Coefficients) { c.Temperature[3] = math.NaN() }, "temperature[3]"},
		{"Inf conductivity", func(c *Coefficients) { c.Conductivity[7] = math.Inf(1) }, "conductivity[7]"},
		{"NaN salinity", func(c *Coefficients) { c.Salinity.PB[2] = math.NaN() }, "salinity.pressure_b[2]"},
		{"degenerate range", func(c *Coefficients) { c.HighRange = c.LowRange }, "high_range"},
		{"zero density", func(c *Coefficients) { c.SeawaterDensity = 0 }, "seawater_density"},
		{"zero gravity", func(c *Coefficients) { c.Gravity = 0 }, "gravity"},
		{"zero standard ratio", func(c *Coefficients) { c.Salinity.StandardRatio = 0 }, "salinity.standard_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := StarOddi()
			tt.mutate(&c)
			err := c.Validate()
			var ce *ConversionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, err.Error(), "invalid calibration coefficients")
		})
	}
}

func TestParseCond7Form(t *testing.T) {
	f, err := ParseCond7Form("literal")
	require.NoError(t, err)
	assert.Equal(t, Cond7Literal, f)

	f, err = ParseCond7Form("power")
	require.NoError(t, err)
	assert.Equal(t, Cond7Power, f)

	_, err = ParseCond7Form("")
	assert.Error(t, err)
	_, err = ParseCond7Form("Power")
	assert.Error(t, err)
}
