package calibration

import (
	"math"

	"github.com/banshee-data/ctdlog/internal/ctd"
)

// Stages records every intermediate value of one conversion.
type Stages struct {
	Tv    float64 // temperature, °C
	Pc    float64 // temperature compensated pressure count
	Pv    float64 // pressure, native units
	Cc0   float64 // low range corrected conductivity count
	Cc1   float64 // high range corrected conductivity count
	Cc    float64 // interpolated conductivity count
	Cv    float64 // conductivity
	R     float64 // conductivity ratio
	RP    float64 // pressure correction factor
	RTemp float64 // rT, temperature correction factor
	RT    float64 // temperature and pressure normalised ratio
}

// Convert turns raw counts into a calibrated sample. It is a pure function
// of its arguments; the returned sample carries no timestamp.
func Convert(raw ctd.RawSample, c *Coefficients) ctd.CalibratedSample {
	s, _ := ConvertDetailed(raw, c)
	return s
}

// ConvertDetailed is Convert that also reports the intermediate stages.
func ConvertDetailed(raw ctd.RawSample, c *Coefficients) (ctd.CalibratedSample, Stages) {
	var st Stages
	T := float64(raw.T)
	P := float64(raw.P)
	C := float64(raw.C)

	// Temperature is the reference for every later stage.
	st.Tv = poly(c.Temperature[:], T)

	st.Pc = tempCorrected(P, c.PressureTempCorrection[:], c.Tpr, st.Tv)
	st.Pv = poly(c.Pressure[:], st.Pc)
	depth := float64(st.Pv*c.Gravity) / c.SeawaterDensity

	st.Cc0 = tempCorrected(C, c.CondTempCorrectionLow[:], c.Tcr, st.Tv)
	st.Cc1 = tempCorrected(C, c.CondTempCorrectionHigh[:], c.Tcr, st.Tv)
	st.Cc = interpolate(st.Cc0, st.Cc1, c.LowRange, c.HighRange, C)
	st.Cv = conductivity(c, st.Cc)

	sal := salinity(&c.Salinity, st.Cv, st.Pv, st.Tv, T, &st)

	return ctd.CalibratedSample{
		Temperature: st.Tv,
		Depth:       depth,
		Salinity:    sal,
	}, st
}

// interpolate blends the low and high range corrections by where the raw
// count sits between the breakpoints. At x == low it yields lo, at x == high
// it yields hi.
func interpolate(lo, hi, low, high, x float64) float64 {
	if x == low {
		return lo
	}
	if x == high {
		return hi
	}
	a := (hi - lo) / (high - low)
	b := lo - float64(a*low)
	return b + float64(a*x)
}

func conductivity(c *Coefficients, cc float64) float64 {
	k := c.Conductivity
	sum := poly(k[:7], cc)
	if c.Cond7Form == Cond7Power {
		return sum + float64(k[7]*math.Pow(cc, 7))
	}
	return sum + float64(float64(k[7]*cc)*7)
}

// salinity evaluates the PSS-78 practical salinity. rawT is the raw
// temperature count: the certificate's weighting term (1 + k*(rawT-15)) is
// defined on the count, not on the calibrated temperature.
func salinity(s *PSS78, cv, pv, tv, rawT float64, st *Stages) float64 {
	p := math.Abs(pv * 10)

	st.R = cv / s.StandardRatio
	num := float64(s.PA[0]*p) + float64(s.PA[1]*math.Pow(p, 2)) + float64(s.PA[2]*math.Pow(p, 3))
	den := 1 + float64(s.PB[0]*tv) + float64(s.PB[1]*math.Pow(tv, 2)) + float64(s.PB[2]*st.R) + float64(float64(s.PB[3]*tv)*st.R)
	st.RP = 1 + num/den
	st.RTemp = poly(s.C[:], tv)
	st.RT = st.R / float64(st.RTemp*st.RP)

	weight := (tv - 15) / (1 + float64(s.K*(rawT-15)))
	return halfPowerSeries(s.A, st.RT) + float64(weight*halfPowerSeries(s.B, st.RT))
}

// Engine converts samples with one validated coefficient set.
type Engine struct {
	coeffs *Coefficients
}

// NewEngine validates c and returns an Engine that shares it read-only.
func NewEngine(c *Coefficients) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Engine{coeffs: c}, nil
}

// Convert converts one raw sample.
func (e *Engine) Convert(raw ctd.RawSample) ctd.CalibratedSample {
	return Convert(raw, e.coeffs)
}

// Coefficients returns the coefficient set the engine was built with.
func (e *Engine) Coefficients() *Coefficients {
	return e.coeffs
}
