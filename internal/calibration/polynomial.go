package calibration

import "math"

// The helpers below sum terms strictly left to right, lowest power first, so
// a given build returns the same bits for the same counts on every run.
// Products are wrapped in float64() so the compiler cannot fuse them into
// FMA instructions on arm64. Integer powers go through math.Pow, which is not
// correctly rounded; results agree with readers using C pow to about 1e-13
// relative, not bit for bit.

// poly evaluates c[0] + c[1]*x + c[2]*x^2 + ... .
func poly(c []float64, x float64) float64 {
	sum := c[0]
	for i := 1; i < len(c); i++ {
		sum += float64(c[i] * pow(x, i))
	}
	return sum
}

// tempCorrected applies a reference-temperature correction to a raw count:
//
//	x + c1*ref + ... + c5*ref^5 - (c1*tv + ... + c5*tv^5)
//
// c holds the coefficients of powers 1..len(c); there is no constant term.
func tempCorrected(x float64, c []float64, ref, tv float64) float64 {
	sum := x
	for i := range c {
		sum += float64(c[i] * pow(ref, i+1))
	}
	return sum - powerSum(c, tv)
}

// powerSum is c[0]*x + c[1]*x^2 + ... .
func powerSum(c []float64, x float64) float64 {
	sum := float64(c[0] * x)
	for i := 1; i < len(c); i++ {
		sum += float64(c[i] * pow(x, i+1))
	}
	return sum
}

// halfPowerSeries evaluates c[0] + c[1]*x^0.5 + c[2]*x + ... + c[5]*x^2.5.
// The half powers are built from math.Sqrt, which is correctly rounded on
// every platform, rather than math.Pow, which falls back to Exp and Log.
func halfPowerSeries(c [6]float64, x float64) float64 {
	sq := math.Sqrt(x)
	x2 := float64(x * x)
	return c[0] +
		float64(c[1]*sq) +
		float64(c[2]*x) +
		float64(c[3]*float64(x*sq)) +
		float64(c[4]*x2) +
		float64(c[5]*float64(x2*sq))
}

func pow(x float64, n int) float64 {
	if n == 1 {
		return x
	}
	return math.Pow(x, float64(n))
}
