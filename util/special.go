package util

import (
	"math"

	"gonum.org/v1/gonum/mathext"
)

// nonPositiveInteger reports whether x is a pole of the gamma function
func nonPositiveInteger(x float64) bool {
	return x <= 0 && x == math.Floor(x)
}

// LogGamma returns log|Gamma(x)|. At the poles (0, -1, -2, ...) it
// returns NaN so that a bad prior shows up in the objective instead
// of being swallowed as +Inf.
func LogGamma(x float64) float64 {
	if nonPositiveInteger(x) {
		return math.NaN()
	}
	lg, _ := math.Lgamma(x)
	return lg
}

// Digamma returns the derivative of LogGamma, NaN at the poles.
func Digamma(x float64) float64 {
	if nonPositiveInteger(x) {
		return math.NaN()
	}
	return mathext.Digamma(x)
}
