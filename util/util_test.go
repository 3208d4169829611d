package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorSum(t *testing.T) {
	v := []uint32{3, 4, 5}
	assert.Equal(t, uint32(12), VectorSum(v))
}

func TestTopN(t *testing.T) {
	v := []float64{0.1, 0.5, 0.2, 0.5, 0.05}

	assert.Equal(t, []int{1, 3, 2}, TopN(v, 3))
	assert.Equal(t, []int{1, 3, 2, 0, 4}, TopN(v, 10))
	assert.Nil(t, TopN(v, 0))
	// input is left untouched
	assert.Equal(t, []float64{0.1, 0.5, 0.2, 0.5, 0.05}, v)
}

func TestArgMax(t *testing.T) {
	assert.Equal(t, 2, ArgMax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 0, ArgMax([]float64{0.5, 0.5}))
}

func TestLogGamma(t *testing.T) {
	// Gamma(5) = 24
	assert.InDelta(t, math.Log(24), LogGamma(5), 1e-12)
	// Gamma(0.5) = sqrt(pi)
	assert.InDelta(t, 0.5*math.Log(math.Pi), LogGamma(0.5), 1e-12)
	assert.True(t, math.IsNaN(LogGamma(0)))
	assert.True(t, math.IsNaN(LogGamma(-3)))
	assert.False(t, math.IsNaN(LogGamma(-2.5)))
}

func TestDigamma(t *testing.T) {
	eulerGamma := 0.5772156649015329
	// psi(1) = -gamma, psi(n+1) = psi(n) + 1/n
	assert.InDelta(t, -eulerGamma, Digamma(1), 1e-8)
	assert.InDelta(t, 1-eulerGamma, Digamma(2), 1e-8)
	assert.InDelta(t, -eulerGamma-2*math.Ln2, Digamma(0.5), 1e-8)
	assert.True(t, math.IsNaN(Digamma(0)))
	assert.True(t, math.IsNaN(Digamma(-1)))
}

func TestDigammaIsLogGammaDerivative(t *testing.T) {
	for _, x := range []float64{1e-3, 0.3, 1.7, 12.5, 250} {
		h := 1e-6 * math.Max(1, x)
		fd := (LogGamma(x+h) - LogGamma(x-h)) / (2 * h)
		assert.InEpsilon(t, fd, Digamma(x), 1e-5, "x=%v", x)
	}
}
