package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobonovski/lltm/prior"
)

func quadratic(center []float64) (Func, Grad) {
	f := func(x []float64) float64 {
		s := 0.0
		for i, v := range x {
			d := v - center[i]
			s += float64(i+1) * d * d
		}
		return s
	}
	g := func(grad, x []float64) {
		for i, v := range x {
			grad[i] = 2 * float64(i+1) * (v - center[i])
		}
	}
	return f, g
}

func TestOptimizeQuadratic(t *testing.T) {
	center := []float64{1, -2, 0.5, 3}
	f, g := quadratic(center)
	x0 := []float64{0, 0, 0, 0}

	res, err := Optimize(x0, f, g, DefaultSettings())
	require.NoError(t, err)
	assert.True(t, res.Converged)
	for i := range center {
		assert.InDelta(t, center[i], res.X[i], 1e-3)
	}
	// the starting point is left alone
	assert.Equal(t, []float64{0, 0, 0, 0}, x0)
}

func TestOptimizeRosenbrock(t *testing.T) {
	r := rosen{}
	s := DefaultSettings()
	s.Accuracy = 1e-6
	s.MaxIterations = 1000

	res, err := Optimize([]float64{-1.2, 1}, r.Func, r.Grad, s)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X[0], 1e-3)
	assert.InDelta(t, 1.0, res.X[1], 1e-3)
}

type rosen struct{}

func (rosen) Func(x []float64) float64 {
	a, b := 1-x[0], x[1]-x[0]*x[0]
	return a*a + 100*b*b
}

func (rosen) Grad(grad, x []float64) {
	b := x[1] - x[0]*x[0]
	grad[0] = -2*(1-x[0]) - 400*x[0]*b
	grad[1] = 200 * b
}

func TestOptimizeIterationLimit(t *testing.T) {
	f, g := quadratic([]float64{5, 5, 5})
	s := DefaultSettings()
	s.MaxIterations = 1
	s.Accuracy = 1e-12

	res, err := Optimize([]float64{-5, 7, 0}, f, g, s)
	require.ErrorIs(t, err, ErrNotConverged)
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.LessOrEqual(t, res.F, f([]float64{-5, 7, 0}))
}

func TestOptimizeInvalidSettings(t *testing.T) {
	f, g := quadratic([]float64{0})
	_, err := Optimize(nil, f, g, DefaultSettings())
	assert.Error(t, err)

	s := DefaultSettings()
	s.Accuracy = 0
	_, err = Optimize([]float64{1}, f, g, s)
	assert.Error(t, err)

	s = DefaultSettings()
	s.MaxCorrections = 0
	_, err = Optimize([]float64{1}, f, g, s)
	assert.Error(t, err)
}

type fixedCounts map[[3]uint32]uint32

func (c fixedCounts) Get(item, o, k uint32) uint32 {
	return c[[3]uint32{item, o, k}]
}

func (c fixedCounts) LabelSum(o, k uint32) uint32 {
	sum := uint32(0)
	for key, n := range c {
		if key[1] == o && key[2] == k {
			sum += n
		}
	}
	return sum
}

// fitting the prior to fixed counts never makes the objective worse
func TestOptimizePriorObjectiveDoesNotIncrease(t *testing.T) {
	counts := fixedCounts{
		{0, 0, 0}: 9, {1, 0, 0}: 2, {2, 0, 1}: 6,
		{3, 1, 0}: 4, {4, 1, 1}: 11, {0, 1, 1}: 1,
	}
	for _, name := range prior.Names() {
		p, err := prior.New(name, prior.Params{
			NumOuter: 2, NumInner: 2, NumItems: 5, BetaInit: []float64{0.1, 0.1},
		})
		require.NoError(t, err)

		obj := prior.NewObjective(p, counts, 1.0)
		x0 := p.Vector()
		before := obj.Func(x0)

		res, err := Optimize(x0, obj.Func, obj.Grad, DefaultSettings())
		require.NoError(t, err, name)
		assert.LessOrEqual(t, res.F, before, name)
		assert.InDelta(t, obj.Func(res.X), res.F, 1e-9, name)

		p.SetVector(res.X)
		for i := uint32(0); i < 5; i += 1 {
			assert.Greater(t, p.Beta(0, 0, i), 0.0)
		}
	}
}
