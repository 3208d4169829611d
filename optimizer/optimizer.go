// Package optimizer minimizes smooth functions of a flat vector with
// limited-memory BFGS. It knows nothing about topic models: callers
// hand it a starting point, a function and its gradient.
package optimizer

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

var ErrNotConverged = errors.New("optimizer: l-bfgs did not converge")

// Func evaluates the objective at x
type Func func(x []float64) float64

// Grad writes the gradient at x into grad
type Grad func(grad, x []float64)

type Settings struct {
	// number of past steps kept to approximate the inverse Hessian
	MaxCorrections int
	// stop once |g| < Accuracy * max(1, |x|)
	Accuracy float64
	// major iteration budget, exceeding it counts as a failure
	MaxIterations int
}

func DefaultSettings() Settings {
	return Settings{
		MaxCorrections: 5,
		Accuracy:       1e-4,
		MaxIterations:  200,
	}
}

type Result struct {
	X          []float64
	F          float64
	Converged  bool
	Status     optimize.Status
	Iterations int
	FuncEvals  int
}

// Optimize minimizes f starting from x0, x0 is not modified. The
// returned point is the best one seen, so f(Result.X) <= f(x0) even
// when the run fails. A run that stops for any reason other than
// convergence returns ErrNotConverged along with the result.
func Optimize(x0 []float64, f Func, grad Grad, s Settings) (*Result, error) {
	if len(x0) == 0 {
		return nil, fmt.Errorf("optimizer: empty starting point")
	}
	if s.MaxCorrections <= 0 || !(s.Accuracy > 0) || s.MaxIterations <= 0 {
		return nil, fmt.Errorf("optimizer: invalid settings %+v", s)
	}

	problem := optimize.Problem{
		Func: f,
		Grad: grad,
	}
	settings := &optimize.Settings{
		Converger:       newRelativeGradient(s.Accuracy),
		MajorIterations: s.MaxIterations,
	}
	method := &optimize.LBFGS{Store: s.MaxCorrections}

	res, err := optimize.Minimize(problem, x0, settings, method)
	if res == nil {
		return nil, fmt.Errorf("optimizer: %w", err)
	}

	result := &Result{
		X:          res.X,
		F:          res.F,
		Status:     res.Status,
		Iterations: res.MajorIterations,
		FuncEvals:  res.FuncEvaluations,
	}
	switch res.Status {
	case optimize.GradientThreshold, optimize.FunctionConvergence, optimize.MethodConverge:
		result.Converged = err == nil
	}
	log.V(1).Infof("l-bfgs: status %v, f %g, %d iterations, %d evaluations",
		res.Status, res.F, res.MajorIterations, res.FuncEvaluations)

	if !result.Converged {
		if err != nil {
			return result, fmt.Errorf("%w: %v: %v", ErrNotConverged, res.Status, err)
		}
		return result, fmt.Errorf("%w: %v", ErrNotConverged, res.Status)
	}
	return result, nil
}

// relativeGradient stops when the gradient norm is small relative to
// the norm of x, and falls back to function stagnation
type relativeGradient struct {
	accuracy float64
	function *optimize.FunctionConverge
}

func newRelativeGradient(accuracy float64) *relativeGradient {
	return &relativeGradient{
		accuracy: accuracy,
		function: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}
}

func (c *relativeGradient) Init(dim int) {
	c.function.Init(dim)
}

func (c *relativeGradient) Converged(loc *optimize.Location) optimize.Status {
	if loc.Gradient != nil {
		gnorm := floats.Norm(loc.Gradient, 2)
		xnorm := math.Max(1, floats.Norm(loc.X, 2))
		if gnorm < c.accuracy*xnorm {
			return optimize.GradientThreshold
		}
	}
	return c.function.Converged(loc)
}
