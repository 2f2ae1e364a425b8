// Package mapping expresses aligned points in curvilinear coordinates
// relative to a fitted curve.
package mapping

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"specimenmap/internal/models"
)

// Objective is a scalar function of one variable. Grad may be nil for
// minimizers that do not use derivatives.
type Objective struct {
	Func func(t float64) float64
	Grad func(t float64) float64
}

// Minimizer finds a local minimum of an objective starting from seed.
// Implementations must be safe for concurrent use.
type Minimizer interface {
	Minimize(obj Objective, seed float64) (argmin, value float64, err error)
}

// errNotConverged is returned when a minimizer stops without converging
var errNotConverged = errors.New("minimizer stopped before converging")

// NelderMead minimizes with the derivative-free Nelder-Mead simplex method.
type NelderMead struct {
	// MaxIterations caps the number of major iterations per call
	MaxIterations int

	// SimplexSize is the initial simplex extent around the seed
	SimplexSize float64
}

func (nm NelderMead) Minimize(obj Objective, seed float64) (float64, float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return obj.Func(x[0]) },
	}
	settings := &optimize.Settings{
		MajorIterations: nm.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 10,
		},
	}
	return run(problem, seed, settings, &optimize.NelderMead{SimplexSize: nm.SimplexSize}, nil)
}

// BFGS minimizes with the quasi-Newton BFGS method and requires Grad.
type BFGS struct {
	MaxIterations int
}

func (b BFGS) Minimize(obj Objective, seed float64) (float64, float64, error) {
	if obj.Grad == nil {
		return math.NaN(), math.NaN(), fmt.Errorf("bfgs: objective has no gradient")
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return obj.Func(x[0]) },
		Grad: func(grad, x []float64) { grad[0] = obj.Grad(x[0]) },
	}
	settings := &optimize.Settings{
		MajorIterations:   b.MaxIterations,
		GradientThreshold: 1e-8,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-14,
			Iterations: 10,
		},
	}
	return run(problem, seed, settings, &optimize.BFGS{}, obj.Grad)
}

// stationaryTol bounds |f'(x)| / (1 + |f(x)|) for a stopped search to be
// accepted as converged.
const stationaryTol = 1e-6

// run executes method and checks its result. When grad is known, a search
// that stopped early (the BFGS line search fails when the seed already
// sits on the minimum) is still accepted if the gradient vanishes there.
func run(problem optimize.Problem, seed float64, settings *optimize.Settings, method optimize.Method, grad func(float64) float64) (float64, float64, error) {
	result, err := optimize.Minimize(problem, []float64{seed}, settings, method)
	if result == nil {
		if err == nil {
			err = errNotConverged
		}
		return math.NaN(), math.NaN(), err
	}

	stopped := err
	switch result.Status {
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
		optimize.GradientEvaluationLimit, optimize.RuntimeLimit, optimize.Failure:
		if stopped == nil {
			stopped = fmt.Errorf("%w: %v", errNotConverged, result.Status)
		}
	}
	if stopped != nil && !stationary(result, grad) {
		return math.NaN(), math.NaN(), stopped
	}

	x, f := result.X[0], result.F
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(f) || math.IsInf(f, 0) {
		return math.NaN(), math.NaN(), fmt.Errorf("%w: non-finite result", errNotConverged)
	}
	return x, f, nil
}

func stationary(result *optimize.Result, grad func(float64) float64) bool {
	if grad == nil || len(result.X) == 0 {
		return false
	}
	x, f := result.X[0], result.F
	g := grad(x)
	if math.IsNaN(g) || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return math.Abs(g) <= stationaryTol*(1+math.Abs(f))
}

// NewMinimizer returns the minimizer registered under name.
func NewMinimizer(name string, maxIterations int) (Minimizer, error) {
	if maxIterations < 1 {
		return nil, &models.ConfigError{Field: "maxIterations", Reason: fmt.Sprintf("%d must be at least 1", maxIterations)}
	}
	switch name {
	case "nelder-mead", "":
		return NelderMead{MaxIterations: maxIterations}, nil
	case "bfgs":
		return BFGS{MaxIterations: maxIterations}, nil
	default:
		return nil, &models.ConfigError{Field: "minimizer", Reason: fmt.Sprintf("unknown minimizer %q", name)}
	}
}
