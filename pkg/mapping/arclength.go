package mapping

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"

	"specimenmap/pkg/model"
)

// DefaultQuadratureNodes is used when a Mapper does not set QuadratureNodes
const DefaultQuadratureNodes = 64

// Arclength returns the signed length of curve between the vertex (x = 0)
// and x. It is negative for x < 0, so it increases monotonically with x.
func Arclength(curve model.CurveModel, x float64, nodes int) float64 {
	if x == 0 {
		return 0
	}
	if nodes < 1 {
		nodes = DefaultQuadratureNodes
	}
	speed := func(t float64) float64 {
		d := curve.Derivative(t)
		return math.Sqrt(1 + d*d)
	}
	length := quad.Fixed(speed, math.Min(0, x), math.Max(0, x), nodes, nil, 0)
	if x < 0 {
		return -length
	}
	return length
}
