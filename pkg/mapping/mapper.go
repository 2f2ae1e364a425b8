package mapping

import (
	"context"
	"fmt"
	"iter"
	"math"
	"sync"

	"specimenmap/internal/models"
	"specimenmap/pkg/model"
)

// Mapper computes curvilinear coordinates for every point of a centered
// cloud. A Mapper holds no per-call state and may be shared.
type Mapper struct {
	// Minimizer performs the closest point search
	Minimizer Minimizer

	// Workers is the number of goroutines used by Transform
	Workers int

	// QuadratureNodes is the number of Gauss-Legendre nodes for arclength
	QuadratureNodes int
}

// NewMapper creates a mapper with the given minimizer and worker count.
func NewMapper(minimizer Minimizer, workers int) *Mapper {
	return &Mapper{
		Minimizer:       minimizer,
		Workers:         workers,
		QuadratureNodes: DefaultQuadratureNodes,
	}
}

// Result holds the coordinates of one cloud. Points is in input order.
type Result struct {
	Points     []models.CurvilinearPoint
	Unresolved []*models.UnresolvedPointError
}

// ByID indexes the resolved and unresolved points by point ID.
func (r *Result) ByID() map[int]models.CurvilinearPoint {
	out := make(map[int]models.CurvilinearPoint, len(r.Points))
	for _, p := range r.Points {
		out[p.ID] = p
	}
	return out
}

// MapPoint finds the closest point on curve to p, seeded at p.X, and
// derives the arclength and azimuth from it.
func (m *Mapper) MapPoint(p models.Point, curve model.CurveModel) (models.CurvilinearPoint, error) {
	out := models.CurvilinearPoint{ID: p.ID, X: p.X, Y: p.Y, Z: p.Z}

	obj := Objective{
		Func: func(t float64) float64 {
			dx, dy := t-p.X, curve.Evaluate(t)-p.Y
			return dx*dx + dy*dy
		},
		Grad: func(t float64) float64 {
			dx, dy := t-p.X, curve.Evaluate(t)-p.Y
			return 2*dx + 2*dy*curve.Derivative(t)
		},
	}

	xc, _, err := m.Minimizer.Minimize(obj, p.X)
	if err != nil {
		return unresolved(out), &models.UnresolvedPointError{ID: p.ID, Reason: err.Error()}
	}

	out.XC = xc
	out.YC = curve.Evaluate(xc)
	out.ZC = 0
	out.R = math.Hypot(p.X-out.XC, p.Y-out.YC)
	out.AC = Arclength(curve, xc, m.QuadratureNodes)
	out.Theta = math.Atan2(p.Z-out.ZC, p.X-out.XC)

	if math.IsNaN(out.YC+out.R+out.AC+out.Theta) || math.IsInf(out.YC+out.R+out.AC, 0) {
		return unresolved(out), &models.UnresolvedPointError{ID: p.ID, Reason: "non-finite coordinates"}
	}
	return out, nil
}

func unresolved(p models.CurvilinearPoint) models.CurvilinearPoint {
	nan := math.NaN()
	p.XC, p.YC, p.ZC = nan, nan, nan
	p.R, p.AC, p.Theta = nan, nan, nan
	p.Unresolved = true
	return p
}

// Points lazily yields the coordinates of each point in input order,
// keyed by position. Ranging over the sequence again recomputes it.
// Failed points are yielded with Unresolved set and NaN coordinates; the
// failure reasons are only collected by Transform.
func (m *Mapper) Points(cloud models.PointCloud, curve model.CurveModel) iter.Seq2[int, models.CurvilinearPoint] {
	return func(yield func(int, models.CurvilinearPoint) bool) {
		for i, p := range cloud {
			cp, _ := m.MapPoint(p, curve)
			if !yield(i, cp) {
				return
			}
		}
	}
}

// Transform maps every point of cloud using Workers goroutines. Points that
// fail to resolve are marked and listed in Result.Unresolved; once ctx is
// done the remaining points are marked unresolved with the context error.
func (m *Mapper) Transform(ctx context.Context, cloud models.PointCloud, curve model.CurveModel) (*Result, error) {
	if curve == nil {
		return nil, fmt.Errorf("%w: nil curve model", models.ErrInvalidConfiguration)
	}
	if m.Minimizer == nil {
		return nil, fmt.Errorf("%w: nil minimizer", models.ErrInvalidConfiguration)
	}
	workers := m.Workers
	if workers < 1 {
		return nil, &models.ConfigError{Field: "workers", Reason: fmt.Sprintf("%d must be at least 1", workers)}
	}
	if workers > len(cloud) {
		workers = len(cloud)
	}

	res := &Result{Points: make([]models.CurvilinearPoint, len(cloud))}
	if len(cloud) == 0 {
		return res, nil
	}

	type chunkResult struct {
		start  int
		points []models.CurvilinearPoint
		errs   []*models.UnresolvedPointError
	}
	resultChan := make(chan chunkResult, workers)

	// Partition into contiguous chunks; each worker owns one
	chunkSize := (len(cloud) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(cloud); start += chunkSize {
		end := start + chunkSize
		if end > len(cloud) {
			end = len(cloud)
		}

		wg.Add(1)
		go func(start int, chunk models.PointCloud) {
			defer wg.Done()
			out := chunkResult{start: start, points: make([]models.CurvilinearPoint, len(chunk))}
			for i, p := range chunk {
				if err := ctx.Err(); err != nil {
					out.points[i] = unresolved(models.CurvilinearPoint{ID: p.ID, X: p.X, Y: p.Y, Z: p.Z})
					out.errs = append(out.errs, &models.UnresolvedPointError{ID: p.ID, Reason: err.Error()})
					continue
				}
				cp, err := m.MapPoint(p, curve)
				out.points[i] = cp
				if err != nil {
					out.errs = append(out.errs, err.(*models.UnresolvedPointError))
				}
			}
			resultChan <- out
		}(start, cloud[start:end])
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Gather and restore input order
	errsByStart := make(map[int][]*models.UnresolvedPointError)
	for r := range resultChan {
		copy(res.Points[r.start:], r.points)
		errsByStart[r.start] = r.errs
	}
	for start := 0; start < len(cloud); start += chunkSize {
		res.Unresolved = append(res.Unresolved, errsByStart[start]...)
	}

	return res, nil
}
