// Package elbow picks the point of diminishing returns from a hyperparameter sweep.
//
// The elbow is the swept value whose validation error lies furthest below the
// chord joining the first and last points of the sweep.
package elbow

import "math"

// Param is the set of types a swept hyperparameter may take.
type Param interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Analysis is the full outcome of a selection.
type Analysis[P Param] struct {
	Index     int
	Param     P
	Slope     float64
	Intercept float64
	// Distances[i] is line(params[i]) - errs[i].
	Distances []float64
}

// Select returns the parameter value whose error is furthest below the line
// through the first and last sweep points. Ties go to the lowest index.
func Select[P Param](params []P, errs []float64) (P, error) {
	a, err := Analyze(params, errs)
	if err != nil {
		var zero P
		return zero, err
	}
	return a.Param, nil
}

// Analyze is Select with the intermediate line and distances exposed.
// Inputs are not modified.
func Analyze[P Param](params []P, errs []float64) (Analysis[P], error) {
	if err := validate(params, errs); err != nil {
		return Analysis[P]{}, err
	}

	n := len(params)
	x1, xn := float64(params[0]), float64(params[n-1])
	// Distinct integers above 2^53 can share a float64.
	if xn == x1 {
		return Analysis[P]{}, &DegenerateSweepError{First: x1, Last: xn}
	}
	slope := (errs[n-1] - errs[0]) / (xn - x1)
	intercept := errs[0] - slope*x1
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return Analysis[P]{}, invalid(-1, "line through the end points is not finite")
	}

	distances := make([]float64, n)
	best := 0
	for i, p := range params {
		distances[i] = slope*float64(p) + intercept - errs[i]
		if distances[i] > distances[best] {
			best = i
		}
	}

	return Analysis[P]{
		Index:     best,
		Param:     params[best],
		Slope:     slope,
		Intercept: intercept,
		Distances: distances,
	}, nil
}

func validate[P Param](params []P, errs []float64) error {
	n := len(params)
	if n < 2 {
		return invalid(-1, "need at least two points")
	}
	if len(errs) != n {
		return invalid(-1, "parameter and error lengths differ")
	}
	// Degenerate is checked before monotonicity so [4,4] is reported as such.
	if params[0] == params[n-1] {
		return &DegenerateSweepError{First: float64(params[0]), Last: float64(params[n-1])}
	}
	for i := 1; i < n; i++ {
		if params[i] <= params[i-1] {
			return invalid(i, "parameters not strictly increasing")
		}
	}
	for i, e := range errs {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return invalid(i, "non-finite error")
		}
	}
	return nil
}
