// Package sweep models a hyperparameter sweep: the swept range, the points it
// produces, and the recommendation drawn from them.
package sweep

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/okian/elbow/internal/domain/elbow"
)

// Point is one trial of a sweep: the parameter value and its validation error.
type Point struct {
	Param int     `json:"param"`
	Error float64 `json:"error"`
}

// Range is an inclusive arithmetic progression of parameter values.
type Range struct {
	Start int `json:"start"`
	Stop  int `json:"stop"`
	Step  int `json:"step"`
}

// MaxValues bounds how many values a single range may sweep.
const MaxValues = 100_000

// Validate checks that the range yields between two and MaxValues positive
// values.
func (r Range) Validate() error {
	step := r.step()
	switch {
	case r.Start < 1:
		return fmt.Errorf("%w: start %d must be positive", ErrInvalidRange, r.Start)
	case step < 1:
		return fmt.Errorf("%w: step %d must be positive", ErrInvalidRange, step)
	case r.Stop < r.Start || r.Stop-r.Start < step:
		return fmt.Errorf("%w: [%d, %d] by %d covers fewer than two values", ErrInvalidRange, r.Start, r.Stop, step)
	case r.count() > MaxValues:
		return fmt.Errorf("%w: [%d, %d] by %d covers more than %d values", ErrInvalidRange, r.Start, r.Stop, step, MaxValues)
	}
	return nil
}

func (r Range) step() int {
	if r.Step == 0 {
		return 1
	}
	return r.Step
}

// count is the number of values without materialising them. Stop-Start
// cannot overflow once both are positive.
func (r Range) count() int {
	step := r.step()
	if step < 1 || r.Start < 1 || r.Stop < r.Start {
		return 0
	}
	return (r.Stop-r.Start)/step + 1
}

// Values lists the swept parameter values. A zero Step means 1. Ranges that
// fail Validate yield nil.
func (r Range) Values() []int {
	if r.Validate() != nil {
		return nil
	}
	step := r.step()
	n := r.count()
	out := make([]int, n)
	for i := range out {
		out[i] = r.Start + i*step
	}
	return out
}

// Len is the number of values in the range, zero when it is invalid.
func (r Range) Len() int {
	if r.Validate() != nil {
		return 0
	}
	return r.count()
}

// Result is an ordered, immutable set of sweep points.
type Result struct {
	points []Point
}

// NewResult sorts points by parameter. Duplicated parameters are rejected.
func NewResult(points []Point) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrEmptyResult
	}
	ps := slices.Clone(points)
	slices.SortFunc(ps, func(a, b Point) int { return a.Param - b.Param })
	for i := 1; i < len(ps); i++ {
		if ps[i].Param == ps[i-1].Param {
			return Result{}, fmt.Errorf("duplicate parameter %d in sweep result", ps[i].Param)
		}
	}
	return Result{points: ps}, nil
}

// Points returns a copy of the points in ascending parameter order.
func (r Result) Points() []Point { return slices.Clone(r.points) }

// Len is the number of points.
func (r Result) Len() int { return len(r.points) }

// Params returns the parameter column.
func (r Result) Params() []int {
	out := make([]int, len(r.points))
	for i, p := range r.points {
		out[i] = p.Param
	}
	return out
}

// Errors returns the error column.
func (r Result) Errors() []float64 {
	out := make([]float64, len(r.points))
	for i, p := range r.points {
		out[i] = p.Error
	}
	return out
}

// Recommendation is the elbow of a sweep.
type Recommendation struct {
	Param     int       `json:"param"`
	Index     int       `json:"index"`
	Error     float64   `json:"error"`
	Distance  float64   `json:"distance"`
	Distances []float64 `json:"distances"`
}

// Recommend picks the elbow of r.
func Recommend(r Result) (Recommendation, error) {
	a, err := elbow.Analyze(r.Params(), r.Errors())
	if err != nil {
		return Recommendation{}, err
	}
	return Recommendation{
		Param:     a.Param,
		Index:     a.Index,
		Error:     r.points[a.Index].Error,
		Distance:  a.Distances[a.Index],
		Distances: a.Distances,
	}, nil
}

// Evaluator fits a model at param on the training split and returns its
// validation error.
type Evaluator interface {
	Evaluate(ctx context.Context, param int) (float64, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, param int) (float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, param int) (float64, error) {
	return f(ctx, param)
}

// Artifact is a model fitted by a Trainer.
type Artifact struct {
	Param     int
	Algorithm string
	// Payload holds an in-process model ready to serialize, if any.
	Payload any
	// RemotePath locates a model left on distributed storage, if any.
	RemotePath string
	Trained    time.Time
}

// Trainer refits at a chosen parameter on the full dataset.
type Trainer interface {
	Fit(ctx context.Context, param int) (Artifact, error)
}

// Trials lazily evaluates each value of r in order. Ranging over the
// sequence again re-runs the evaluations. Iteration stops after the first
// error, which is yielded with a zero Point.
func Trials(ctx context.Context, r Range, ev Evaluator) iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		if err := r.Validate(); err != nil {
			yield(Point{}, err)
			return
		}
		for _, p := range r.Values() {
			if err := ctx.Err(); err != nil {
				yield(Point{}, err)
				return
			}
			e, err := ev.Evaluate(ctx, p)
			if err != nil {
				yield(Point{}, fmt.Errorf("evaluate param %d: %w", p, err))
				return
			}
			if !yield(Point{Param: p, Error: e}, nil) {
				return
			}
		}
	}
}

// Collect drains seq into a Result.
func Collect(seq iter.Seq2[Point, error]) (Result, error) {
	var points []Point
	for p, err := range seq {
		if err != nil {
			return Result{}, err
		}
		points = append(points, p)
	}
	return NewResult(points)
}
