// Package regression holds the in-process regressors used when no cluster is
// configured, and the error metrics shared with remote evaluation.
package regression

import (
	"context"
	"fmt"
	"math"
	"slices"
)

// Stump is a depth-1 regression tree.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
}

// Predict returns Left when x[Feature] <= Threshold, Right otherwise.
func (s Stump) Predict(x []float64) float64 {
	if x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

// GradientBoosting is a squared-loss boosted ensemble of stumps.
type GradientBoosting struct {
	Estimators   int     `json:"estimators"`
	LearningRate float64 `json:"learning_rate"`
	Init         float64 `json:"init"`
	Stumps       []Stump `json:"stumps"`
}

// NewGradientBoosting returns an unfitted ensemble.
func NewGradientBoosting(estimators int, learningRate float64) *GradientBoosting {
	return &GradientBoosting{Estimators: estimators, LearningRate: learningRate}
}

// Fit trains the ensemble on rows x with targets y. It stops with ctx's
// error between rounds.
func (g *GradientBoosting) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if g.Estimators < 1 {
		return fmt.Errorf("%w: %d", ErrEstimator, g.Estimators)
	}
	width, err := checkShape(x, y)
	if err != nil {
		return err
	}

	g.Init = mean(y)
	g.Stumps = g.Stumps[:0]
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.Init
	}
	resid := make([]float64, len(y))
	orders := sortedOrders(x, width)

	for range g.Estimators {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range y {
			resid[i] = y[i] - pred[i]
		}
		s, ok := bestStump(x, resid, orders)
		if !ok {
			// Residuals are constant on every split; further rounds add nothing.
			break
		}
		s.Left *= g.LearningRate
		s.Right *= g.LearningRate
		g.Stumps = append(g.Stumps, s)
		for i := range pred {
			pred[i] += s.Predict(x[i])
		}
	}
	return nil
}

// Predict scores one row.
func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.Init
	for _, s := range g.Stumps {
		out += s.Predict(x)
	}
	return out
}

// PredictAll scores every row.
func (g *GradientBoosting) PredictAll(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = g.Predict(row)
	}
	return out
}

// sortedOrders returns, per feature, row indices sorted by that feature.
func sortedOrders(x [][]float64, width int) [][]int {
	orders := make([][]int, width)
	for f := range width {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case x[a][f] < x[b][f]:
				return -1
			case x[a][f] > x[b][f]:
				return 1
			}
			return 0
		})
		orders[f] = idx
	}
	return orders
}

// bestStump finds the split minimising squared error of the residuals.
// It reports false when no split separates distinct feature values.
func bestStump(x [][]float64, r []float64, orders [][]int) (Stump, bool) {
	n := len(r)
	var total float64
	for _, v := range r {
		total += v
	}

	var best Stump
	bestGain := 0.0
	found := false
	for f, idx := range orders {
		var left float64
		for k := 0; k < n-1; k++ {
			left += r[idx[k]]
			cur, next := x[idx[k]][f], x[idx[k+1]][f]
			if cur == next {
				continue
			}
			nl, nr := float64(k+1), float64(n-k-1)
			right := total - left
			// SSE reduction of splitting at k, up to a constant.
			gain := left*left/nl + right*right/nr
			if !found || gain > bestGain {
				found = true
				bestGain = gain
				best = Stump{Feature: f, Threshold: (cur + next) / 2, Left: left / nl, Right: right / nr}
			}
		}
	}
	return best, found
}

func checkShape(x [][]float64, y []float64) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmpty
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d targets", ErrShape, len(x), len(y))
	}
	width := len(x[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: no features", ErrShape)
	}
	for i, row := range x {
		if len(row) != width {
			return 0, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), width)
		}
	}
	return width, nil
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
