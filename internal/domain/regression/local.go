package regression

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/okian/elbow/internal/domain/sweep"
)

// AlgorithmGBT names the boosted-stump regressor in artifacts.
const AlgorithmGBT = "gbt"

// Dataset is a feature matrix with its targets.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Len is the number of rows.
func (d Dataset) Len() int { return len(d.Y) }

// LocalEvaluator sweeps the estimator count of GradientBoosting in process.
type LocalEvaluator struct {
	train        Dataset
	validation   Dataset
	learningRate float64
}

// NewLocalEvaluator scores trials on validation after fitting on train.
func NewLocalEvaluator(train, validation Dataset, learningRate float64) *LocalEvaluator {
	if learningRate <= 0 || learningRate > 1 {
		learningRate = 0.1
	}
	return &LocalEvaluator{train: train, validation: validation, learningRate: learningRate}
}

// Evaluate returns the validation MSE of a model with param estimators.
func (e *LocalEvaluator) Evaluate(ctx context.Context, param int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m := NewGradientBoosting(param, e.learningRate)
	if err := m.Fit(ctx, e.train.X, e.train.Y); err != nil {
		return 0, fmt.Errorf("fit %d estimators: %w", param, err)
	}
	if e.validation.Len() == 0 {
		return 0, fmt.Errorf("%w: validation split", ErrEmpty)
	}
	return MSE(e.validation.Y, m.PredictAll(e.validation.X)), nil
}

// Fit retrains on train and validation together.
func (e *LocalEvaluator) Fit(ctx context.Context, param int) (sweep.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return sweep.Artifact{}, err
	}
	x := slices.Concat(e.train.X, e.validation.X)
	y := slices.Concat(e.train.Y, e.validation.Y)
	m := NewGradientBoosting(param, e.learningRate)
	if err := m.Fit(ctx, x, y); err != nil {
		return sweep.Artifact{}, fmt.Errorf("refit %d estimators: %w", param, err)
	}
	return sweep.Artifact{
		Param:     param,
		Algorithm: AlgorithmGBT,
		Payload:   m,
		Trained:   time.Now().UTC(),
	}, nil
}
