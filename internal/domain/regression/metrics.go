package regression

import "math"

// MSE is the mean squared error of pred against want.
func MSE(want, pred []float64) float64 {
	if len(want) == 0 || len(want) != len(pred) {
		return math.NaN()
	}
	var s float64
	for i := range want {
		d := want[i] - pred[i]
		s += d * d
	}
	return s / float64(len(want))
}

// RMSE is the root of MSE.
func RMSE(want, pred []float64) float64 { return math.Sqrt(MSE(want, pred)) }

// MAE is the mean absolute error.
func MAE(want, pred []float64) float64 {
	if len(want) == 0 || len(want) != len(pred) {
		return math.NaN()
	}
	var s float64
	for i := range want {
		s += math.Abs(want[i] - pred[i])
	}
	return s / float64(len(want))
}
