package regression

import (
	"fmt"
	"math"
)

const pivotEpsilon = 1e-12

// LinearRegression is ordinary least squares with an intercept.
type LinearRegression struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Fit solves the normal equations (XᵀX)β = Xᵀy.
func (l *LinearRegression) Fit(x [][]float64, y []float64) error {
	width, err := checkShape(x, y)
	if err != nil {
		return err
	}
	d := width + 1

	// Augmented matrix [XᵀX | Xᵀy] with a leading column of ones in X.
	a := make([][]float64, d)
	for i := range a {
		a[i] = make([]float64, d+1)
	}
	row := make([]float64, d)
	for r, xs := range x {
		row[0] = 1
		copy(row[1:], xs)
		for i := range d {
			for j := range d {
				a[i][j] += row[i] * row[j]
			}
			a[i][d] += row[i] * y[r]
		}
	}

	beta, err := solve(a)
	if err != nil {
		return err
	}
	l.Intercept = beta[0]
	l.Coefficients = beta[1:]
	return nil
}

// Predict scores one row.
func (l *LinearRegression) Predict(x []float64) float64 {
	out := l.Intercept
	for i, c := range l.Coefficients {
		out += c * x[i]
	}
	return out
}

// solve runs Gaussian elimination with partial pivoting on an augmented matrix.
func solve(a [][]float64) ([]float64, error) {
	n := len(a)
	for col := range n {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < pivotEpsilon {
			return nil, fmt.Errorf("%w: column %d", ErrSingular, col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c <= n; c++ {
				a[r][c] -= f * a[col][c]
			}
		}
	}
	out := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		s := a[r][n]
		for c := r + 1; c < n; c++ {
			s -= a[r][c] * out[c]
		}
		out[r] = s / a[r][r]
	}
	return out, nil
}
