package regression

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column to mean 0 and scales it to unit variance
// (population standard deviation). Constant columns keep a scale of 1.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit learns per-column mean and scale
func (s *StandardScaler) Fit(X mat.Matrix) {
	n, p := X.Dims()
	s.Mean = make([]float64, p)
	s.Scale = make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
}

// Transform returns the scaled copy of X
func (s *StandardScaler) Transform(X mat.Matrix) *mat.Dense {
	n, p := X.Dims()
	out := mat.NewDense(n, p, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out
}
