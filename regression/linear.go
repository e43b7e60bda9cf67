package regression

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression is ordinary least squares with an intercept.
// The solver is deterministic: X and y are centered and the minimum-norm
// least-squares solution is taken from a thin SVD, so collinear one-hot
// blocks don't make the fit fail.
type LinearRegression struct {
	Coef      []float64
	Intercept float64
}

// Fit estimates coefficients from X (n×p) and y (n)
func (r *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	n, p := X.Dims()
	if n == 0 {
		return errors.New("cannot fit on zero rows")
	}
	if len(y) != n {
		return errors.Errorf("y has %d rows, X has %d", len(y), n)
	}

	xMean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		xMean[j] = floats.Sum(col) / float64(n)
	}
	yMean := floats.Sum(y) / float64(n)

	xc := mat.NewDense(n, p, nil)
	xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := mat.NewDense(n, 1, nil)
	for i, v := range y {
		yc.Set(i, 0, v-yMean)
	}

	r.Coef = make([]float64, p)
	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDThin) {
		return errors.New("SVD factorization failed")
	}
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(n, p))
	if rank := svd.Rank(rcond); rank > 0 {
		var beta mat.Dense
		svd.SolveTo(&beta, yc, rank)
		mat.Col(r.Coef, 0, &beta)
	}
	r.Intercept = yMean - floats.Dot(xMean, r.Coef)
	return nil
}

// Predict returns X·coef + intercept
func (r *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	n, p := X.Dims()
	if p != len(r.Coef) {
		return nil, errors.Errorf("X has %d columns, model has %d coefficients", p, len(r.Coef))
	}
	var out mat.VecDense
	out.MulVec(X, mat.NewVecDense(p, r.Coef))
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = out.AtVec(i) + r.Intercept
	}
	return pred, nil
}
