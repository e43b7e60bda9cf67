package regression

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	var s StandardScaler
	s.Fit(X)

	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	out := s.Transform(X)
	col := mat.Col(nil, 0, out)
	var sum, sq float64
	for _, v := range col {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0, sum/4, 1e-12)
	assert.InDelta(t, 1, sq/4, 1e-12)
	assert.Equal(t, 0.0, out.At(2, 1))
}

func TestOneHotEncoder(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		5, 23,
		1, 0,
		5, 0,
	})
	var e OneHotEncoder
	e.Fit(X)

	assert.Equal(t, [][]float64{{1, 5}, {0, 23}}, e.Categories)
	assert.Equal(t, 4, e.Width())
	assert.Equal(t, []string{"RatecodeID_1", "RatecodeID_5", "pickup_hour_0", "pickup_hour_23"}, e.FeatureNames([]string{"RatecodeID", "pickup_hour"}))

	out := e.Transform(mat.NewDense(2, 2, []float64{
		1, 23,
		99, 7,
	}))
	assert.Equal(t, []float64{1, 0, 0, 1}, out.RawRowView(0))
	assert.Equal(t, []float64{0, 0, 0, 0}, out.RawRowView(1), "unknown categories encode as zeros")
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1, x2 := float64(i), float64((i*7)%5)
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y[i] = 2*x1 - 3*x2 + 5
	}

	var r LinearRegression
	require.NoError(t, r.Fit(X, y))
	assert.InDelta(t, 2, r.Coef[0], 1e-9)
	assert.InDelta(t, -3, r.Coef[1], 1e-9)
	assert.InDelta(t, 5, r.Intercept, 1e-9)

	pred, err := r.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
}

func TestLinearRegressionCollinear(t *testing.T) {
	// two indicator columns that always sum to one are collinear with the intercept
	X := mat.NewDense(6, 3, []float64{
		1, 1, 0,
		2, 0, 1,
		3, 1, 0,
		4, 0, 1,
		5, 1, 0,
		6, 0, 1,
	})
	y := []float64{3, 7, 7, 11, 11, 15}

	var r LinearRegression
	require.NoError(t, r.Fit(X, y))
	pred, err := r.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y, pred, 1e-9)
	assert.InDelta(t, 0, r.Coef[1]+r.Coef[2], 1e-9, "minimum-norm solution splits the indicator effect symmetrically")
}

func TestLinearRegressionErrors(t *testing.T) {
	var r LinearRegression
	assert.Error(t, r.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1}))

	require.NoError(t, r.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1, 2}))
	_, err := r.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	yTrue := []float64{3, -0.5, 2, 7}
	yPred := []float64{2.5, 0, 2, 8}

	s, err := Score(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, s.MSE, 1e-12)
	assert.InDelta(t, math.Sqrt(0.375), s.RMSE, 1e-12)
	assert.InDelta(t, 0.9486081370449679, s.R2, 1e-12)

	r2, err := R2Score([]float64{2, 2}, []float64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, 1.0, r2)
	r2, err = R2Score([]float64{2, 2}, []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r2)

	_, err = MeanSquaredError(nil, nil)
	assert.Error(t, err)
	_, err = MeanSquaredError([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func syntheticColumns(n int) (Columns, []float64) {
	cols := Columns{"dist": make([]float64, n), "hour": make([]float64, n), "rate": make([]float64, n)}
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		cols["dist"][i] = float64(i%13) + 0.5
		cols["hour"][i] = float64(i % 24)
		cols["rate"][i] = float64(1 + i%2)
		y[i] = 0.8*cols["dist"][i] + 0.05*cols["hour"][i] + float64(i%2)
	}
	return cols, y
}

func TestPipelineFitPredictAndRoundTrip(t *testing.T) {
	cols, y := syntheticColumns(100)
	p := NewPipeline([]string{"dist"}, []string{"hour", "rate"})
	require.NoError(t, p.Fit(cols, y))

	pred, err := p.Predict(cols)
	require.NoError(t, err)
	s, err := Score(y, pred)
	require.NoError(t, err)
	assert.Greater(t, s.R2, 0.99)

	path := filepath.Join(t.TempDir(), "model", "tip.gob")
	require.NoError(t, p.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)

	again, err := loaded.Predict(cols)
	require.NoError(t, err)
	assert.Equal(t, pred, again)
	assert.Equal(t, p.Features, loaded.Features)
	assert.Len(t, p.Coefficients(), 1+24+2)
}

func TestPipelineMissingColumn(t *testing.T) {
	cols, y := syntheticColumns(10)
	delete(cols, "rate")
	p := NewPipeline([]string{"dist"}, []string{"hour", "rate"})
	err := p.Fit(cols, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"rate" not found`)
}
