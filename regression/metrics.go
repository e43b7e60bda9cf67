package regression

import (
	"math"

	"github.com/pkg/errors"
)

// MeanSquaredError is the mean of squared residuals
func MeanSquaredError(yTrue, yPred []float64) (float64, error) {
	if err := checkLengths(yTrue, yPred); err != nil {
		return 0, err
	}
	var sum float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return sum / float64(len(yTrue)), nil
}

// R2Score is 1 - SS_res/SS_tot. A constant target scores 1 when predicted
// exactly and 0 otherwise.
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkLengths(yTrue, yPred); err != nil {
		return 0, err
	}
	var mean float64
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))

	var ssRes, ssTot float64
	for i := range yTrue {
		r := yTrue[i] - yPred[i]
		t := yTrue[i] - mean
		ssRes += r * r
		ssTot += t * t
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// Scores bundles the evaluation metrics
type Scores struct {
	MSE  float64
	RMSE float64
	R2   float64
}

// Score computes MSE, RMSE and R2
func Score(yTrue, yPred []float64) (Scores, error) {
	mse, err := MeanSquaredError(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Scores{}, err
	}
	return Scores{MSE: mse, RMSE: math.Sqrt(mse), R2: r2}, nil
}

func checkLengths(yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.New("no samples to score")
	}
	if len(yTrue) != len(yPred) {
		return errors.Errorf("length mismatch: %d true values, %d predictions", len(yTrue), len(yPred))
	}
	return nil
}
