package services

import (
	"math"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/regression"
	"taxi-tip-pipeline/utils"

	"github.com/pkg/errors"
)

// Evaluator scores a fitted pipeline on held-out trips
type Evaluator struct {
	logger *utils.Logger
}

// NewEvaluator creates a new Evaluator
func NewEvaluator(logger *utils.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// Evaluate predicts cols and compares the predictions with y
func (e *Evaluator) Evaluate(p *regression.Pipeline, cols regression.Columns, y []float64) (*models.EvaluationReport, error) {
	pred, err := p.Predict(cols)
	if err != nil {
		return nil, errors.Wrap(err, "predicting test set")
	}
	scores, err := regression.Score(y, pred)
	if err != nil {
		return nil, errors.Wrap(err, "scoring test set")
	}
	if math.IsNaN(scores.MSE) {
		return nil, errors.New("test set produced NaN predictions")
	}
	if scores.R2 < 0 {
		e.logger.Warn("Model does worse than predicting the mean tip (R2 %.3f)", scores.R2)
	}

	return &models.EvaluationReport{
		TestRows:     len(y),
		MSE:          scores.MSE,
		RMSE:         scores.RMSE,
		R2:           scores.R2,
		Coefficients: p.Coefficients(),
		Intercept:    p.Regressor.Intercept,
	}, nil
}
