package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/regression"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/utils"

	"github.com/pkg/errors"
)

// TrainResult is the fitted pipeline with its held-out evaluation
type TrainResult struct {
	Pipeline *regression.Pipeline
	Report   *models.EvaluationReport
}

// Trainer fits the tip model on the merged dataset and saves it
type Trainer struct {
	modelPath string
	out       io.Writer
	logger    *utils.Logger
	metrics   *utils.Metrics
	cleaner   *DataCleaner
	evaluator *Evaluator
}

// NewTrainer creates a new Trainer saving the model to modelPath
func NewTrainer(modelPath string, out io.Writer, logger *utils.Logger, metrics *utils.Metrics) *Trainer {
	return &Trainer{
		modelPath: modelPath,
		out:       out,
		logger:    logger,
		metrics:   metrics,
		cleaner:   NewDataCleaner(logger),
		evaluator: NewEvaluator(logger),
	}
}

// Run trains on trainMonths, evaluates on testMonths and saves the pipeline.
func (t *Trainer) Run(ctx context.Context, path string, trainMonths, testMonths []string) (*TrainResult, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(t.out, "Error: do not find parquet files. '%s' First run the merge stage\n", path)
			return nil, errors.Wrapf(ErrMergedFileMissing, "%s", path)
		}
		return nil, errors.Wrapf(err, "checking %s", path)
	}

	tbl, err := storage.ReadParquetFile(ctx, path)
	if err != nil {
		return nil, err
	}
	defer tbl.Release()

	if tbl.NumRows() == 0 {
		fmt.Fprintln(t.out, "Empty Data")
		return nil, errors.Wrapf(ErrEmptyFrame, "%s", path)
	}

	frame, err := NewFeatureFrame(tbl)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Loaded %d trips from %s", frame.Nrow(), path)

	trainCols, yTrain, err := t.split(frame, trainMonths)
	if err != nil {
		return nil, errors.Wrap(err, "training split")
	}
	testCols, yTest, err := t.split(frame, testMonths)
	if err != nil {
		return nil, errors.Wrap(err, "testing split")
	}
	t.logger.Info("Training on %d trips (months %v), testing on %d trips (months %v)",
		len(yTrain), trainMonths, len(yTest), testMonths)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	p := regression.NewPipeline(models.NumericFeatures(), models.CategoricalFeatures)
	if err := p.Fit(trainCols, yTrain); err != nil {
		return nil, err
	}
	t.logger.Debug("Fitted %d coefficients in %s", len(p.Regressor.Coef), time.Since(start))
	fmt.Fprintln(t.out, "Train Finished.")

	report, err := t.evaluator.Evaluate(p, testCols, yTest)
	if err != nil {
		return nil, err
	}
	report.TrainRows = len(yTrain)
	report.TrainMonths = trainMonths
	report.TestMonths = testMonths
	PrintMetricsReport(t.out, report)

	t.metrics.ModelMSE.Set(report.MSE)
	t.metrics.ModelRMSE.Set(report.RMSE)
	t.metrics.ModelR2.Set(report.R2)

	if err := p.Save(t.modelPath); err != nil {
		return nil, err
	}
	report.ModelPath = t.modelPath
	t.logger.Info("Model saved to %s", t.modelPath)
	fmt.Fprintf(t.out, "\n Save Model: %s\n", t.modelPath)

	return &TrainResult{Pipeline: p, Report: report}, nil
}

func (t *Trainer) split(frame *FeatureFrame, months []string) (regression.Columns, []float64, error) {
	sub, err := frame.Months(months)
	if err != nil {
		return nil, nil, err
	}
	sub, err = t.cleaner.DropIncomplete(sub)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrEmptySplit, "months %v: %v", months, err)
	}
	cols, y := toColumns(sub)
	return cols, y, nil
}
