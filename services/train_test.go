package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/regression"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/storage/storagetest"
	"taxi-tip-pipeline/utils"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMerged writes a merged file with n trips per month for months 1 through 6
func writeMerged(t *testing.T, n int) string {
	t.Helper()
	var trips []storagetest.Trip
	for m := time.January; m <= time.June; m++ {
		trips = append(trips, storagetest.Trips(m, n)...)
	}
	path := filepath.Join(t.TempDir(), models.MergedFileName)
	storagetest.WriteFile(t, path, trips)
	return path
}

func TestTrainerRun(t *testing.T) {
	merged := writeMerged(t, 100)
	modelPath := filepath.Join(t.TempDir(), "model", "tip.gob")
	metrics := utils.NewMetrics()
	var out bytes.Buffer

	tr := NewTrainer(modelPath, &out, testLogger(), metrics)
	res, err := tr.Run(context.Background(), merged, models.DefaultTrainingMonths, models.DefaultTestingMonths)
	require.NoError(t, err)

	r := res.Report
	assert.Equal(t, 400, r.TrainRows)
	assert.Equal(t, 200, r.TestRows)
	assert.Equal(t, modelPath, r.ModelPath)
	assert.Greater(t, r.R2, 0.9)
	assert.InDelta(t, r.RMSE*r.RMSE, r.MSE, 1e-12)
	assert.Equal(t, r.R2, testutil.ToFloat64(metrics.ModelR2))

	text := out.String()
	assert.Contains(t, text, "Train Finished.")
	assert.Contains(t, text, "Mean Squared Error (MSE):")
	assert.Contains(t, text, "R-squared (R2):")
	assert.Contains(t, text, "Save Model: "+modelPath)

	loaded, err := regression.Load(modelPath)
	require.NoError(t, err)

	tbl, err := storage.ReadParquetFile(context.Background(), merged)
	require.NoError(t, err)
	defer tbl.Release()
	frame, err := NewFeatureFrame(tbl)
	require.NoError(t, err)
	testCols, yTest, err := tr.split(frame, models.DefaultTestingMonths)
	require.NoError(t, err)

	want, err := res.Pipeline.Predict(testCols)
	require.NoError(t, err)
	got, err := loaded.Predict(testCols)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	scores, err := regression.Score(yTest, got)
	require.NoError(t, err)
	assert.Equal(t, r.MSE, scores.MSE)
}

func TestTrainerDeterministic(t *testing.T) {
	merged := writeMerged(t, 30)
	dir := t.TempDir()

	a, err := NewTrainer(filepath.Join(dir, "a.gob"), &bytes.Buffer{}, testLogger(), utils.NewMetrics()).
		Run(context.Background(), merged, []string{"01", "02"}, []string{"03"})
	require.NoError(t, err)
	b, err := NewTrainer(filepath.Join(dir, "b.gob"), &bytes.Buffer{}, testLogger(), utils.NewMetrics()).
		Run(context.Background(), merged, []string{"01", "02"}, []string{"03"})
	require.NoError(t, err)

	assert.Equal(t, a.Report.MSE, b.Report.MSE)
	assert.Equal(t, a.Report.Coefficients, b.Report.Coefficients)
}

func TestTrainerMissingFile(t *testing.T) {
	modelPath := filepath.Join(t.TempDir(), "model.gob")
	var out bytes.Buffer

	_, err := NewTrainer(modelPath, &out, testLogger(), utils.NewMetrics()).
		Run(context.Background(), filepath.Join(t.TempDir(), "nope.parquet"), []string{"01"}, []string{"02"})
	assert.ErrorIs(t, err, ErrMergedFileMissing)
	assert.Contains(t, out.String(), "do not find parquet files")
	assert.NoFileExists(t, modelPath)
}

func TestTrainerEmptyFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), models.MergedFileName)
	storagetest.WriteFile(t, path, nil)
	modelPath := filepath.Join(t.TempDir(), "model.gob")
	var out bytes.Buffer

	_, err := NewTrainer(modelPath, &out, testLogger(), utils.NewMetrics()).
		Run(context.Background(), path, []string{"01"}, []string{"02"})
	assert.ErrorIs(t, err, ErrEmptyFrame)
	assert.Equal(t, "Empty Data\n", out.String())
	assert.NoFileExists(t, modelPath)
}

func TestTrainerEmptyTestMonths(t *testing.T) {
	merged := writeMerged(t, 10)
	modelPath := filepath.Join(t.TempDir(), "model.gob")

	_, err := NewTrainer(modelPath, &bytes.Buffer{}, testLogger(), utils.NewMetrics()).
		Run(context.Background(), merged, []string{"01"}, []string{"12"})
	assert.ErrorIs(t, err, ErrEmptySplit)
	_, statErr := os.Stat(modelPath)
	assert.True(t, os.IsNotExist(statErr))
}
