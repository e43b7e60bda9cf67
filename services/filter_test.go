package services

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/utils"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filteredRow(vendor int64, pickup time.Time, tip float64) []interface{} {
	row := []interface{}{vendor, pickup, pickup.Add(12 * time.Minute)}
	for _, c := range models.FilteredColumns[3:] {
		switch c.Name {
		case models.ColTipAmount:
			row = append(row, tip)
		case models.ColEhailFee:
			row = append(row, nil)
		default:
			row = append(row, 1.5)
		}
	}
	return row
}

func filterRows(n int) *fakeRows {
	rows := &fakeRows{}
	base := time.Date(2025, 2, 3, 8, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		rows.data = append(rows.data, filteredRow(int64(1+i%2), base.Add(time.Duration(i)*time.Hour), float64(i)))
	}
	return rows
}

func TestExportWritesFilteredFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	q := &fakeQuerier{rows: filterRows(8)}
	var out bytes.Buffer
	f := NewFilterer(q, FilterConfig{TableName: "trips", OutputDir: dir, PreviewRows: 3}, &out, testLogger(), utils.NewMetrics())

	sum, err := f.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "trips", q.table)
	assert.True(t, q.rows.closed)
	assert.EqualValues(t, 8, sum.Rows)
	assert.Equal(t, filepath.Join(dir, models.FilteredFileName), sum.Path)

	tbl, err := storage.ReadParquetFile(context.Background(), sum.Path)
	require.NoError(t, err)
	defer tbl.Release()
	require.NoError(t, storage.SameColumns(models.FilteredSchema(), tbl.Schema()))

	tips, err := storage.ColumnFloats(tbl, models.ColTipAmount)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7}, tips)

	ehail, err := storage.ColumnFloats(tbl, models.ColEhailFee)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(ehail[0]), "NULL survives as null")

	pickups, ok, err := storage.ColumnTimes(tbl, models.ColPickupDatetime)
	require.NoError(t, err)
	assert.True(t, ok[1])
	assert.Equal(t, time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC), pickups[1])

	preview := out.String()
	assert.Contains(t, preview, "Data preview:")
	assert.Contains(t, preview, "lpep_pickup_datetime")
	assert.Contains(t, preview, "2025-02-03 10:30:00")
	assert.NotContains(t, preview, "2025-02-03 11:30:00", "only the first rows are shown")
	assert.Contains(t, preview, "8 rows")
}

func TestExportEmptyResult(t *testing.T) {
	dir := t.TempDir()
	f := NewFilterer(&fakeQuerier{rows: &fakeRows{}}, FilterConfig{OutputDir: dir}, &bytes.Buffer{}, testLogger(), utils.NewMetrics())

	sum, err := f.Export(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Rows)
	assert.Zero(t, requireRows(t, filepath.Join(dir, models.FilteredFileName)))
}

func TestExportFailureKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	metrics := utils.NewMetrics()
	var out bytes.Buffer
	ok := NewFilterer(&fakeQuerier{rows: filterRows(4)}, FilterConfig{OutputDir: dir}, &out, testLogger(), metrics)
	_, err := ok.Export(context.Background())
	require.NoError(t, err)
	path := ok.OutputPath()
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	for name, q := range map[string]*fakeQuerier{
		"query": {err: errors.New("relation does not exist")},
		"scan":  {rows: &fakeRows{data: filterRows(2).data, scanErr: errors.New("bad value")}},
	} {
		t.Run(name, func(t *testing.T) {
			f := NewFilterer(q, FilterConfig{OutputDir: dir}, &out, testLogger(), metrics)
			sum, err := f.Export(context.Background())
			require.NoError(t, err, "lenient mode logs and continues")
			assert.Zero(t, sum.Rows)

			after, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestExportFailFast(t *testing.T) {
	dir := t.TempDir()
	f := NewFilterer(&fakeQuerier{err: errors.New("connection refused")}, FilterConfig{OutputDir: dir, FailFast: true}, &bytes.Buffer{}, testLogger(), utils.NewMetrics())

	_, err := f.Export(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	_, statErr := os.Stat(f.OutputPath())
	assert.True(t, os.IsNotExist(statErr))
}
