package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/storage/storagetest"
	"taxi-tip-pipeline/utils"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConcatenatesInFileOrder(t *testing.T) {
	raw, processed := t.TempDir(), filepath.Join(t.TempDir(), "processed")
	writeRaw(t, raw, "02", storagetest.Trips(2, 4))
	writeRaw(t, raw, "01", storagetest.Trips(1, 3))
	writeRaw(t, raw, "03", nil)

	var out bytes.Buffer
	metrics := utils.NewMetrics()
	m := NewMerger(storage.LocalStore{Dir: raw}, processed, &out, testLogger(), metrics)
	sum, err := m.Merge(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 7, sum.Rows)
	assert.Equal(t, []string{
		filepath.Join(raw, rawName("01")),
		filepath.Join(raw, rawName("02")),
		filepath.Join(raw, rawName("03")),
	}, sum.Files)
	assert.Contains(t, out.String(), "Found 3 files, preparing to merge...")
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.FilesProcessed.WithLabelValues(stageMerge, "merged")))

	tbl, err := storage.ReadParquetFile(context.Background(), filepath.Join(processed, models.MergedFileName))
	require.NoError(t, err)
	defer tbl.Release()
	require.NoError(t, storage.SameColumns(storagetest.Schema(), tbl.Schema()))

	pickups, _, err := storage.ColumnTimes(tbl, models.ColPickupDatetime)
	require.NoError(t, err)
	var months []time.Month
	for _, p := range pickups {
		months = append(months, p.Month())
	}
	assert.Equal(t, []time.Month{1, 1, 1, 2, 2, 2, 2}, months)
}

func TestMergeWidensVendorType(t *testing.T) {
	raw, processed := t.TempDir(), t.TempDir()
	writeRaw(t, raw, "01", storagetest.Trips(1, 3))
	storagetest.WriteLayoutFile(t, filepath.Join(raw, rawName("02")), storagetest.Trips(2, 2), storagetest.Layout{VendorInt64: true})

	m := NewMerger(storage.LocalStore{Dir: raw}, processed, &bytes.Buffer{}, testLogger(), utils.NewMetrics())
	sum, err := m.Merge(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, sum.Rows)

	tbl, err := storage.ReadParquetFile(context.Background(), m.OutputPath())
	require.NoError(t, err)
	defer tbl.Release()
	assert.True(t, arrow.TypeEqual(arrow.PrimitiveTypes.Int64, tbl.Schema().Field(0).Type))

	vendors, err := storage.ColumnFloats(tbl, models.ColVendorID)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 1, 1, 2}, vendors)
}

func TestMergeOnlyEmptyFiles(t *testing.T) {
	raw, processed := t.TempDir(), t.TempDir()
	writeRaw(t, raw, "01", nil)

	m := NewMerger(storage.LocalStore{Dir: raw}, processed, &bytes.Buffer{}, testLogger(), utils.NewMetrics())
	sum, err := m.Merge(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.Rows)
	assert.Zero(t, requireRows(t, m.OutputPath()))
}

func TestMergeNoRawFiles(t *testing.T) {
	raw, processed := t.TempDir(), filepath.Join(t.TempDir(), "processed")
	// does not match the raw file pattern
	storagetest.WriteFile(t, filepath.Join(raw, "yellow_tripdata_2025-01.parquet"), storagetest.Trips(1, 2))

	var out bytes.Buffer
	m := NewMerger(storage.LocalStore{Dir: raw}, processed, &out, testLogger(), utils.NewMetrics())
	_, err := m.Merge(context.Background())
	assert.ErrorIs(t, err, ErrNoRawFiles)
	assert.Contains(t, out.String(), "do not find parquet files")

	_, statErr := os.Stat(processed)
	assert.True(t, os.IsNotExist(statErr), "nothing is written")
}

func TestMergeSchemaMismatchKeepsPreviousOutput(t *testing.T) {
	raw, processed := t.TempDir(), t.TempDir()
	writeRaw(t, raw, "01", storagetest.Trips(1, 3))

	m := NewMerger(storage.LocalStore{Dir: raw}, processed, &bytes.Buffer{}, testLogger(), utils.NewMetrics())
	_, err := m.Merge(context.Background())
	require.NoError(t, err)

	schema := arrow.NewSchema([]arrow.Field{{Name: "other", Type: arrow.PrimitiveTypes.Int64}}, nil)
	b := array.NewRecordBuilder(storage.Pool, schema)
	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2}, nil)
	rec := b.NewRecord()
	b.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	rec.Release()
	require.NoError(t, storage.WriteParquetFile(filepath.Join(raw, rawName("02")), tbl))
	tbl.Release()

	_, err = m.Merge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema mismatch")
	assert.EqualValues(t, 3, requireRows(t, m.OutputPath()))

	entries, err := os.ReadDir(processed)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp output is removed")
}
