package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/storage/storagetest"
	"taxi-tip-pipeline/utils"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// fakeTable records what the ingestor appends
type fakeTable struct {
	ensured  []string
	appended map[string]int64
	batches  []int
	failOn   int // fail the nth AppendTable call, 1-based; 0 never fails
	calls    int
}

func newFakeTable() *fakeTable {
	return &fakeTable{appended: make(map[string]int64)}
}

func (f *fakeTable) EnsureTable(_ context.Context, table string, _ *arrow.Schema) error {
	f.ensured = append(f.ensured, table)
	return nil
}

func (f *fakeTable) AppendTable(_ context.Context, table string, tbl arrow.Table, batchSize int) (int64, error) {
	f.calls++
	if f.calls == f.failOn {
		return 0, errors.New("connection reset")
	}
	f.appended[table] += tbl.NumRows()
	f.batches = append(f.batches, batchSize)
	return tbl.NumRows(), nil
}

// fakeRows serves fixed rows through sql.Scanner holders like *sql.Rows does
type fakeRows struct {
	data    [][]interface{}
	pos     int
	scanErr error
	closed  bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.pos-1]
	if len(row) != len(dest) {
		return errors.Errorf("expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}
	for i, v := range row {
		if err := dest[i].(sql.Scanner).Scan(v); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { r.closed = true; return nil }

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	table string
}

func (q *fakeQuerier) QueryFiltered(_ context.Context, table string) (storage.RowScanner, error) {
	q.table = table
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func rawName(month string) string {
	return "green_tripdata_2025-" + month + ".parquet"
}

func writeRaw(t *testing.T, dir, month string, trips []storagetest.Trip) string {
	t.Helper()
	path := filepath.Join(dir, rawName(month))
	storagetest.WriteFile(t, path, trips)
	return path
}

func testLogger() *utils.Logger {
	return utils.NopLogger()
}

func requireRows(t *testing.T, path string) int64 {
	t.Helper()
	tbl, err := storage.ReadParquetFile(context.Background(), path)
	require.NoError(t, err)
	defer tbl.Release()
	return tbl.NumRows()
}
