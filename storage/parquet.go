package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/compress"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/pkg/errors"
)

// rowGroupRows bounds the rows per record handed to the parquet writer
const rowGroupRows = 64 * 1024

// Pool is the allocator used for every arrow buffer in the pipeline
var Pool memory.Allocator = memory.NewGoAllocator()

// ReadParquet reads a whole parquet stream into an arrow table. The caller must Release it.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (arrow.Table, error) {
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(Pool), pqarrow.ArrowReadProperties{}, Pool)
	if err != nil {
		return nil, errors.Wrap(err, "reading parquet")
	}
	return tbl, nil
}

// ReadParquetFile opens path and reads it fully
func ReadParquetFile(ctx context.Context, path string) (arrow.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tbl, err := ReadParquet(ctx, f)
	if err != nil {
		return nil, errors.Wrapf(err, "file %s", path)
	}
	return tbl, nil
}

// WriteParquetFile writes tbl to path, replacing any previous file only on success
func WriteParquetFile(path string, tbl arrow.Table) error {
	a := NewParquetAppender(path)
	if err := a.Append(tbl); err != nil {
		a.Abort()
		return err
	}
	return a.Commit()
}

// ParquetAppender streams tables with a common schema into one parquet file.
// Output goes to a temp file next to path and is renamed over path on Commit.
type ParquetAppender struct {
	path   string
	tmp    *os.File
	writer *pqarrow.FileWriter
	schema *arrow.Schema
	rows   int64
}

// NewParquetAppender creates an appender for path; nothing touches disk until the first Append
func NewParquetAppender(path string) *ParquetAppender {
	return &ParquetAppender{path: path}
}

// Rows returns the number of rows appended so far
func (a *ParquetAppender) Rows() int64 {
	return a.rows
}

func (a *ParquetAppender) open(schema *arrow.Schema) error {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithAllocator(Pool),
	)
	w, err := pqarrow.NewFileWriter(schema, tmp, props, pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema()))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "creating parquet writer")
	}
	a.tmp, a.writer, a.schema = tmp, w, schema
	return nil
}

// Append writes every row of tbl. The first table fixes the schema; later tables must
// have the same column names and types.
func (a *ParquetAppender) Append(tbl arrow.Table) error {
	if a.writer == nil {
		if err := a.open(tbl.Schema()); err != nil {
			return err
		}
	} else if err := SameColumns(a.schema, tbl.Schema()); err != nil {
		return err
	}

	tr := array.NewTableReader(tbl, rowGroupRows)
	defer tr.Release()
	for tr.Next() {
		rec := tr.Record()
		// rebind to the writer's schema so field metadata differences between files don't matter
		out := array.NewRecord(a.schema, rec.Columns(), rec.NumRows())
		err := a.writer.Write(out)
		out.Release()
		if err != nil {
			return errors.Wrap(err, "writing record batch")
		}
		a.rows += rec.NumRows()
	}
	return nil
}

// Commit finishes the file and moves it into place
func (a *ParquetAppender) Commit() error {
	if a.writer == nil {
		return errors.New("nothing appended")
	}
	if err := a.writer.Close(); err != nil {
		a.Abort()
		return errors.Wrap(err, "closing parquet writer")
	}
	if err := a.tmp.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		os.Remove(a.tmp.Name())
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(a.tmp.Name(), a.path); err != nil {
		os.Remove(a.tmp.Name())
		return errors.Wrap(err, "moving output into place")
	}
	return nil
}

// Abort discards the temp file; the previous output, if any, is left untouched
func (a *ParquetAppender) Abort() {
	if a.tmp == nil {
		return
	}
	a.tmp.Close()
	os.Remove(a.tmp.Name())
	a.tmp, a.writer = nil, nil
}

// SameColumns reports whether got has the column names and types of want, in order
func SameColumns(want, got *arrow.Schema) error {
	if len(want.Fields()) != len(got.Fields()) {
		return errors.Errorf("schema mismatch: %d columns, expected %d", len(got.Fields()), len(want.Fields()))
	}
	for i, f := range want.Fields() {
		g := got.Field(i)
		if f.Name != g.Name || !arrow.TypeEqual(f.Type, g.Type) {
			return errors.Errorf("schema mismatch at column %d: %s %s, expected %s %s", i, g.Name, g.Type, f.Name, f.Type)
		}
	}
	return nil
}
