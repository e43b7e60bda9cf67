package storage

import (
	"context"
	"io"

	"github.com/apache/arrow/go/v10/arrow"
)

// TripTable is the relational sink written by the ingestion stage
type TripTable interface {
	EnsureTable(ctx context.Context, table string, schema *arrow.Schema) error
	AppendTable(ctx context.Context, table string, tbl arrow.Table, batchSize int) (int64, error)
}

// TripQuerier runs the fixed extraction query for the filter stage
type TripQuerier interface {
	QueryFiltered(ctx context.Context, table string) (RowScanner, error)
}

// RowScanner is the subset of *sql.Rows the filter stage needs
type RowScanner interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// RawFile is an opened raw parquet file. Closing it releases any local copy.
type RawFile interface {
	io.ReaderAt
	io.Seeker
	io.Closer
}

// RawStore lists and opens the monthly raw files
type RawStore interface {
	// Glob returns the names matching pattern, sorted lexicographically
	Glob(ctx context.Context, pattern string) ([]string, error)
	Open(ctx context.Context, name string) (RawFile, error)
	// Location describes the store in log lines
	Location() string
}
