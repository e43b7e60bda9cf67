package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"path/filepath"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/utils"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
)

const stageFilter = "filter"

// FilterConfig controls the cash-trip export
type FilterConfig struct {
	TableName   string
	OutputDir   string
	PreviewRows int
	FailFast    bool
}

// ExportSummary describes a finished export
type ExportSummary struct {
	Rows int64
	Path string
}

// Filterer exports cash trips with sane amounts from the trip table to parquet
type Filterer struct {
	querier storage.TripQuerier
	cfg     FilterConfig
	out     io.Writer
	logger  *utils.Logger
	metrics *utils.Metrics
}

// NewFilterer creates a new Filterer; the preview is printed to out
func NewFilterer(querier storage.TripQuerier, cfg FilterConfig, out io.Writer, logger *utils.Logger, metrics *utils.Metrics) *Filterer {
	if cfg.TableName == "" {
		cfg.TableName = models.DefaultTableName
	}
	return &Filterer{querier: querier, cfg: cfg, out: out, logger: logger, metrics: metrics}
}

// OutputPath is where Export writes the filtered file
func (f *Filterer) OutputPath() string {
	return filepath.Join(f.cfg.OutputDir, models.FilteredFileName)
}

// Export runs the filter query and writes the result. Failures are logged and
// swallowed, leaving any earlier output in place, unless FailFast is set.
func (f *Filterer) Export(ctx context.Context) (ExportSummary, error) {
	sum, err := f.export(ctx)
	if err != nil {
		f.logger.Error("Error occurred while running the query or saving the file: %v", err)
		f.metrics.FilesProcessed.WithLabelValues(stageFilter, "failed").Inc()
		if f.cfg.FailFast {
			return sum, err
		}
		return ExportSummary{}, nil
	}
	f.metrics.FilesProcessed.WithLabelValues(stageFilter, "written").Inc()
	f.metrics.RowsWritten.WithLabelValues(stageFilter).Add(float64(sum.Rows))
	return sum, nil
}

func (f *Filterer) export(ctx context.Context) (ExportSummary, error) {
	f.logger.Info("Running query against the database...")
	rows, err := f.querier.QueryFiltered(ctx, f.cfg.TableName)
	if err != nil {
		return ExportSummary{}, err
	}
	defer rows.Close()

	tbl, err := ScanFiltered(rows)
	if err != nil {
		return ExportSummary{}, err
	}
	defer tbl.Release()
	f.logger.Info("Query completed, fetched %d rows.", tbl.NumRows())

	path := f.OutputPath()
	if err := storage.WriteParquetFile(path, tbl); err != nil {
		return ExportSummary{}, errors.Wrapf(err, "writing %s", path)
	}
	f.logger.Info("Saved the filtered data to: %s", path)

	fmt.Fprintln(f.out, "\nData preview:")
	PrintPreview(f.out, tbl, f.cfg.PreviewRows)

	return ExportSummary{Rows: tbl.NumRows(), Path: path}, nil
}

// ScanFiltered materializes the rows of the filter query as an arrow table with
// models.FilteredSchema. The caller must Release it.
func ScanFiltered(rows storage.RowScanner) (arrow.Table, error) {
	schema := models.FilteredSchema()
	b := array.NewRecordBuilder(storage.Pool, schema)
	defer b.Release()

	dest := make([]interface{}, len(models.FilteredColumns))
	for j, c := range models.FilteredColumns {
		switch c.Type.ID() {
		case arrow.INT64:
			dest[j] = new(sql.NullInt64)
		case arrow.TIMESTAMP:
			dest[j] = new(sql.NullTime)
		default:
			dest[j] = new(sql.NullFloat64)
		}
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		for j := range dest {
			switch v := dest[j].(type) {
			case *sql.NullInt64:
				ib := b.Field(j).(*array.Int64Builder)
				if v.Valid {
					ib.Append(v.Int64)
				} else {
					ib.AppendNull()
				}
			case *sql.NullTime:
				tb := b.Field(j).(*array.TimestampBuilder)
				if v.Valid {
					tb.Append(arrow.Timestamp(v.Time.UnixMicro()))
				} else {
					tb.AppendNull()
				}
			case *sql.NullFloat64:
				fb := b.Field(j).(*array.Float64Builder)
				if v.Valid {
					fb.Append(v.Float64)
				} else {
					fb.AppendNull()
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	rec := b.NewRecord()
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec}), nil
}
