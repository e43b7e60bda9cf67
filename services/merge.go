package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"taxi-tip-pipeline/models"
	"taxi-tip-pipeline/storage"
	"taxi-tip-pipeline/utils"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/pkg/errors"
)

const stageMerge = "merge"

// MergeSummary describes a finished merge
type MergeSummary struct {
	Files []string
	Rows  int64
	Path  string
}

// Merger concatenates every raw monthly file into one parquet file
type Merger struct {
	store     storage.RawStore
	outputDir string
	out       io.Writer
	logger    *utils.Logger
	metrics   *utils.Metrics
}

// NewMerger creates a new Merger writing into outputDir
func NewMerger(store storage.RawStore, outputDir string, out io.Writer, logger *utils.Logger, metrics *utils.Metrics) *Merger {
	return &Merger{store: store, outputDir: outputDir, out: out, logger: logger, metrics: metrics}
}

// OutputPath is where Merge writes the combined file
func (m *Merger) OutputPath() string {
	return filepath.Join(m.outputDir, models.MergedFileName)
}

// Merge appends the raw files in lexicographic order. Zero matching files is
// ErrNoRawFiles and nothing is written.
func (m *Merger) Merge(ctx context.Context) (MergeSummary, error) {
	sum := MergeSummary{Path: m.OutputPath()}

	files, err := m.store.Glob(ctx, models.RawFilePattern)
	if err != nil {
		return sum, errors.Wrap(err, "listing raw files")
	}
	if len(files) == 0 {
		fmt.Fprintf(m.out, "Error: '%s' do not find parquet files.\n", m.store.Location())
		return sum, errors.Wrapf(ErrNoRawFiles, "%s matching %s", m.store.Location(), models.RawFilePattern)
	}
	fmt.Fprintf(m.out, "Found %d files, preparing to merge...\n", len(files))

	schema, err := m.unifiedSchema(ctx, files)
	if err != nil {
		return sum, err
	}

	a := storage.NewParquetAppender(sum.Path)
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			a.Abort()
			return sum, err
		}
		before := a.Rows()
		if err := m.appendFile(ctx, a, name, schema); err != nil {
			a.Abort()
			return sum, errors.Wrapf(err, "file %s", filepath.Base(name))
		}
		m.logger.Debug("Appended %d rows from %s", a.Rows()-before, filepath.Base(name))
		m.metrics.FilesProcessed.WithLabelValues(stageMerge, "merged").Inc()
		sum.Files = append(sum.Files, name)
	}
	if err := a.Commit(); err != nil {
		return sum, err
	}

	sum.Rows = a.Rows()
	m.metrics.RowsWritten.WithLabelValues(stageMerge).Add(float64(sum.Rows))
	m.logger.Info("Merged %d rows from %d files", sum.Rows, len(sum.Files))
	fmt.Fprintf(m.out, "Data merging completed, saved to: %s\n", sum.Path)
	return sum, nil
}

// unifiedSchema reads every footer before anything is written, so a file that cannot
// be merged leaves the previous output untouched.
func (m *Merger) unifiedSchema(ctx context.Context, files []string) (*arrow.Schema, error) {
	schemas := make([]*arrow.Schema, 0, len(files))
	for _, name := range files {
		s, err := m.readSchema(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "file %s", filepath.Base(name))
		}
		schemas = append(schemas, s)
	}
	schema, err := storage.UnifySchemas(schemas...)
	if err != nil {
		return nil, err
	}
	if schema != schemas[0] {
		m.logger.Warn("Column types differ between raw files, merging with widened types")
	}
	return schema, nil
}

func (m *Merger) readSchema(ctx context.Context, name string) (*arrow.Schema, error) {
	f, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return storage.ReadParquetSchema(f)
}

func (m *Merger) appendFile(ctx context.Context, a *storage.ParquetAppender, name string, schema *arrow.Schema) error {
	f, err := m.store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer f.Close()

	tbl, err := storage.ReadParquet(ctx, f)
	if err != nil {
		return err
	}
	defer tbl.Release()

	conformed, err := storage.Conform(tbl, schema)
	if err != nil {
		return err
	}
	defer conformed.Release()
	return a.Append(conformed)
}
